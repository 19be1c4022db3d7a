package models

import "time"

// SyncRunStatus is the lifecycle of one punch ingestion run.
type SyncRunStatus string

const (
	SyncRunRunning   SyncRunStatus = "running"
	SyncRunCompleted SyncRunStatus = "completed"
	SyncRunFailed    SyncRunStatus = "failed"
)

// SyncRun records one ingestion pass over the raw punch store. The window
// starts at the previous watermark minus a safety overlap; re-running the
// same window is safe because reconciliation upserts are idempotent.
type SyncRun struct {
	ID               string        `db:"id" json:"id"`
	WindowStart      time.Time     `db:"window_start" json:"window_start"`
	WindowEnd        time.Time     `db:"window_end" json:"window_end"`
	Status           SyncRunStatus `db:"status" json:"status"`
	PunchesRead      int           `db:"punches_read" json:"punches_read"`
	RecordsProcessed int           `db:"records_processed" json:"records_processed"`
	RecordsFailed    int           `db:"records_failed" json:"records_failed"`
	AnomaliesFound   int           `db:"anomalies_found" json:"anomalies_found"`
	Error            *string       `db:"error" json:"error,omitempty"`
	StartedAt        time.Time     `db:"started_at" json:"started_at"`
	FinishedAt       *time.Time    `db:"finished_at" json:"finished_at,omitempty"`
}
