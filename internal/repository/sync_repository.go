package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/asistmx/checador-api/internal/models"
)

// SyncRepository persists ingestion run bookkeeping and the watermark it
// derives from.
type SyncRepository struct {
	db *sqlx.DB
}

// NewSyncRepository constructs the repository.
func NewSyncRepository(db *sqlx.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

// CreateRun stores the run in running state.
func (r *SyncRepository) CreateRun(ctx context.Context, run *models.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = models.SyncRunRunning
	const query = `INSERT INTO sync_runs
(id, window_start, window_end, status, punches_read, records_processed, records_failed, anomalies_found, error, started_at, finished_at)
VALUES (:id, :window_start, :window_end, :status, :punches_read, :records_processed, :records_failed, :anomalies_found, :error, :started_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("insert sync run: %w", err)
	}
	return nil
}

// FinishRun stores the run outcome.
func (r *SyncRepository) FinishRun(ctx context.Context, run *models.SyncRun) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	const query = `UPDATE sync_runs SET
status = :status,
punches_read = :punches_read,
records_processed = :records_processed,
records_failed = :records_failed,
anomalies_found = :anomalies_found,
error = :error,
finished_at = :finished_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("finish sync run: %w", err)
	}
	return nil
}

// GetRun returns one run.
func (r *SyncRepository) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	const query = `SELECT * FROM sync_runs WHERE id = $1 LIMIT 1`
	var run models.SyncRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// LastCompletedWindowEnd returns the watermark: the window end of the latest
// completed run, or the zero time when no run has completed yet.
func (r *SyncRepository) LastCompletedWindowEnd(ctx context.Context) (time.Time, error) {
	const query = `SELECT COALESCE(MAX(window_end), 'epoch'::timestamptz) FROM sync_runs WHERE status = $1`
	var watermark time.Time
	if err := r.db.GetContext(ctx, &watermark, query, models.SyncRunCompleted); err != nil {
		return time.Time{}, fmt.Errorf("load sync watermark: %w", err)
	}
	return watermark, nil
}

// ListRuns returns recent runs newest first.
func (r *SyncRepository) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT * FROM sync_runs ORDER BY started_at DESC LIMIT %d`, limit)
	var rows []models.SyncRun
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	return rows, nil
}
