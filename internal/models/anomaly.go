package models

import "time"

// AnomalyType identifies a detection rule.
type AnomalyType string

const (
	AnomalyTypeMissingCheckout       AnomalyType = "missing_checkout"
	AnomalyTypeMissingCheckin        AnomalyType = "missing_checkin"
	AnomalyTypeUnauthorizedOvertime  AnomalyType = "unauthorized_overtime"
	AnomalyTypeUnauthorizedNightWork AnomalyType = "unauthorized_night_shift"
	AnomalyTypeExcessiveBreak        AnomalyType = "excessive_break"
	AnomalyTypeMissingLunch          AnomalyType = "missing_lunch"
	AnomalyTypeLateArrival           AnomalyType = "late_arrival"
	AnomalyTypeEarlyDeparture        AnomalyType = "early_departure"
	AnomalyTypeScheduleDeviation     AnomalyType = "schedule_deviation"
	AnomalyTypeDuplicatePunches      AnomalyType = "duplicate_punches"
)

// AnomalySeverity grades a finding.
type AnomalySeverity string

const (
	AnomalySeverityInfo     AnomalySeverity = "info"
	AnomalySeverityWarning  AnomalySeverity = "warning"
	AnomalySeverityCritical AnomalySeverity = "critical"
)

// AnomalyStatus is the lifecycle of a finding.
type AnomalyStatus string

const (
	AnomalyStatusOpen       AnomalyStatus = "open"
	AnomalyStatusResolved   AnomalyStatus = "resolved"
	AnomalyStatusDismissed  AnomalyStatus = "dismissed"
	AnomalyStatusAuthorized AnomalyStatus = "linked_to_authorization"
)

// Valid reports whether the status is recognised.
func (s AnomalyStatus) Valid() bool {
	switch s {
	case AnomalyStatusOpen, AnomalyStatusResolved, AnomalyStatusDismissed, AnomalyStatusAuthorized:
		return true
	default:
		return false
	}
}

// AttendanceAnomaly is a rule-detected discrepancy on one attendance record.
// At most one open finding of a given type may exist per record.
type AttendanceAnomaly struct {
	ID               string          `db:"id" json:"id"`
	AttendanceID     string          `db:"attendance_id" json:"attendance_id"`
	EmployeeID       string          `db:"employee_id" json:"employee_id"`
	Type             AnomalyType     `db:"type" json:"type"`
	Severity         AnomalySeverity `db:"severity" json:"severity"`
	Expected         *string         `db:"expected" json:"expected,omitempty"`
	Actual           *string         `db:"actual" json:"actual,omitempty"`
	DeviationMinutes int             `db:"deviation_minutes" json:"deviation_minutes"`
	Status           AnomalyStatus   `db:"status" json:"status"`
	AutoDetected     bool            `db:"auto_detected" json:"auto_detected"`
	ResolvedBy       *string         `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// AnomalyFilter narrows anomaly listings.
type AnomalyFilter struct {
	EmployeeID string
	Type       *AnomalyType
	Severity   *AnomalySeverity
	Status     *AnomalyStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
