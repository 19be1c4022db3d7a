package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/asistmx/checador-api/internal/models"
)

// AnomalyRepository persists anomaly findings.
type AnomalyRepository struct {
	db *sqlx.DB
}

// NewAnomalyRepository constructs the repository.
func NewAnomalyRepository(db *sqlx.DB) *AnomalyRepository {
	return &AnomalyRepository{db: db}
}

// OpenExists reports whether an open finding of the given type already exists
// for the attendance record.
func (r *AnomalyRepository) OpenExists(ctx context.Context, attendanceID string, anomalyType models.AnomalyType) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM attendance_anomalies WHERE attendance_id = $1 AND type = $2 AND status = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, attendanceID, anomalyType, models.AnomalyStatusOpen); err != nil {
		return false, fmt.Errorf("check open anomaly: %w", err)
	}
	return exists, nil
}

// Insert stores a new finding.
func (r *AnomalyRepository) Insert(ctx context.Context, anomaly *models.AttendanceAnomaly) error {
	now := time.Now().UTC()
	if anomaly.ID == "" {
		anomaly.ID = uuid.NewString()
	}
	if anomaly.CreatedAt.IsZero() {
		anomaly.CreatedAt = now
	}
	anomaly.UpdatedAt = now
	const query = `INSERT INTO attendance_anomalies
(id, attendance_id, employee_id, type, severity, expected, actual, deviation_minutes, status, auto_detected, resolved_by, resolved_at, created_at, updated_at)
VALUES (:id, :attendance_id, :employee_id, :type, :severity, :expected, :actual, :deviation_minutes, :status, :auto_detected, :resolved_by, :resolved_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, anomaly); err != nil {
		return fmt.Errorf("insert anomaly: %w", err)
	}
	return nil
}

// CountOpen returns the number of open findings on one attendance record.
func (r *AnomalyRepository) CountOpen(ctx context.Context, attendanceID string) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance_anomalies WHERE attendance_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, attendanceID, models.AnomalyStatusOpen); err != nil {
		return 0, fmt.Errorf("count open anomalies: %w", err)
	}
	return count, nil
}

// GetByID returns a single finding.
func (r *AnomalyRepository) GetByID(ctx context.Context, id string) (*models.AttendanceAnomaly, error) {
	const query = `SELECT id, attendance_id, employee_id, type, severity, expected, actual, deviation_minutes, status, auto_detected, resolved_by, resolved_at, created_at, updated_at
FROM attendance_anomalies WHERE id = $1 LIMIT 1`
	var anomaly models.AttendanceAnomaly
	if err := r.db.GetContext(ctx, &anomaly, query, id); err != nil {
		return nil, err
	}
	return &anomaly, nil
}

// UpdateStatus transitions a finding's lifecycle status.
func (r *AnomalyRepository) UpdateStatus(ctx context.Context, id string, status models.AnomalyStatus, resolvedBy string) error {
	now := time.Now().UTC()
	const query = `UPDATE attendance_anomalies SET status = $2, resolved_by = $3, resolved_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, resolvedBy, now); err != nil {
		return fmt.Errorf("update anomaly status: %w", err)
	}
	return nil
}

// List returns findings matching the filter.
func (r *AnomalyRepository) List(ctx context.Context, filter models.AnomalyFilter) ([]models.AttendanceAnomaly, int, error) {
	base := `FROM attendance_anomalies aa`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.EmployeeID != "" {
		where = append(where, fmt.Sprintf("aa.employee_id = $%d", len(args)+1))
		args = append(args, filter.EmployeeID)
	}
	if filter.Type != nil {
		where = append(where, fmt.Sprintf("aa.type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Severity != nil {
		where = append(where, fmt.Sprintf("aa.severity = $%d", len(args)+1))
		args = append(args, *filter.Severity)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("aa.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("aa.created_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("aa.created_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")
	allowedSort := map[string]string{
		"created_at": "aa.created_at",
		"severity":   "aa.severity",
		"type":       "aa.type",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "aa.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT aa.* %s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		base, whereClause, sortColumn, order, size, offset)
	var rows []models.AttendanceAnomaly
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list anomalies: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count anomalies: %w", err)
	}
	return rows, total, nil
}
