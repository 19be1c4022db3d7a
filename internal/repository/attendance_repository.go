package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/asistmx/checador-api/internal/models"
)

const attendanceColumns = `id, employee_id, work_date, check_in, check_out, lunch_out, lunch_in,
break_minutes, worked_hours, overtime_hours, night_shift_hours, permission_hours, total_payroll_hours,
late_minutes, early_departure_minutes, status, is_holiday, is_weekend, is_night_shift,
punctuality_bonus, night_shift_bonus, requires_review, anomaly_count, has_anomalies, raw_punches,
edited_by, edited_at, edit_reason, created_at, updated_at`

// AttendanceRepository handles persistence for reconciled attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// GetByEmployeeDate returns the record for one (employee, work date) pair.
func (r *AttendanceRepository) GetByEmployeeDate(ctx context.Context, employeeID string, workDate time.Time) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE employee_id = $1 AND work_date = $2 LIMIT 1`, attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, employeeID, workDate); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get attendance record: %w", err)
	}
	return &record, nil
}

// GetByID returns a single record.
func (r *AttendanceRepository) GetByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE id = $1 LIMIT 1`, attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get attendance record by id: %w", err)
	}
	return &record, nil
}

// Upsert inserts or replaces the record for its (employee, work date) pair.
// Re-running reconciliation over the same punches converges to the same row.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO attendance_records (%s)
VALUES (:id, :employee_id, :work_date, :check_in, :check_out, :lunch_out, :lunch_in,
:break_minutes, :worked_hours, :overtime_hours, :night_shift_hours, :permission_hours, :total_payroll_hours,
:late_minutes, :early_departure_minutes, :status, :is_holiday, :is_weekend, :is_night_shift,
:punctuality_bonus, :night_shift_bonus, :requires_review, :anomaly_count, :has_anomalies, :raw_punches,
:edited_by, :edited_at, :edit_reason, :created_at, :updated_at)
ON CONFLICT (employee_id, work_date)
DO UPDATE SET check_in = EXCLUDED.check_in, check_out = EXCLUDED.check_out,
	lunch_out = EXCLUDED.lunch_out, lunch_in = EXCLUDED.lunch_in,
	break_minutes = EXCLUDED.break_minutes, worked_hours = EXCLUDED.worked_hours,
	overtime_hours = EXCLUDED.overtime_hours, night_shift_hours = EXCLUDED.night_shift_hours,
	permission_hours = EXCLUDED.permission_hours, total_payroll_hours = EXCLUDED.total_payroll_hours,
	late_minutes = EXCLUDED.late_minutes, early_departure_minutes = EXCLUDED.early_departure_minutes,
	status = EXCLUDED.status, is_holiday = EXCLUDED.is_holiday, is_weekend = EXCLUDED.is_weekend,
	is_night_shift = EXCLUDED.is_night_shift, punctuality_bonus = EXCLUDED.punctuality_bonus,
	night_shift_bonus = EXCLUDED.night_shift_bonus, requires_review = EXCLUDED.requires_review,
	raw_punches = EXCLUDED.raw_punches, edited_by = EXCLUDED.edited_by, edited_at = EXCLUDED.edited_at,
	edit_reason = EXCLUDED.edit_reason, updated_at = EXCLUDED.updated_at`, attendanceColumns)
	rows, err := r.db.NamedQueryContext(ctx, query+" RETURNING "+attendanceColumns, record)
	if err != nil {
		return nil, fmt.Errorf("upsert attendance record: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, fmt.Errorf("upsert attendance record: no row returned")
	}
	var stored models.AttendanceRecord
	if err := rows.StructScan(&stored); err != nil {
		return nil, fmt.Errorf("scan upserted attendance record: %w", err)
	}
	return &stored, nil
}


// List returns attendance rows matching the provided filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	base := `FROM attendance_records ar JOIN employees e ON e.id = ar.employee_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.EmployeeID != "" {
		where = append(where, fmt.Sprintf("ar.employee_id = $%d", len(args)+1))
		args = append(args, filter.EmployeeID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("ar.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.HasAnomalies != nil {
		where = append(where, fmt.Sprintf("ar.has_anomalies = $%d", len(args)+1))
		args = append(args, *filter.HasAnomalies)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("ar.work_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("ar.work_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")
	allowedSort := map[string]string{
		"work_date":    "ar.work_date",
		"status":       "ar.status",
		"late_minutes": "ar.late_minutes",
		"created_at":   "ar.created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "ar.work_date"
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

	query := fmt.Sprintf(`SELECT ar.*, e.full_name AS employee_name, e.code AS employee_code
%s WHERE %s
ORDER BY %s %s
LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.AttendanceRecordDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance records: %w", err)
	}
	return rows, total, nil
}

// ListRange returns one employee's records inside [from, to] inclusive.
func (r *AttendanceRepository) ListRange(ctx context.Context, employeeID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records
WHERE employee_id = $1 AND work_date >= $2 AND work_date <= $3
ORDER BY work_date ASC`, attendanceColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, employeeID, from, to); err != nil {
		return nil, fmt.Errorf("list attendance range: %w", err)
	}
	return records, nil
}

// UpdateAnomalyCount persists the recomputed open-anomaly counters.
func (r *AttendanceRepository) UpdateAnomalyCount(ctx context.Context, id string, count int) error {
	const query = `UPDATE attendance_records SET anomaly_count = $2, has_anomalies = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, count, count > 0, time.Now().UTC()); err != nil {
		return fmt.Errorf("update anomaly count: %w", err)
	}
	return nil
}
