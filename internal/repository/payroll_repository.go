package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/asistmx/checador-api/internal/models"
)

// PayrollRepository persists payroll periods and their computed entries.
type PayrollRepository struct {
	db *sqlx.DB
}

// NewPayrollRepository constructs the repository.
func NewPayrollRepository(db *sqlx.DB) *PayrollRepository {
	return &PayrollRepository{db: db}
}

// OverlapExists reports whether any period intersects [startDate, endDate].
// excludeID skips one period so updates do not collide with themselves.
func (r *PayrollRepository) OverlapExists(ctx context.Context, startDate, endDate time.Time, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(
SELECT 1 FROM payroll_periods WHERE start_date <= $2 AND end_date >= $1 AND id <> $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, startDate, endDate, excludeID); err != nil {
		return false, fmt.Errorf("check period overlap: %w", err)
	}
	return exists, nil
}

// CreatePeriod stores a new period in draft status.
func (r *PayrollRepository) CreatePeriod(ctx context.Context, period *models.PayrollPeriod) error {
	now := time.Now().UTC()
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	if period.Status == "" {
		period.Status = models.PayrollPeriodDraft
	}
	period.CreatedAt = now
	period.UpdatedAt = now
	const query = `INSERT INTO payroll_periods
(id, name, type, start_date, end_date, status, calculated_at, approved_by, approved_at, paid_at, created_at, updated_at)
VALUES (:id, :name, :type, :start_date, :end_date, :status, :calculated_at, :approved_by, :approved_at, :paid_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("insert payroll period: %w", err)
	}
	return nil
}

// GetPeriod returns one period.
func (r *PayrollRepository) GetPeriod(ctx context.Context, id string) (*models.PayrollPeriod, error) {
	const query = `SELECT * FROM payroll_periods WHERE id = $1 LIMIT 1`
	var period models.PayrollPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// ListPeriods returns periods newest first.
func (r *PayrollRepository) ListPeriods(ctx context.Context, page, pageSize int) ([]models.PayrollPeriod, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	query := fmt.Sprintf(`SELECT * FROM payroll_periods ORDER BY start_date DESC LIMIT %d OFFSET %d`, pageSize, offset)
	var rows []models.PayrollPeriod
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, 0, fmt.Errorf("list payroll periods: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM payroll_periods`); err != nil {
		return nil, 0, fmt.Errorf("count payroll periods: %w", err)
	}
	return rows, total, nil
}

// TransitionStatus performs a compare-and-set status change and reports
// whether the transition won. Extra columns for the target state are set in
// the same statement so a period never lands half-transitioned.
func (r *PayrollRepository) TransitionStatus(ctx context.Context, id string, from, to models.PayrollPeriodStatus, actor string) (bool, error) {
	now := time.Now().UTC()
	var query string
	args := []interface{}{id, from, to, now}
	switch to {
	case models.PayrollPeriodReview:
		query = `UPDATE payroll_periods SET status = $3, calculated_at = $4, updated_at = $4 WHERE id = $1 AND status = $2`
	case models.PayrollPeriodApproved:
		query = `UPDATE payroll_periods SET status = $3, approved_by = $5, approved_at = $4, updated_at = $4 WHERE id = $1 AND status = $2`
		args = append(args, actor)
	case models.PayrollPeriodPaid:
		query = `UPDATE payroll_periods SET status = $3, paid_at = $4, updated_at = $4 WHERE id = $1 AND status = $2`
	default:
		query = `UPDATE payroll_periods SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition period status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition period status: %w", err)
	}
	return n == 1, nil
}

const payrollEntryColumns = `id, period_id, employee_id,
regular_hours, overtime_hours, holiday_hours, weekend_hours, night_shift_hours,
worked_days, absent_days, late_days, punctual_days, night_shift_days,
vacation_days, sick_leave_days, permission_days, unpaid_days,
regular_pay, overtime_pay, holiday_pay, weekend_pay, vacation_pay,
punctuality_bonus, weekly_bonus, monthly_bonus, night_shift_bonus, dinner_allowance,
deductions, gross_pay, net_pay, breakdown, created_at, updated_at`

// UpsertEntry stores the computed entry for one employee in one period.
// Recalculation replaces the previous figures in place.
func (r *PayrollRepository) UpsertEntry(ctx context.Context, entry *models.PayrollEntry) error {
	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	const query = `INSERT INTO payroll_entries (` + payrollEntryColumns + `)
VALUES (:id, :period_id, :employee_id,
:regular_hours, :overtime_hours, :holiday_hours, :weekend_hours, :night_shift_hours,
:worked_days, :absent_days, :late_days, :punctual_days, :night_shift_days,
:vacation_days, :sick_leave_days, :permission_days, :unpaid_days,
:regular_pay, :overtime_pay, :holiday_pay, :weekend_pay, :vacation_pay,
:punctuality_bonus, :weekly_bonus, :monthly_bonus, :night_shift_bonus, :dinner_allowance,
:deductions, :gross_pay, :net_pay, :breakdown, :created_at, :updated_at)
ON CONFLICT (period_id, employee_id) DO UPDATE SET
regular_hours = EXCLUDED.regular_hours,
overtime_hours = EXCLUDED.overtime_hours,
holiday_hours = EXCLUDED.holiday_hours,
weekend_hours = EXCLUDED.weekend_hours,
night_shift_hours = EXCLUDED.night_shift_hours,
worked_days = EXCLUDED.worked_days,
absent_days = EXCLUDED.absent_days,
late_days = EXCLUDED.late_days,
punctual_days = EXCLUDED.punctual_days,
night_shift_days = EXCLUDED.night_shift_days,
vacation_days = EXCLUDED.vacation_days,
sick_leave_days = EXCLUDED.sick_leave_days,
permission_days = EXCLUDED.permission_days,
unpaid_days = EXCLUDED.unpaid_days,
regular_pay = EXCLUDED.regular_pay,
overtime_pay = EXCLUDED.overtime_pay,
holiday_pay = EXCLUDED.holiday_pay,
weekend_pay = EXCLUDED.weekend_pay,
vacation_pay = EXCLUDED.vacation_pay,
punctuality_bonus = EXCLUDED.punctuality_bonus,
weekly_bonus = EXCLUDED.weekly_bonus,
monthly_bonus = EXCLUDED.monthly_bonus,
night_shift_bonus = EXCLUDED.night_shift_bonus,
dinner_allowance = EXCLUDED.dinner_allowance,
deductions = EXCLUDED.deductions,
gross_pay = EXCLUDED.gross_pay,
net_pay = EXCLUDED.net_pay,
breakdown = EXCLUDED.breakdown,
updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("upsert payroll entry: %w", err)
	}
	return nil
}

// ListEntries returns every entry of a period with employee metadata.
func (r *PayrollRepository) ListEntries(ctx context.Context, periodID string) ([]models.PayrollEntryDetail, error) {
	const query = `SELECT pe.*, e.full_name AS employee_name, e.code AS employee_code
FROM payroll_entries pe
JOIN employees e ON e.id = pe.employee_id
WHERE pe.period_id = $1
ORDER BY e.code`
	var rows []models.PayrollEntryDetail
	if err := r.db.SelectContext(ctx, &rows, query, periodID); err != nil {
		return nil, fmt.Errorf("list payroll entries: %w", err)
	}
	return rows, nil
}

// GetEntry returns one entry with employee metadata.
func (r *PayrollRepository) GetEntry(ctx context.Context, periodID, employeeID string) (*models.PayrollEntryDetail, error) {
	const query = `SELECT pe.*, e.full_name AS employee_name, e.code AS employee_code
FROM payroll_entries pe
JOIN employees e ON e.id = pe.employee_id
WHERE pe.period_id = $1 AND pe.employee_id = $2
LIMIT 1`
	var entry models.PayrollEntryDetail
	if err := r.db.GetContext(ctx, &entry, query, periodID, employeeID); err != nil {
		return nil, err
	}
	return &entry, nil
}
