package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/asistmx/checador-api/internal/models"
)

// LateAccumulationRepository tracks late arrivals per employee and ISO week.
type LateAccumulationRepository struct {
	db *sqlx.DB
}

// NewLateAccumulationRepository constructs the repository.
func NewLateAccumulationRepository(db *sqlx.DB) *LateAccumulationRepository {
	return &LateAccumulationRepository{db: db}
}

// Increment adds one late arrival to the (employee, year, week) counter and
// returns the row after the update. The upsert serialises concurrent
// increments on the unique key so the count never loses writes.
func (r *LateAccumulationRepository) Increment(ctx context.Context, employeeID string, year, week int) (*models.LateAccumulation, error) {
	now := time.Now().UTC()
	const query = `INSERT INTO late_accumulations (id, employee_id, year, week, late_count, absence_generated, created_at, updated_at)
VALUES ($1, $2, $3, $4, 1, FALSE, $5, $5)
ON CONFLICT (employee_id, year, week)
DO UPDATE SET late_count = late_accumulations.late_count + 1, updated_at = $5
RETURNING id, employee_id, year, week, late_count, absence_generated, created_at, updated_at`
	var acc models.LateAccumulation
	if err := r.db.GetContext(ctx, &acc, query, uuid.NewString(), employeeID, year, week, now); err != nil {
		return nil, fmt.Errorf("increment late accumulation: %w", err)
	}
	return &acc, nil
}

// Get returns the counter for one employee-week, or sql.ErrNoRows when the
// week has no lates yet.
func (r *LateAccumulationRepository) Get(ctx context.Context, employeeID string, year, week int) (*models.LateAccumulation, error) {
	const query = `SELECT * FROM late_accumulations WHERE employee_id = $1 AND year = $2 AND week = $3 LIMIT 1`
	var acc models.LateAccumulation
	if err := r.db.GetContext(ctx, &acc, query, employeeID, year, week); err != nil {
		return nil, err
	}
	return &acc, nil
}

// ListForRange returns counters for the ISO weeks touching [from, to].
func (r *LateAccumulationRepository) ListForRange(ctx context.Context, employeeID string, from, to time.Time) ([]models.LateAccumulation, error) {
	fromYear, fromWeek := from.ISOWeek()
	toYear, toWeek := to.ISOWeek()
	const query = `SELECT * FROM late_accumulations
WHERE employee_id = $1
  AND (year * 100 + week) >= $2
  AND (year * 100 + week) <= $3
ORDER BY year, week`
	var rows []models.LateAccumulation
	if err := r.db.SelectContext(ctx, &rows, query, employeeID, fromYear*100+fromWeek, toYear*100+toWeek); err != nil {
		return nil, fmt.Errorf("list late accumulations: %w", err)
	}
	return rows, nil
}

// MarkAbsenceGenerated flips the idempotency flag and reports whether this
// call won the flip. Only the winner may create the derived absence incident.
func (r *LateAccumulationRepository) MarkAbsenceGenerated(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()
	const query = `UPDATE late_accumulations SET absence_generated = TRUE, updated_at = $2
WHERE id = $1 AND absence_generated = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("mark absence generated: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark absence generated: %w", err)
	}
	return n == 1, nil
}
