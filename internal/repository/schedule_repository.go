package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/asistmx/checador-api/internal/models"
)

// ScheduleRepository persists base schedules and their per-weekday overrides.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create stores a new schedule.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	now := time.Now().UTC()
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	const query = `INSERT INTO schedules
(id, name, entry_time, exit_time, break_start, break_end, break_minutes, tolerance_minutes, daily_work_hours, working_days, night_shift, active, created_at, updated_at)
VALUES (:id, :name, :entry_time, :exit_time, :break_start, :break_end, :break_minutes, :tolerance_minutes, :daily_work_hours, :working_days, :night_shift, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetByID returns one schedule.
func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	const query = `SELECT * FROM schedules WHERE id = $1 LIMIT 1`
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListActive returns active schedules ordered by name.
func (r *ScheduleRepository) ListActive(ctx context.Context) ([]models.Schedule, error) {
	const query = `SELECT * FROM schedules WHERE active = TRUE ORDER BY name`
	var rows []models.Schedule
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return rows, nil
}

// ListOverrides returns the weekday overrides of one schedule.
func (r *ScheduleRepository) ListOverrides(ctx context.Context, scheduleID string) ([]models.DayScheduleOverride, error) {
	const query = `SELECT * FROM day_schedule_overrides WHERE schedule_id = $1 ORDER BY weekday`
	var rows []models.DayScheduleOverride
	if err := r.db.SelectContext(ctx, &rows, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list schedule overrides: %w", err)
	}
	return rows, nil
}

// UpsertOverride replaces the override for one (schedule, weekday).
func (r *ScheduleRepository) UpsertOverride(ctx context.Context, override *models.DayScheduleOverride) error {
	if override.ID == "" {
		override.ID = uuid.NewString()
	}
	const query = `INSERT INTO day_schedule_overrides
(id, schedule_id, weekday, entry_time, exit_time, break_minutes, tolerance_minutes, daily_work_hours, working)
VALUES (:id, :schedule_id, :weekday, :entry_time, :exit_time, :break_minutes, :tolerance_minutes, :daily_work_hours, :working)
ON CONFLICT (schedule_id, weekday) DO UPDATE SET
entry_time = EXCLUDED.entry_time,
exit_time = EXCLUDED.exit_time,
break_minutes = EXCLUDED.break_minutes,
tolerance_minutes = EXCLUDED.tolerance_minutes,
daily_work_hours = EXCLUDED.daily_work_hours,
working = EXCLUDED.working`
	if _, err := r.db.NamedExecContext(ctx, query, override); err != nil {
		return fmt.Errorf("upsert schedule override: %w", err)
	}
	return nil
}

// DeleteOverride removes the override for one (schedule, weekday).
func (r *ScheduleRepository) DeleteOverride(ctx context.Context, scheduleID string, weekday int) error {
	const query = `DELETE FROM day_schedule_overrides WHERE schedule_id = $1 AND weekday = $2`
	if _, err := r.db.ExecContext(ctx, query, scheduleID, weekday); err != nil {
		return fmt.Errorf("delete schedule override: %w", err)
	}
	return nil
}
