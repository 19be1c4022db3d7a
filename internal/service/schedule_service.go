package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
	appErrors "github.com/asistmx/checador-api/pkg/errors"
)

type scheduleRepository interface {
	GetByID(ctx context.Context, id string) (*models.Schedule, error)
	ListActive(ctx context.Context) ([]models.Schedule, error)
	ListOverrides(ctx context.Context, scheduleID string) ([]models.DayScheduleOverride, error)
	UpsertOverride(ctx context.Context, override *models.DayScheduleOverride) error
}

// ScheduleService resolves the effective working pattern for an employee on a
// given date: base schedule, weekday override and employee field overrides
// merged field by field.
type ScheduleService struct {
	repo   scheduleRepository
	logger *zap.Logger
}

// NewScheduleService constructs the service.
func NewScheduleService(repo scheduleRepository, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{repo: repo, logger: logger}
}

// Effective returns the resolved schedule for the employee on workDate.
// Merge precedence, lowest first: base schedule, weekday override, employee
// overrides.
func (s *ScheduleService) Effective(ctx context.Context, employee *models.Employee, workDate int) (*models.EffectiveSchedule, error) {
	base, err := s.repo.GetByID(ctx, employee.ScheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.New("SCHEDULE_NOT_FOUND", http.StatusNotFound, "employee schedule not found")
		}
		return nil, appErrors.Wrap(err, "SCHEDULE_LOAD_FAILED", http.StatusInternalServerError, "could not load schedule")
	}

	entryMinutes, err := models.ParseClock(base.EntryTime)
	if err != nil {
		return nil, appErrors.Wrap(err, "SCHEDULE_INVALID", http.StatusUnprocessableEntity, "schedule entry time is invalid")
	}
	exitMinutes, err := models.ParseClock(base.ExitTime)
	if err != nil {
		return nil, appErrors.Wrap(err, "SCHEDULE_INVALID", http.StatusUnprocessableEntity, "schedule exit time is invalid")
	}

	effective := models.EffectiveSchedule{
		ScheduleID:       base.ID,
		EntryMinutes:     entryMinutes,
		ExitMinutes:      exitMinutes,
		BreakMinutes:     base.BreakMinutes,
		ToleranceMinutes: base.ToleranceMinutes,
		DailyWorkHours:   base.DailyWorkHours,
		Working:          base.WorkingWeekdays()[workDate],
		NightShift:       base.NightShift,
	}

	overrides, err := s.repo.ListOverrides(ctx, base.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, "SCHEDULE_LOAD_FAILED", http.StatusInternalServerError, "could not load schedule overrides")
	}
	for _, ov := range overrides {
		if ov.Weekday != workDate {
			continue
		}
		if ov.EntryTime != nil {
			if m, perr := models.ParseClock(*ov.EntryTime); perr == nil {
				effective.EntryMinutes = m
			}
		}
		if ov.ExitTime != nil {
			if m, perr := models.ParseClock(*ov.ExitTime); perr == nil {
				effective.ExitMinutes = m
			}
		}
		if ov.BreakMinutes != nil {
			effective.BreakMinutes = *ov.BreakMinutes
		}
		if ov.ToleranceMinutes != nil {
			effective.ToleranceMinutes = *ov.ToleranceMinutes
		}
		if ov.DailyWorkHours != nil {
			effective.DailyWorkHours = *ov.DailyWorkHours
		}
		if ov.Working != nil {
			effective.Working = *ov.Working
		}
	}

	if employee.EntryOverride != nil {
		if m, perr := models.ParseClock(*employee.EntryOverride); perr == nil {
			effective.EntryMinutes = m
		}
	}
	if employee.ExitOverride != nil {
		if m, perr := models.ParseClock(*employee.ExitOverride); perr == nil {
			effective.ExitMinutes = m
		}
	}
	if employee.ToleranceOverride != nil {
		effective.ToleranceMinutes = *employee.ToleranceOverride
	}

	return &effective, nil
}

// ListActive returns active schedules.
func (s *ScheduleService) ListActive(ctx context.Context) ([]models.Schedule, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, "SCHEDULE_LIST_FAILED", http.StatusInternalServerError, "could not list schedules")
	}
	return rows, nil
}
