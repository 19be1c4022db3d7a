package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
)

type fakeScheduleRepo struct {
	schedules map[string]*models.Schedule
	overrides []models.DayScheduleOverride
}

func (f *fakeScheduleRepo) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	if s, ok := f.schedules[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeScheduleRepo) ListActive(ctx context.Context) ([]models.Schedule, error) {
	var out []models.Schedule
	for _, s := range f.schedules {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeScheduleRepo) ListOverrides(ctx context.Context, scheduleID string) ([]models.DayScheduleOverride, error) {
	return f.overrides, nil
}

func (f *fakeScheduleRepo) UpsertOverride(ctx context.Context, override *models.DayScheduleOverride) error {
	f.overrides = append(f.overrides, *override)
	return nil
}

func baseSchedule() *models.Schedule {
	return &models.Schedule{
		ID:               "sch-1",
		Name:             "office",
		EntryTime:        "08:00",
		ExitTime:         "17:00",
		BreakMinutes:     60,
		ToleranceMinutes: 10,
		DailyWorkHours:   8,
		WorkingDays:      "1,2,3,4,5",
		Active:           true,
	}
}

func TestEffectiveBaseSchedule(t *testing.T) {
	repo := &fakeScheduleRepo{schedules: map[string]*models.Schedule{"sch-1": baseSchedule()}}
	svc := NewScheduleService(repo, zap.NewNop())
	employee := &models.Employee{ID: "emp-1", ScheduleID: "sch-1"}

	effective, err := svc.Effective(context.Background(), employee, 1)
	require.NoError(t, err)
	assert.Equal(t, 480, effective.EntryMinutes)
	assert.Equal(t, 1020, effective.ExitMinutes)
	assert.Equal(t, 60, effective.BreakMinutes)
	assert.Equal(t, 10, effective.ToleranceMinutes)
	assert.True(t, effective.Working)
}

func TestEffectiveNonWorkingWeekday(t *testing.T) {
	repo := &fakeScheduleRepo{schedules: map[string]*models.Schedule{"sch-1": baseSchedule()}}
	svc := NewScheduleService(repo, zap.NewNop())
	employee := &models.Employee{ID: "emp-1", ScheduleID: "sch-1"}

	effective, err := svc.Effective(context.Background(), employee, 6)
	require.NoError(t, err)
	assert.False(t, effective.Working)
}

func TestEffectiveWeekdayOverride(t *testing.T) {
	entry := "09:00"
	working := true
	halfDay := 4.0
	repo := &fakeScheduleRepo{
		schedules: map[string]*models.Schedule{"sch-1": baseSchedule()},
		overrides: []models.DayScheduleOverride{{
			ScheduleID:     "sch-1",
			Weekday:        6,
			EntryTime:      &entry,
			DailyWorkHours: &halfDay,
			Working:        &working,
		}},
	}
	svc := NewScheduleService(repo, zap.NewNop())
	employee := &models.Employee{ID: "emp-1", ScheduleID: "sch-1"}

	effective, err := svc.Effective(context.Background(), employee, 6)
	require.NoError(t, err)
	assert.Equal(t, 540, effective.EntryMinutes)
	assert.Equal(t, 4.0, effective.DailyWorkHours)
	assert.True(t, effective.Working)

	// Overrides for other weekdays never leak in.
	monday, err := svc.Effective(context.Background(), employee, 1)
	require.NoError(t, err)
	assert.Equal(t, 480, monday.EntryMinutes)
}

func TestEffectiveEmployeeOverridesWinLast(t *testing.T) {
	dayEntry := "09:00"
	empEntry := "10:30"
	tolerance := 20
	repo := &fakeScheduleRepo{
		schedules: map[string]*models.Schedule{"sch-1": baseSchedule()},
		overrides: []models.DayScheduleOverride{{
			ScheduleID: "sch-1",
			Weekday:    1,
			EntryTime:  &dayEntry,
		}},
	}
	svc := NewScheduleService(repo, zap.NewNop())
	employee := &models.Employee{
		ID:                "emp-1",
		ScheduleID:        "sch-1",
		EntryOverride:     &empEntry,
		ToleranceOverride: &tolerance,
	}

	effective, err := svc.Effective(context.Background(), employee, 1)
	require.NoError(t, err)
	assert.Equal(t, 630, effective.EntryMinutes)
	assert.Equal(t, 20, effective.ToleranceMinutes)
}

func TestEffectiveUnknownScheduleIsNotFound(t *testing.T) {
	repo := &fakeScheduleRepo{}
	svc := NewScheduleService(repo, zap.NewNop())
	employee := &models.Employee{ID: "emp-1", ScheduleID: "missing"}

	_, err := svc.Effective(context.Background(), employee, 1)
	require.Error(t, err)
}
