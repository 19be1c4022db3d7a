package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
)

type fakeLateRepo struct {
	counts    map[string]int
	generated map[string]bool
	markTaken bool
	incErr    error
}

func (f *fakeLateRepo) key(employeeID string, year, week int) string {
	return fmt.Sprintf("%s-%d-%d", employeeID, year, week)
}

func (f *fakeLateRepo) Increment(ctx context.Context, employeeID string, year, week int) (*models.LateAccumulation, error) {
	if f.incErr != nil {
		return nil, f.incErr
	}
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	k := f.key(employeeID, year, week)
	f.counts[k]++
	return &models.LateAccumulation{
		ID:               k,
		EmployeeID:       employeeID,
		Year:             year,
		Week:             week,
		LateCount:        f.counts[k],
		AbsenceGenerated: f.generated[k],
	}, nil
}

func (f *fakeLateRepo) MarkAbsenceGenerated(ctx context.Context, id string) (bool, error) {
	if f.markTaken || f.generated[id] {
		return false, nil
	}
	if f.generated == nil {
		f.generated = make(map[string]bool)
	}
	f.generated[id] = true
	return true, nil
}

type fakeIncidentRepo struct {
	created []models.Incident
	err     error
}

func (f *fakeIncidentRepo) Create(ctx context.Context, incident *models.Incident) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, *incident)
	return nil
}

func dayShift() *models.EffectiveSchedule {
	return &models.EffectiveSchedule{
		ScheduleID:       "sch-1",
		EntryMinutes:     8 * 60,
		ExitMinutes:      17 * 60,
		BreakMinutes:     60,
		ToleranceMinutes: 10,
		DailyWorkHours:   8,
		Working:          true,
	}
}

func nightShift() *models.EffectiveSchedule {
	return &models.EffectiveSchedule{
		ScheduleID:       "sch-n",
		EntryMinutes:     22 * 60,
		ExitMinutes:      6 * 60,
		BreakMinutes:     30,
		ToleranceMinutes: 10,
		DailyWorkHours:   8,
		Working:          true,
		NightShift:       true,
	}
}

func recordWith(checkIn, checkOut time.Time, breakMinutes int) *models.AttendanceRecord {
	return &models.AttendanceRecord{
		EmployeeID:   "emp-1",
		WorkDate:     day(checkIn.Year(), checkIn.Month(), checkIn.Day(), 0, 0),
		CheckIn:      &checkIn,
		CheckOut:     &checkOut,
		BreakMinutes: breakMinutes,
		Status:       models.AttendanceStatusPresent,
	}
}

func newWorkday() *WorkdayService {
	return NewWorkdayService(&fakeLateRepo{}, &fakeIncidentRepo{}, zap.NewNop())
}

func TestComputeSimpleDay(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	record := recordWith(day(2025, 3, 10, 7, 58), day(2025, 3, 10, 17, 5), 60)

	svc.Compute(record, dayShift(), settings, nil, nil)

	assert.Equal(t, 0, record.LateMinutes)
	assert.Equal(t, 8.0, record.WorkedHours)
	assert.InDelta(t, 0.12, record.OvertimeHours, 0.02)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	// Two minutes early misses the five minute punctuality threshold.
	assert.False(t, record.PunctualityBonus)
}

func TestComputePunctualityBonus(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	record := recordWith(day(2025, 3, 10, 7, 50), day(2025, 3, 10, 17, 0), 60)

	svc.Compute(record, dayShift(), settings, nil, nil)
	assert.True(t, record.PunctualityBonus)
}

func TestComputeLateArrival(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	record := recordWith(day(2025, 3, 10, 8, 25), day(2025, 3, 10, 17, 0), 60)

	svc.Compute(record, dayShift(), settings, nil, nil)

	// 25 minutes past entry minus the 10 minute tolerance.
	assert.Equal(t, 15, record.LateMinutes)
	assert.Equal(t, models.AttendanceStatusLate, record.Status)
	assert.False(t, record.PunctualityBonus)
}

func TestComputeArrivalInsideToleranceIsNotLate(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	record := recordWith(day(2025, 3, 10, 8, 10), day(2025, 3, 10, 17, 0), 60)

	svc.Compute(record, dayShift(), settings, nil, nil)

	assert.Equal(t, 0, record.LateMinutes)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
}

func TestComputeLatenessFallsBackToSettingsTolerance(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	schedule := dayShift()
	schedule.ToleranceMinutes = 0

	// The configured 10 minute default covers an 08:08 arrival.
	inside := recordWith(day(2025, 3, 10, 8, 8), day(2025, 3, 10, 17, 0), 60)
	svc.Compute(inside, schedule, settings, nil, nil)
	assert.Equal(t, 0, inside.LateMinutes)

	outside := recordWith(day(2025, 3, 10, 8, 25), day(2025, 3, 10, 17, 0), 60)
	svc.Compute(outside, schedule, settings, nil, nil)
	assert.Equal(t, 15, outside.LateMinutes)
}

func TestComputeEntryPermissionNeutralisesLateness(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	record := recordWith(day(2025, 3, 10, 9, 0), day(2025, 3, 10, 17, 0), 60)
	auths := []models.Authorization{{
		Type:   models.AuthorizationTypeEntryPermit,
		Status: models.AuthorizationStatusApproved,
		Hours:  1,
	}}

	svc.Compute(record, dayShift(), settings, auths, nil)

	assert.Equal(t, 50, record.LateMinutes)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	assert.Equal(t, 1.0, record.PermissionHours)
	assert.InDelta(t, record.WorkedHours+1, record.TotalPayrollHours, 0.001)
}

func TestComputeOvertimeAndVeladaSplit(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	// 14:00 to 02:00 next day, no lunch pair: 12h span minus the default
	// 60 minute break leaves 11h, 3h over the daily target. The excess tail
	// runs 23:00-02:00, fully inside the 22:00-05:00 night window.
	record := recordWith(day(2025, 3, 10, 14, 0), day(2025, 3, 11, 2, 0), 0)
	auths := []models.Authorization{
		{Type: models.AuthorizationTypeOvertime, Status: models.AuthorizationStatusApproved, Hours: 3},
		{Type: models.AuthorizationTypeNightShift, Status: models.AuthorizationStatusApproved, Hours: 3},
	}

	svc.Compute(record, dayShift(), settings, auths, nil)

	assert.Equal(t, 8.0, record.WorkedHours)
	assert.InDelta(t, 3.0, record.NightShiftHours, 0.02)
	assert.InDelta(t, 0.0, record.OvertimeHours, 0.02)
}

func TestComputeVeladaBelowConfirmationWindowIsOvertime(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	// 11:00 to 22:20 with a one hour lunch leaves 10.33h, 2.33h of excess.
	// The excess tail only brushes the night window for 20 minutes, under the
	// 30 minute confirmation threshold, so all of it pays as overtime.
	record := recordWith(day(2025, 3, 10, 11, 0), day(2025, 3, 10, 22, 20), 60)

	svc.Compute(record, dayShift(), settings, nil, nil)

	assert.Equal(t, 8.0, record.WorkedHours)
	assert.Equal(t, 0.0, record.NightShiftHours)
	assert.InDelta(t, 2.33, record.OvertimeHours, 0.02)
}

func TestComputeUnauthorizedExcessStands(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	// 08:00 to 19:00 with a one hour lunch leaves 10h, 2h of daytime excess.
	record := recordWith(day(2025, 3, 10, 8, 0), day(2025, 3, 10, 19, 0), 60)

	svc.Compute(record, dayShift(), settings, nil, nil)

	assert.Equal(t, 8.0, record.WorkedHours)
	assert.InDelta(t, 2.0, record.OvertimeHours, 0.02)
	assert.Equal(t, 0.0, record.NightShiftHours)
}

func TestComputeAuthorizedOvertimeCap(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	record := recordWith(day(2025, 3, 10, 8, 0), day(2025, 3, 10, 19, 0), 60)
	auths := []models.Authorization{{
		Type:   models.AuthorizationTypeOvertime,
		Status: models.AuthorizationStatusApproved,
		Hours:  1,
	}}

	svc.Compute(record, dayShift(), settings, auths, nil)

	assert.InDelta(t, 1.0, record.OvertimeHours, 0.02)
}

func TestComputeShortShiftSkipsBreakFallback(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	// A 3h span stays under the 300 minute guard, so no default break applies.
	record := recordWith(day(2025, 3, 10, 8, 0), day(2025, 3, 10, 11, 0), 0)

	svc.Compute(record, dayShift(), settings, nil, nil)

	assert.Equal(t, 0, record.BreakMinutes)
	assert.Equal(t, 3.0, record.WorkedHours)
}

func TestComputePartialStatusUnderFourHours(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	// Exit permission keeps the early departure from downgrading further, so
	// the short worked span resolves to partial.
	record := recordWith(day(2025, 3, 10, 8, 0), day(2025, 3, 10, 11, 0), 0)
	auths := []models.Authorization{{
		Type:   models.AuthorizationTypeExitPermission,
		Status: models.AuthorizationStatusApproved,
		Hours:  6,
	}}

	svc.Compute(record, dayShift(), settings, auths, nil)
	assert.Equal(t, models.AttendanceStatusPartial, record.Status)
}

func TestComputeEarlyDepartureDowngradesToAbsent(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	// Leaving at 12:00 is 300 minutes early, above the 240 minute threshold.
	record := recordWith(day(2025, 3, 10, 8, 0), day(2025, 3, 10, 12, 0), 0)

	svc.Compute(record, dayShift(), settings, nil, nil)

	assert.Equal(t, 300, record.EarlyDeparture)
	assert.Equal(t, models.AttendanceStatusAbsent, record.Status)
	assert.False(t, record.PunctualityBonus)
}

func TestComputeEarlyDepartureWithExitPermission(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	record := recordWith(day(2025, 3, 10, 8, 0), day(2025, 3, 10, 12, 0), 0)
	auths := []models.Authorization{{
		Type:   models.AuthorizationTypeExitPermission,
		Status: models.AuthorizationStatusApproved,
		Hours:  5,
	}}

	svc.Compute(record, dayShift(), settings, auths, nil)

	assert.Equal(t, 300, record.EarlyDeparture)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
}

func TestComputeNightShiftDaytimeCheckInSkipsLateness(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	record := recordWith(day(2025, 3, 10, 10, 0), day(2025, 3, 10, 18, 0), 0)

	svc.Compute(record, nightShift(), settings, nil, nil)

	assert.Equal(t, 0, record.LateMinutes)
	assert.True(t, record.IsNightShift)
}

func TestComputeNightShiftLateInsideBand(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	record := recordWith(day(2025, 3, 10, 22, 30), day(2025, 3, 11, 6, 0), 0)

	svc.Compute(record, nightShift(), settings, nil, nil)

	// 30 minutes past entry minus the 10 minute tolerance.
	assert.Equal(t, 20, record.LateMinutes)
}

func TestComputeNightShiftBonusRequiresSixHours(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()

	long := recordWith(day(2025, 3, 10, 22, 0), day(2025, 3, 11, 6, 0), 30)
	svc.Compute(long, nightShift(), settings, nil, nil)
	assert.True(t, long.NightShiftBonus)

	short := recordWith(day(2025, 3, 10, 22, 0), day(2025, 3, 11, 1, 0), 0)
	svc.Compute(short, nightShift(), settings, nil, nil)
	assert.False(t, short.NightShiftBonus)
}

func TestComputeHolidayStatusWins(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	record := recordWith(day(2025, 3, 10, 8, 25), day(2025, 3, 10, 17, 0), 60)
	record.IsHoliday = true

	svc.Compute(record, dayShift(), settings, nil, nil)

	assert.Equal(t, models.AttendanceStatusHoliday, record.Status)
}

func TestComputeNoCheckInAbsent(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	record := &models.AttendanceRecord{
		EmployeeID: "emp-1",
		WorkDate:   day(2025, 3, 10, 0, 0),
		Status:     models.AttendanceStatusPresent,
	}

	svc.Compute(record, dayShift(), settings, nil, nil)
	assert.Equal(t, models.AttendanceStatusAbsent, record.Status)
}

func TestComputeNoCheckInCoveredByVacation(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	record := &models.AttendanceRecord{
		EmployeeID: "emp-1",
		WorkDate:   day(2025, 3, 10, 0, 0),
	}
	incidents := []models.Incident{{
		Category: models.IncidentCategoryVacation,
		Status:   models.IncidentStatusApproved,
	}}

	svc.Compute(record, dayShift(), settings, nil, incidents)
	assert.Equal(t, models.AttendanceStatusVacation, record.Status)
}

func TestComputeNoCheckInNonWorkingDay(t *testing.T) {
	svc := newWorkday()
	settings := models.DefaultEngineSettings()
	schedule := dayShift()
	schedule.Working = false
	record := &models.AttendanceRecord{
		EmployeeID: "emp-1",
		WorkDate:   day(2025, 3, 15, 0, 0),
		Status:     models.AttendanceStatusPresent,
	}

	svc.Compute(record, schedule, settings, nil, nil)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
}

func TestApplyLateAccumulationGeneratesAbsenceOnce(t *testing.T) {
	lateRepo := &fakeLateRepo{}
	incidentRepo := &fakeIncidentRepo{}
	svc := NewWorkdayService(lateRepo, incidentRepo, zap.NewNop())
	settings := models.DefaultEngineSettings()
	settings.LateToAbsenceCount = 3

	record := &models.AttendanceRecord{
		EmployeeID:  "emp-1",
		WorkDate:    day(2025, 3, 10, 0, 0),
		LateMinutes: 15,
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.ApplyLateAccumulation(context.Background(), record, settings, false))
	}
	require.Len(t, incidentRepo.created, 1)
	created := incidentRepo.created[0]
	assert.Equal(t, models.IncidentCategoryLateAccumulation, created.Category)
	assert.Equal(t, models.IncidentStatusApproved, created.Status)
	assert.False(t, created.Paid)
	assert.Equal(t, record.WorkDate, created.StartDate)

	// Past the threshold the flag blocks any further incident.
	require.NoError(t, svc.ApplyLateAccumulation(context.Background(), record, settings, false))
	assert.Len(t, incidentRepo.created, 1)
}

func TestApplyLateAccumulationSkipsWithEntryPermission(t *testing.T) {
	lateRepo := &fakeLateRepo{}
	svc := NewWorkdayService(lateRepo, &fakeIncidentRepo{}, zap.NewNop())
	settings := models.DefaultEngineSettings()

	record := &models.AttendanceRecord{
		EmployeeID:  "emp-1",
		WorkDate:    day(2025, 3, 10, 0, 0),
		LateMinutes: 15,
	}
	require.NoError(t, svc.ApplyLateAccumulation(context.Background(), record, settings, true))
	assert.Empty(t, lateRepo.counts)
}

func TestApplyLateAccumulationLosingCASCreatesNothing(t *testing.T) {
	lateRepo := &fakeLateRepo{markTaken: true}
	incidentRepo := &fakeIncidentRepo{}
	svc := NewWorkdayService(lateRepo, incidentRepo, zap.NewNop())
	settings := models.DefaultEngineSettings()
	settings.LateToAbsenceCount = 1

	record := &models.AttendanceRecord{
		EmployeeID:  "emp-1",
		WorkDate:    day(2025, 3, 10, 0, 0),
		LateMinutes: 15,
	}
	require.NoError(t, svc.ApplyLateAccumulation(context.Background(), record, settings, false))
	assert.Empty(t, incidentRepo.created)
}

func TestApplyLateAccumulationIncidentFailureIsNotFatal(t *testing.T) {
	lateRepo := &fakeLateRepo{}
	incidentRepo := &fakeIncidentRepo{err: errors.New("insert failed")}
	svc := NewWorkdayService(lateRepo, incidentRepo, zap.NewNop())
	settings := models.DefaultEngineSettings()
	settings.LateToAbsenceCount = 1

	record := &models.AttendanceRecord{
		EmployeeID:  "emp-1",
		WorkDate:    day(2025, 3, 10, 0, 0),
		LateMinutes: 15,
	}
	assert.NoError(t, svc.ApplyLateAccumulation(context.Background(), record, settings, false))
}

func TestHadEntryPermission(t *testing.T) {
	assert.False(t, HadEntryPermission(nil))
	assert.False(t, HadEntryPermission([]models.Authorization{{
		Type:   models.AuthorizationTypeEntryPermit,
		Status: models.AuthorizationStatusPending,
	}}))
	assert.True(t, HadEntryPermission([]models.Authorization{{
		Type:   models.AuthorizationTypeEntryPermit,
		Status: models.AuthorizationStatusApproved,
	}}))
}
