package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
)

type fakePunchRepo struct {
	punches []models.RawPunch
	err     error

	lastFrom time.Time
	lastTo   time.Time
}

func (f *fakePunchRepo) ListWindow(ctx context.Context, from, to time.Time) ([]models.RawPunch, error) {
	f.lastFrom, f.lastTo = from, to
	if f.err != nil {
		return nil, f.err
	}
	var out []models.RawPunch
	for _, p := range f.punches {
		if !p.Timestamp.Before(from) && !p.Timestamp.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeSyncAttendanceRepo struct {
	mu      sync.Mutex
	records map[string]*models.AttendanceRecord
	upserts int
}

func attendanceKey(employeeID string, workDate time.Time) string {
	return employeeID + "@" + models.DateKey(workDate)
}

func (f *fakeSyncAttendanceRepo) GetByEmployeeDate(ctx context.Context, employeeID string, workDate time.Time) (*models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[attendanceKey(employeeID, workDate)]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSyncAttendanceRepo) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records == nil {
		f.records = make(map[string]*models.AttendanceRecord)
	}
	key := attendanceKey(record.EmployeeID, record.WorkDate)
	if existing, ok := f.records[key]; ok {
		record.ID = existing.ID
	} else if record.ID == "" {
		record.ID = "att-" + key
	}
	f.upserts++
	cp := *record
	f.records[key] = &cp
	out := cp
	return &out, nil
}

func (f *fakeSyncAttendanceRepo) UpdateAnomalyCount(ctx context.Context, attendanceID string, count int) error {
	return nil
}

type fakeSyncRunRepo struct {
	mu        sync.Mutex
	watermark time.Time
	runs      []*models.SyncRun
}

func (f *fakeSyncRunRepo) CreateRun(ctx context.Context, run *models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.ID = "run-1"
	run.Status = models.SyncRunRunning
	run.StartedAt = time.Now()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeSyncRunRepo) FinishRun(ctx context.Context, run *models.SyncRun) error {
	return nil
}

func (f *fakeSyncRunRepo) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, run := range f.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSyncRunRepo) LastCompletedWindowEnd(ctx context.Context) (time.Time, error) {
	return f.watermark, nil
}

func (f *fakeSyncRunRepo) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	return nil, nil
}

type fakeSyncAuthRepo struct {
	auths []models.Authorization
}

func (f *fakeSyncAuthRepo) ListForDate(ctx context.Context, employeeID string, workDate time.Time) ([]models.Authorization, error) {
	return f.auths, nil
}

type fakeSyncIncidentRepo struct {
	incidents []models.Incident
}

func (f *fakeSyncIncidentRepo) ListApprovedForDate(ctx context.Context, employeeID string, workDate time.Time) ([]models.Incident, error) {
	return f.incidents, nil
}

type syncFixture struct {
	punches    *fakePunchRepo
	attendance *fakeSyncAttendanceRepo
	runs       *fakeSyncRunRepo
	anomalies  *fakeAnomalyRepo
	service    *SyncService
}

func newSyncFixture(t *testing.T, employees ...models.Employee) *syncFixture {
	t.Helper()
	logger := zap.NewNop()

	f := &syncFixture{
		punches:    &fakePunchRepo{},
		attendance: &fakeSyncAttendanceRepo{},
		runs:       &fakeSyncRunRepo{},
		anomalies:  &fakeAnomalyRepo{},
	}
	scheduleRepo := &fakeScheduleRepo{schedules: map[string]*models.Schedule{"sch-1": baseSchedule()}}
	settingsSvc := NewSettingsService(&fakeSettingsRepo{}, nil, time.Minute, logger)
	workdaySvc := NewWorkdayService(&fakeLateRepo{}, &fakeIncidentRepo{}, logger)
	anomalySvc := NewAnomalyService(f.anomalies, f.attendance, nil, logger)

	f.service = NewSyncService(
		f.punches,
		&fakeEmployeeRepo{employees: employees},
		&fakeHolidayRepo{},
		f.attendance,
		f.runs,
		&fakeSyncAuthRepo{},
		&fakeSyncIncidentRepo{},
		NewReconcileService(logger),
		workdaySvc,
		anomalySvc,
		NewScheduleService(scheduleRepo, logger),
		settingsSvc,
		nil,
		logger,
		SyncConfig{Concurrency: 2, WatermarkOverlap: time.Hour, RunTimeout: time.Minute},
	)
	return f
}

// syncMonday pins the fixtures to a regular working weekday.
func syncMonday(hh, mm int) time.Time {
	return day(2025, time.March, 10, hh, mm)
}

func TestRunOncePipeline(t *testing.T) {
	employee := models.Employee{ID: "emp-1", Code: "1001", ScheduleID: "sch-1", Active: true}
	f := newSyncFixture(t, employee)

	f.runs.watermark = syncMonday(0, 0)
	f.punches.punches = []models.RawPunch{
		{SubjectID: "1001", Timestamp: syncMonday(7, 58)},
		{SubjectID: "1001", Timestamp: syncMonday(17, 5)},
	}

	run, err := f.service.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, models.SyncRunCompleted, run.Status)
	assert.Equal(t, 2, run.PunchesRead)
	assert.Equal(t, 1, run.RecordsProcessed)
	assert.Equal(t, 0, run.RecordsFailed)

	workDate := syncMonday(0, 0)
	stored, gerr := f.attendance.GetByEmployeeDate(context.Background(), "emp-1", workDate)
	require.NoError(t, gerr)
	require.NotNil(t, stored.CheckIn)
	require.NotNil(t, stored.CheckOut)
	assert.Equal(t, 8.0, stored.WorkedHours)
}

func TestRunOnceIsIdempotent(t *testing.T) {
	employee := models.Employee{ID: "emp-1", Code: "1001", ScheduleID: "sch-1", Active: true}
	f := newSyncFixture(t, employee)
	f.runs.watermark = syncMonday(0, 0)
	f.punches.punches = []models.RawPunch{
		{SubjectID: "1001", Timestamp: syncMonday(7, 58)},
		{SubjectID: "1001", Timestamp: syncMonday(17, 5)},
	}

	first, err := f.service.RunOnce(context.Background())
	require.NoError(t, err)
	second, err := f.service.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, first.RecordsProcessed)
	assert.Equal(t, 1, second.RecordsProcessed)
	// Both runs converge on one stored record.
	assert.Len(t, f.attendance.records, 1)
	assert.Equal(t, 2, f.attendance.upserts)
}

func TestRunOnceSkipsUnknownSubjects(t *testing.T) {
	employee := models.Employee{ID: "emp-1", Code: "1001", ScheduleID: "sch-1", Active: true}
	f := newSyncFixture(t, employee)
	f.runs.watermark = syncMonday(0, 0)
	f.punches.punches = []models.RawPunch{
		{SubjectID: "9999", Timestamp: syncMonday(8, 0)},
		{SubjectID: "9999", Timestamp: syncMonday(17, 0)},
	}

	run, err := f.service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, run.PunchesRead)
	assert.Equal(t, 0, run.RecordsProcessed)
	assert.Empty(t, f.attendance.records)
}

func TestRunOncePreservesManualCorrections(t *testing.T) {
	employee := models.Employee{ID: "emp-1", Code: "1001", ScheduleID: "sch-1", Active: true}
	f := newSyncFixture(t, employee)

	editor := "hr@example.com"
	workDate := syncMonday(0, 0)
	corrected := &models.AttendanceRecord{
		ID:         "att-manual",
		EmployeeID: "emp-1",
		WorkDate:   workDate,
		EditedBy:   &editor,
	}
	f.attendance.records = map[string]*models.AttendanceRecord{
		attendanceKey("emp-1", workDate): corrected,
	}

	f.runs.watermark = syncMonday(0, 0)
	f.punches.punches = []models.RawPunch{
		{SubjectID: "1001", Timestamp: syncMonday(7, 58)},
		{SubjectID: "1001", Timestamp: syncMonday(17, 5)},
	}

	run, err := f.service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, run.RecordsProcessed)
	assert.Equal(t, 0, f.attendance.upserts)

	stored := f.attendance.records[attendanceKey("emp-1", workDate)]
	assert.Equal(t, "att-manual", stored.ID)
}

func TestRunOnceFailedPunchReadMarksRunFailed(t *testing.T) {
	employee := models.Employee{ID: "emp-1", Code: "1001", ScheduleID: "sch-1", Active: true}
	f := newSyncFixture(t, employee)
	f.punches.err = errors.New("punch store unreachable")

	run, err := f.service.RunOnce(context.Background())
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.SyncRunFailed, run.Status)
	require.NotNil(t, run.Error)
}

func TestRunOnceBootstrapWindow(t *testing.T) {
	f := newSyncFixture(t, models.Employee{ID: "emp-1", Code: "1001", ScheduleID: "sch-1", Active: true})

	_, err := f.service.RunOnce(context.Background())
	require.NoError(t, err)

	// With no completed run the window starts roughly a day back, never at
	// the epoch.
	assert.True(t, f.punches.lastFrom.After(time.Now().Add(-25*time.Hour)))
	assert.True(t, f.punches.lastFrom.Before(time.Now().Add(-23*time.Hour)))
}

func TestRunOnceWatermarkOverlap(t *testing.T) {
	f := newSyncFixture(t, models.Employee{ID: "emp-1", Code: "1001", ScheduleID: "sch-1", Active: true})
	watermark := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	f.runs.watermark = watermark

	_, err := f.service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, watermark.Add(-time.Hour), f.punches.lastFrom)
}
