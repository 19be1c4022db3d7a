package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
)

type fakeAnomalyRepo struct {
	inserted []models.AttendanceAnomaly
	open     map[string]map[models.AnomalyType]bool
	statuses map[string]models.AnomalyStatus
	byID     map[string]*models.AttendanceAnomaly
}

func (f *fakeAnomalyRepo) OpenExists(ctx context.Context, attendanceID string, anomalyType models.AnomalyType) (bool, error) {
	return f.open[attendanceID][anomalyType], nil
}

func (f *fakeAnomalyRepo) Insert(ctx context.Context, anomaly *models.AttendanceAnomaly) error {
	f.inserted = append(f.inserted, *anomaly)
	if f.open == nil {
		f.open = make(map[string]map[models.AnomalyType]bool)
	}
	if f.open[anomaly.AttendanceID] == nil {
		f.open[anomaly.AttendanceID] = make(map[models.AnomalyType]bool)
	}
	f.open[anomaly.AttendanceID][anomaly.Type] = true
	return nil
}

func (f *fakeAnomalyRepo) CountOpen(ctx context.Context, attendanceID string) (int, error) {
	return len(f.open[attendanceID]), nil
}

func (f *fakeAnomalyRepo) GetByID(ctx context.Context, id string) (*models.AttendanceAnomaly, error) {
	return f.byID[id], nil
}

func (f *fakeAnomalyRepo) UpdateStatus(ctx context.Context, id string, status models.AnomalyStatus, resolvedBy string) error {
	if f.statuses == nil {
		f.statuses = make(map[string]models.AnomalyStatus)
	}
	f.statuses[id] = status
	if anomaly, ok := f.byID[id]; ok {
		delete(f.open[anomaly.AttendanceID], anomaly.Type)
	}
	return nil
}

func (f *fakeAnomalyRepo) List(ctx context.Context, filter models.AnomalyFilter) ([]models.AttendanceAnomaly, int, error) {
	return f.inserted, len(f.inserted), nil
}

type fakeAnomalyAttendanceRepo struct {
	counts map[string]int
}

func (f *fakeAnomalyAttendanceRepo) UpdateAnomalyCount(ctx context.Context, attendanceID string, count int) error {
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[attendanceID] = count
	return nil
}

func findingTypes(anomalies []models.AttendanceAnomaly) []models.AnomalyType {
	types := make([]models.AnomalyType, 0, len(anomalies))
	for _, a := range anomalies {
		types = append(types, a.Type)
	}
	return types
}

func TestDetectMissingCheckout(t *testing.T) {
	repo := &fakeAnomalyRepo{}
	attRepo := &fakeAnomalyAttendanceRepo{}
	svc := NewAnomalyService(repo, attRepo, nil, zap.NewNop())
	settings := models.DefaultEngineSettings()

	checkIn := day(2025, 3, 10, 8, 0)
	record := &models.AttendanceRecord{
		ID:       "att-1",
		CheckIn:  &checkIn,
		WorkDate: day(2025, 3, 10, 0, 0),
		Status:   models.AttendanceStatusPresent,
	}

	inserted, err := svc.Detect(context.Background(), record, dayShift(), settings, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Contains(t, findingTypes(repo.inserted), models.AnomalyTypeMissingCheckout)
	assert.Equal(t, 1, record.AnomalyCount)
	assert.True(t, record.HasAnomalies)
	assert.Equal(t, 1, attRepo.counts["att-1"])
}

func TestDetectIsIdempotent(t *testing.T) {
	repo := &fakeAnomalyRepo{}
	svc := NewAnomalyService(repo, &fakeAnomalyAttendanceRepo{}, nil, zap.NewNop())
	settings := models.DefaultEngineSettings()

	checkIn := day(2025, 3, 10, 8, 0)
	record := &models.AttendanceRecord{
		ID:       "att-1",
		CheckIn:  &checkIn,
		WorkDate: day(2025, 3, 10, 0, 0),
	}

	first, err := svc.Detect(context.Background(), record, dayShift(), settings, nil)
	require.NoError(t, err)
	second, err := svc.Detect(context.Background(), record, dayShift(), settings, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	assert.Len(t, repo.inserted, 1)
	assert.Equal(t, 1, record.AnomalyCount)
}

func TestDetectUnauthorizedOvertimeAndNightWork(t *testing.T) {
	repo := &fakeAnomalyRepo{}
	svc := NewAnomalyService(repo, &fakeAnomalyAttendanceRepo{}, nil, zap.NewNop())
	settings := models.DefaultEngineSettings()

	checkIn := day(2025, 3, 10, 14, 0)
	checkOut := day(2025, 3, 11, 2, 0)
	record := &models.AttendanceRecord{
		ID:              "att-1",
		CheckIn:         &checkIn,
		CheckOut:        &checkOut,
		WorkDate:        day(2025, 3, 10, 0, 0),
		WorkedHours:     8,
		OvertimeHours:   1,
		NightShiftHours: 2,
	}

	_, err := svc.Detect(context.Background(), record, dayShift(), settings, nil)
	require.NoError(t, err)

	types := findingTypes(repo.inserted)
	assert.Contains(t, types, models.AnomalyTypeUnauthorizedOvertime)
	assert.Contains(t, types, models.AnomalyTypeUnauthorizedNightWork)

	for _, a := range repo.inserted {
		if a.Type == models.AnomalyTypeUnauthorizedNightWork {
			assert.Equal(t, models.AnomalySeverityCritical, a.Severity)
		}
	}
}

func TestDetectAuthorizedExcessIsQuiet(t *testing.T) {
	repo := &fakeAnomalyRepo{}
	svc := NewAnomalyService(repo, &fakeAnomalyAttendanceRepo{}, nil, zap.NewNop())
	settings := models.DefaultEngineSettings()

	checkIn := day(2025, 3, 10, 8, 0)
	checkOut := day(2025, 3, 10, 19, 0)
	record := &models.AttendanceRecord{
		ID:            "att-1",
		CheckIn:       &checkIn,
		CheckOut:      &checkOut,
		WorkDate:      day(2025, 3, 10, 0, 0),
		WorkedHours:   8,
		OvertimeHours: 2,
	}
	// A lunch pair keeps the missing-lunch rule out of the picture.
	lunchOut := day(2025, 3, 10, 13, 0)
	lunchIn := day(2025, 3, 10, 14, 0)
	record.LunchOut = &lunchOut
	record.LunchIn = &lunchIn
	record.BreakMinutes = 60

	auths := []models.Authorization{{
		Type:   models.AuthorizationTypeOvertime,
		Status: models.AuthorizationStatusApproved,
		Hours:  2,
	}}

	inserted, err := svc.Detect(context.Background(), record, dayShift(), settings, auths)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.False(t, record.HasAnomalies)
}

func TestDetectLateArrivalSeverityThresholds(t *testing.T) {
	settings := models.DefaultEngineSettings()
	checkIn := day(2025, 3, 10, 8, 0)
	checkOut := day(2025, 3, 10, 17, 0)

	base := func(late int) *models.AttendanceRecord {
		return &models.AttendanceRecord{
			ID:           "att-1",
			CheckIn:      &checkIn,
			CheckOut:     &checkOut,
			WorkDate:     day(2025, 3, 10, 0, 0),
			WorkedHours:  4,
			LateMinutes:  late,
			BreakMinutes: 60,
		}
	}

	cases := []struct {
		late     int
		fires    bool
		severity models.AnomalySeverity
	}{
		{late: 20, fires: false},
		{late: 45, fires: true, severity: models.AnomalySeverityInfo},
		{late: 75, fires: true, severity: models.AnomalySeverityWarning},
	}
	for _, tc := range cases {
		repo := &fakeAnomalyRepo{}
		svc := NewAnomalyService(repo, &fakeAnomalyAttendanceRepo{}, nil, zap.NewNop())

		_, err := svc.Detect(context.Background(), base(tc.late), dayShift(), settings, nil)
		require.NoError(t, err)

		found := false
		for _, a := range repo.inserted {
			if a.Type == models.AnomalyTypeLateArrival {
				found = true
				assert.Equal(t, tc.severity, a.Severity)
				assert.Equal(t, tc.late, a.DeviationMinutes)
			}
		}
		assert.Equal(t, tc.fires, found, "late=%d", tc.late)
	}
}

func TestDetectExcessiveBreak(t *testing.T) {
	repo := &fakeAnomalyRepo{}
	svc := NewAnomalyService(repo, &fakeAnomalyAttendanceRepo{}, nil, zap.NewNop())
	settings := models.DefaultEngineSettings()

	checkIn := day(2025, 3, 10, 8, 0)
	checkOut := day(2025, 3, 10, 17, 0)
	lunchOut := day(2025, 3, 10, 13, 0)
	lunchIn := day(2025, 3, 10, 14, 40)
	record := &models.AttendanceRecord{
		ID:           "att-1",
		CheckIn:      &checkIn,
		CheckOut:     &checkOut,
		LunchOut:     &lunchOut,
		LunchIn:      &lunchIn,
		WorkDate:     day(2025, 3, 10, 0, 0),
		WorkedHours:  7,
		BreakMinutes: 100,
	}

	_, err := svc.Detect(context.Background(), record, dayShift(), settings, nil)
	require.NoError(t, err)

	types := findingTypes(repo.inserted)
	require.Contains(t, types, models.AnomalyTypeExcessiveBreak)
	for _, a := range repo.inserted {
		if a.Type == models.AnomalyTypeExcessiveBreak {
			// 100 minutes against the 60 allowed plus 15 deviation tolerance.
			assert.Equal(t, 25, a.DeviationMinutes)
		}
	}
}

func TestDetectDuplicatePunches(t *testing.T) {
	repo := &fakeAnomalyRepo{}
	svc := NewAnomalyService(repo, &fakeAnomalyAttendanceRepo{}, nil, zap.NewNop())
	settings := models.DefaultEngineSettings()

	checkIn := day(2025, 3, 10, 8, 0)
	checkOut := day(2025, 3, 10, 17, 0)
	punches := make(models.AnnotatedPunchList, 9)
	for i := range punches {
		punches[i] = models.AnnotatedPunch{Time: checkIn, Role: models.PunchRoleUnknown}
	}
	lunchOut := day(2025, 3, 10, 13, 0)
	lunchIn := day(2025, 3, 10, 14, 0)
	record := &models.AttendanceRecord{
		ID:           "att-1",
		CheckIn:      &checkIn,
		CheckOut:     &checkOut,
		LunchOut:     &lunchOut,
		LunchIn:      &lunchIn,
		WorkDate:     day(2025, 3, 10, 0, 0),
		WorkedHours:  8,
		BreakMinutes: 60,
		RawPunches:   punches,
	}

	_, err := svc.Detect(context.Background(), record, dayShift(), settings, nil)
	require.NoError(t, err)
	assert.Contains(t, findingTypes(repo.inserted), models.AnomalyTypeDuplicatePunches)
}

func TestDetectDuplicatePunchesFromRapidTaps(t *testing.T) {
	repo := &fakeAnomalyRepo{}
	svc := NewAnomalyService(repo, &fakeAnomalyAttendanceRepo{}, nil, zap.NewNop())
	reconcile := NewReconcileService(zap.NewNop())
	settings := models.DefaultEngineSettings()

	// Taps inside the dedup window collapse for pairing but still count
	// against the per-day punch ceiling.
	var punches []models.RawPunch
	for m := 0; m < 12; m++ {
		punches = append(punches, punchAt(day(2025, 3, 10, 7, 50+m)))
	}
	punches = append(punches, punchAt(day(2025, 3, 10, 17, 5)))
	record := reconcile.BuildRecord("emp-1", day(2025, 3, 10, 0, 0), punches, settings, models.HolidaySet{})
	require.NotNil(t, record)
	record.ID = "att-1"

	_, err := svc.Detect(context.Background(), record, dayShift(), settings, nil)
	require.NoError(t, err)
	assert.Contains(t, findingTypes(repo.inserted), models.AnomalyTypeDuplicatePunches)
}

func TestDetectEarlyDepartureExitPermission(t *testing.T) {
	settings := models.DefaultEngineSettings()
	checkIn := day(2025, 3, 10, 8, 0)
	checkOut := day(2025, 3, 10, 12, 0)
	base := func() *models.AttendanceRecord {
		return &models.AttendanceRecord{
			ID:             "att-1",
			CheckIn:        &checkIn,
			CheckOut:       &checkOut,
			WorkDate:       day(2025, 3, 10, 0, 0),
			WorkedHours:    4,
			EarlyDeparture: 300,
		}
	}

	repo := &fakeAnomalyRepo{}
	svc := NewAnomalyService(repo, &fakeAnomalyAttendanceRepo{}, nil, zap.NewNop())
	_, err := svc.Detect(context.Background(), base(), dayShift(), settings, nil)
	require.NoError(t, err)
	assert.Contains(t, findingTypes(repo.inserted), models.AnomalyTypeEarlyDeparture)

	// An approved exit permission without an hour figure still excuses the
	// departure, matching the status resolution.
	repo = &fakeAnomalyRepo{}
	svc = NewAnomalyService(repo, &fakeAnomalyAttendanceRepo{}, nil, zap.NewNop())
	auths := []models.Authorization{{
		Type:   models.AuthorizationTypeExitPermission,
		Status: models.AuthorizationStatusApproved,
		Hours:  0,
	}}
	_, err = svc.Detect(context.Background(), base(), dayShift(), settings, auths)
	require.NoError(t, err)
	assert.NotContains(t, findingTypes(repo.inserted), models.AnomalyTypeEarlyDeparture)
}

func TestDetectExcessiveBreakZeroBreakSchedule(t *testing.T) {
	repo := &fakeAnomalyRepo{}
	svc := NewAnomalyService(repo, &fakeAnomalyAttendanceRepo{}, nil, zap.NewNop())
	settings := models.DefaultEngineSettings()

	schedule := dayShift()
	schedule.BreakMinutes = 0

	checkIn := day(2025, 3, 10, 8, 0)
	checkOut := day(2025, 3, 10, 17, 0)
	lunchOut := day(2025, 3, 10, 13, 0)
	lunchIn := day(2025, 3, 10, 13, 40)
	record := &models.AttendanceRecord{
		ID:           "att-1",
		CheckIn:      &checkIn,
		CheckOut:     &checkOut,
		LunchOut:     &lunchOut,
		LunchIn:      &lunchIn,
		WorkDate:     day(2025, 3, 10, 0, 0),
		WorkedHours:  8,
		BreakMinutes: 40,
	}

	_, err := svc.Detect(context.Background(), record, schedule, settings, nil)
	require.NoError(t, err)

	types := findingTypes(repo.inserted)
	require.Contains(t, types, models.AnomalyTypeExcessiveBreak)
	for _, a := range repo.inserted {
		if a.Type == models.AnomalyTypeExcessiveBreak {
			// 40 recorded minutes against no scheduled break plus the 15
			// minute deviation tolerance.
			assert.Equal(t, 25, a.DeviationMinutes)
		}
	}
}

func TestResolveRefreshesCounters(t *testing.T) {
	repo := &fakeAnomalyRepo{
		open: map[string]map[models.AnomalyType]bool{
			"att-1": {models.AnomalyTypeMissingCheckout: true},
		},
		byID: map[string]*models.AttendanceAnomaly{
			"an-1": {ID: "an-1", AttendanceID: "att-1", Type: models.AnomalyTypeMissingCheckout},
		},
	}
	attRepo := &fakeAnomalyAttendanceRepo{}
	svc := NewAnomalyService(repo, attRepo, nil, zap.NewNop())

	err := svc.Resolve(context.Background(), "an-1", models.AnomalyStatusResolved, "hr@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.AnomalyStatusResolved, repo.statuses["an-1"])
	assert.Equal(t, 0, attRepo.counts["att-1"])
}
