package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
)

func punchAt(t time.Time) models.RawPunch {
	return models.RawPunch{Timestamp: t, TerminalID: "term-1", AuthMethod: "fingerprint"}
}

func day(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestGroupByWorkDateNightCarryOver(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())

	punches := []models.RawPunch{
		punchAt(day(2025, 3, 10, 21, 55)),
		punchAt(day(2025, 3, 11, 2, 10)),
		punchAt(day(2025, 3, 11, 5, 45)),
	}
	groups := svc.GroupByWorkDate(punches)

	require.Len(t, groups, 1)
	group, ok := groups["2025-03-10"]
	require.True(t, ok)
	assert.Len(t, group, 3)
}

func TestGroupByWorkDateNoCarryOverWithoutNightStart(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())

	punches := []models.RawPunch{
		punchAt(day(2025, 3, 10, 8, 0)),
		punchAt(day(2025, 3, 10, 17, 0)),
		punchAt(day(2025, 3, 11, 2, 10)),
	}
	groups := svc.GroupByWorkDate(punches)

	require.Len(t, groups, 2)
	assert.Len(t, groups["2025-03-10"], 2)
	assert.Len(t, groups["2025-03-11"], 1)
}

func TestGroupByWorkDateEarlyMorningWithDaytimePunchesStays(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())

	// A day that also has daytime punches never merges backwards.
	punches := []models.RawPunch{
		punchAt(day(2025, 3, 10, 22, 0)),
		punchAt(day(2025, 3, 11, 1, 0)),
		punchAt(day(2025, 3, 11, 8, 0)),
	}
	groups := svc.GroupByWorkDate(punches)

	require.Len(t, groups, 2)
	assert.Len(t, groups["2025-03-11"], 2)
}

func TestDeduplicateKeepsFirstInEntryPeriod(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())

	punches := []models.RawPunch{
		punchAt(day(2025, 3, 10, 7, 58)),
		punchAt(day(2025, 3, 10, 7, 59)),
		punchAt(day(2025, 3, 10, 8, 1)),
	}
	out := svc.Deduplicate(punches, 5)

	require.Len(t, out, 1)
	assert.Equal(t, day(2025, 3, 10, 7, 58), out[0].Timestamp)
}

func TestDeduplicateKeepsLastOutsideEntryPeriod(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())

	punches := []models.RawPunch{
		punchAt(day(2025, 3, 10, 17, 0)),
		punchAt(day(2025, 3, 10, 17, 2)),
		punchAt(day(2025, 3, 10, 17, 4)),
	}
	out := svc.Deduplicate(punches, 5)

	require.Len(t, out, 1)
	assert.Equal(t, day(2025, 3, 10, 17, 4), out[0].Timestamp)
}

func TestDeduplicateChainedClusterCollapsesOnce(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())

	// Consecutive gaps inside the window chain into one cluster even when the
	// span exceeds the window.
	punches := []models.RawPunch{
		punchAt(day(2025, 3, 10, 17, 0)),
		punchAt(day(2025, 3, 10, 17, 4)),
		punchAt(day(2025, 3, 10, 17, 8)),
		punchAt(day(2025, 3, 10, 17, 12)),
	}
	out := svc.Deduplicate(punches, 5)

	require.Len(t, out, 1)
	assert.Equal(t, day(2025, 3, 10, 17, 12), out[0].Timestamp)
}

func TestDeduplicateIsIdempotent(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())

	punches := []models.RawPunch{
		punchAt(day(2025, 3, 10, 7, 58)),
		punchAt(day(2025, 3, 10, 7, 59)),
		punchAt(day(2025, 3, 10, 17, 5)),
	}
	once := svc.Deduplicate(punches, 5)
	twice := svc.Deduplicate(once, 5)
	assert.Equal(t, once, twice)
}

func TestBuildRecordSimpleDay(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())
	settings := models.DefaultEngineSettings()
	workDate := day(2025, 3, 10, 0, 0)

	punches := []models.RawPunch{
		punchAt(day(2025, 3, 10, 7, 58)),
		punchAt(day(2025, 3, 10, 17, 5)),
	}
	record := svc.BuildRecord("emp-1", workDate, punches, settings, models.HolidaySet{})

	require.NotNil(t, record)
	require.NotNil(t, record.CheckIn)
	require.NotNil(t, record.CheckOut)
	assert.Equal(t, day(2025, 3, 10, 7, 58), *record.CheckIn)
	assert.Equal(t, day(2025, 3, 10, 17, 5), *record.CheckOut)
	assert.False(t, record.RequiresReview)
	assert.Len(t, record.RawPunches, 2)
	assert.Equal(t, models.PunchRoleIn, record.RawPunches[0].Role)
	assert.Equal(t, models.PunchRoleOut, record.RawPunches[1].Role)
}

func TestBuildRecordKeepsCollapsedTaps(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())
	settings := models.DefaultEngineSettings()

	// Twelve rapid taps at the entry terminal plus one checkout. Dedup pairs
	// the day from two punches, but all thirteen must survive on the record.
	var punches []models.RawPunch
	for m := 0; m < 12; m++ {
		punches = append(punches, punchAt(day(2025, 3, 10, 7, 50+m)))
	}
	punches = append(punches, punchAt(day(2025, 3, 10, 17, 5)))

	record := svc.BuildRecord("emp-1", day(2025, 3, 10, 0, 0), punches, settings, models.HolidaySet{})

	require.NotNil(t, record)
	require.NotNil(t, record.CheckIn)
	require.NotNil(t, record.CheckOut)
	assert.Equal(t, day(2025, 3, 10, 7, 50), *record.CheckIn)
	assert.Equal(t, day(2025, 3, 10, 17, 5), *record.CheckOut)

	require.Len(t, record.RawPunches, 13)
	assert.Equal(t, models.PunchRoleIn, record.RawPunches[0].Role)
	assert.Equal(t, models.PunchRoleOut, record.RawPunches[12].Role)
	for _, p := range record.RawPunches[1:12] {
		assert.Equal(t, models.PunchRoleUnknown, p.Role)
	}
}

func TestBuildRecordSinglePunchRequiresReview(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())
	settings := models.DefaultEngineSettings()

	record := svc.BuildRecord("emp-1", day(2025, 3, 10, 0, 0), []models.RawPunch{
		punchAt(day(2025, 3, 10, 7, 58)),
	}, settings, models.HolidaySet{})

	require.NotNil(t, record)
	require.NotNil(t, record.CheckIn)
	assert.Nil(t, record.CheckOut)
	assert.True(t, record.RequiresReview)
}

func TestBuildRecordTwoClosePunchesAreNotAShift(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())
	settings := models.DefaultEngineSettings()

	// Two punches nine minutes apart survive dedup as separate clusters but
	// cannot qualify as a check-in plus check-out.
	record := svc.BuildRecord("emp-1", day(2025, 3, 10, 0, 0), []models.RawPunch{
		punchAt(day(2025, 3, 10, 11, 0)),
		punchAt(day(2025, 3, 10, 11, 9)),
	}, settings, models.HolidaySet{})

	require.NotNil(t, record)
	assert.Nil(t, record.CheckOut)
	assert.True(t, record.RequiresReview)
}

func TestBuildRecordLunchPair(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())
	settings := models.DefaultEngineSettings()

	record := svc.BuildRecord("emp-1", day(2025, 3, 10, 0, 0), []models.RawPunch{
		punchAt(day(2025, 3, 10, 7, 58)),
		punchAt(day(2025, 3, 10, 13, 0)),
		punchAt(day(2025, 3, 10, 13, 45)),
		punchAt(day(2025, 3, 10, 17, 5)),
	}, settings, models.HolidaySet{})

	require.NotNil(t, record)
	require.NotNil(t, record.LunchOut)
	require.NotNil(t, record.LunchIn)
	assert.Equal(t, day(2025, 3, 10, 13, 0), *record.LunchOut)
	assert.Equal(t, day(2025, 3, 10, 13, 45), *record.LunchIn)
	assert.Equal(t, 45, record.BreakMinutes)
	assert.Equal(t, models.PunchRoleLunchOut, record.RawPunches[1].Role)
	assert.Equal(t, models.PunchRoleLunchIn, record.RawPunches[2].Role)
}

func TestBuildRecordThreePunchesNoLunchPair(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())
	settings := models.DefaultEngineSettings()

	record := svc.BuildRecord("emp-1", day(2025, 3, 10, 0, 0), []models.RawPunch{
		punchAt(day(2025, 3, 10, 7, 58)),
		punchAt(day(2025, 3, 10, 13, 0)),
		punchAt(day(2025, 3, 10, 17, 5)),
	}, settings, models.HolidaySet{})

	require.NotNil(t, record)
	assert.Nil(t, record.LunchOut)
	assert.Nil(t, record.LunchIn)
	assert.Equal(t, 0, record.BreakMinutes)
}

func TestBuildRecordEmptyAfterDedupReturnsNil(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())
	settings := models.DefaultEngineSettings()

	record := svc.BuildRecord("emp-1", day(2025, 3, 10, 0, 0), nil, settings, models.HolidaySet{})
	assert.Nil(t, record)
}

func TestBuildRecordHolidayAndWeekendFlags(t *testing.T) {
	svc := NewReconcileService(zap.NewNop())
	settings := models.DefaultEngineSettings()
	// 2025-03-15 is a Saturday.
	workDate := day(2025, 3, 15, 0, 0)
	holidays := models.HolidaySet{models.DateKey(workDate): true}

	record := svc.BuildRecord("emp-1", workDate, []models.RawPunch{
		punchAt(day(2025, 3, 15, 8, 0)),
		punchAt(day(2025, 3, 15, 14, 0)),
	}, settings, holidays)

	require.NotNil(t, record)
	assert.True(t, record.IsHoliday)
	assert.True(t, record.IsWeekend)
}
