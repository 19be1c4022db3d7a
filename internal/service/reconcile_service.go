package service

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
)

// ReconcileService turns a subject's raw punches into at most one attendance
// record per work date: overnight carry-over, duplicate suppression and
// check-in/out plus lunch-pair assignment. All derivation is pure; callers
// persist the result through the attendance upsert, which keeps re-runs
// idempotent.
type ReconcileService struct {
	logger *zap.Logger
}

// NewReconcileService constructs the service.
func NewReconcileService(logger *zap.Logger) *ReconcileService {
	return &ReconcileService{logger: logger}
}

// GroupByWorkDate buckets punches by the calendar date of their timestamp,
// then merges a date whose punches all fall between 00:00 and 06:00 into the
// previous date when that date clocked a punch at or after 20:00. A shift
// crossing midnight belongs to the day it started.
func (s *ReconcileService) GroupByWorkDate(punches []models.RawPunch) map[string][]models.RawPunch {
	groups := make(map[string][]models.RawPunch)
	for _, p := range punches {
		key := models.DateKey(p.Timestamp)
		groups[key] = append(groups[key], p)
	}
	for key := range groups {
		group := groups[key]
		sort.Slice(group, func(i, j int) bool { return group[i].Timestamp.Before(group[j].Timestamp) })
		groups[key] = group
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := groups[key]
		if !allBeforeHour(group, 6) {
			continue
		}
		day, err := time.Parse("2006-01-02", key)
		if err != nil {
			continue
		}
		prevKey := models.DateKey(day.AddDate(0, 0, -1))
		prev, ok := groups[prevKey]
		if !ok || !anyAtOrAfterHour(prev, 20) {
			continue
		}
		groups[prevKey] = append(prev, group...)
		delete(groups, key)
	}
	return groups
}

func allBeforeHour(punches []models.RawPunch, hour int) bool {
	if len(punches) == 0 {
		return false
	}
	for _, p := range punches {
		if p.Timestamp.Hour() >= hour {
			return false
		}
	}
	return true
}

func anyAtOrAfterHour(punches []models.RawPunch, hour int) bool {
	for _, p := range punches {
		if p.Timestamp.Hour() >= hour {
			return true
		}
	}
	return false
}

// Deduplicate collapses contiguous punch clusters whose consecutive gaps stay
// within the configured window. A cluster keeps its first punch when that
// punch lands in a recognised entry period, otherwise its last.
func (s *ReconcileService) Deduplicate(punches []models.RawPunch, windowMinutes int) []models.RawPunch {
	if len(punches) == 0 {
		return nil
	}
	if windowMinutes <= 0 {
		windowMinutes = 5
	}
	window := time.Duration(windowMinutes) * time.Minute

	sorted := sortedByTime(punches)

	var out []models.RawPunch
	clusterStart := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i].Timestamp.Sub(sorted[i-1].Timestamp) <= window {
			continue
		}
		cluster := sorted[clusterStart:i]
		if isEntryHour(cluster[0].Timestamp.Hour()) {
			out = append(out, cluster[0])
		} else {
			out = append(out, cluster[len(cluster)-1])
		}
		clusterStart = i
	}
	return out
}

// Entry periods cover morning arrivals, post-lunch returns and night-shift
// starts. Everything else is treated as an exit period.
func isEntryHour(hour int) bool {
	switch {
	case hour >= 5 && hour < 11:
		return true
	case hour >= 13 && hour < 15:
		return true
	case hour >= 22 || hour < 3:
		return true
	default:
		return false
	}
}

// minCheckoutGap guards against two quick duplicate taps being read as a
// full shift.
const minCheckoutGap = 10 * time.Minute

func sortedByTime(punches []models.RawPunch) []models.RawPunch {
	out := make([]models.RawPunch, len(punches))
	copy(out, punches)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// BuildRecord derives an attendance record from one work date's punches.
// Pairing runs over the deduplicated list, but the record keeps every raw
// punch of the day: taps collapsed by dedup stay visible with the plain punch
// role, so the stored list reflects what the terminal actually saw. Returns
// nil when dedup leaves no punches; the caller must not mutate any stored
// record in that case.
func (s *ReconcileService) BuildRecord(employeeID string, workDate time.Time, punches []models.RawPunch, settings models.EngineSettings, holidays models.HolidaySet) *models.AttendanceRecord {
	deduped := s.Deduplicate(punches, settings.DuplicatePunchWindowMinutes)
	if len(deduped) == 0 {
		return nil
	}

	record := &models.AttendanceRecord{
		EmployeeID: employeeID,
		WorkDate:   workDate,
		IsHoliday:  holidays.Contains(workDate),
		IsWeekend:  workDate.Weekday() == time.Saturday || workDate.Weekday() == time.Sunday,
		Status:     models.AttendanceStatusPresent,
	}

	checkIn := deduped[0].Timestamp
	record.CheckIn = &checkIn

	last := deduped[len(deduped)-1].Timestamp
	if last.Sub(checkIn) >= minCheckoutGap {
		checkOut := last
		record.CheckOut = &checkOut
	} else {
		// Check-in without check-out is reviewed downstream, never fatal.
		record.RequiresReview = true
	}

	if len(deduped) >= 4 {
		var lunch []time.Time
		for _, p := range deduped[1 : len(deduped)-1] {
			if h := p.Timestamp.Hour(); h >= 11 && h < 15 {
				lunch = append(lunch, p.Timestamp)
			}
		}
		if len(lunch) >= 2 {
			lunchOut := lunch[0]
			lunchIn := lunch[len(lunch)-1]
			record.LunchOut = &lunchOut
			record.LunchIn = &lunchIn
			record.BreakMinutes = int(lunchIn.Sub(lunchOut).Minutes())
		}
	}

	record.RawPunches = annotatePunches(sortedByTime(punches), record)
	return record
}

// annotatePunches assigns roles from the pairing result. Punches that matched
// no slot keep the plain punch role.
func annotatePunches(punches []models.RawPunch, record *models.AttendanceRecord) models.AnnotatedPunchList {
	annotated := make(models.AnnotatedPunchList, 0, len(punches))
	for _, p := range punches {
		role := models.PunchRoleUnknown
		switch {
		case record.CheckIn != nil && p.Timestamp.Equal(*record.CheckIn):
			role = models.PunchRoleIn
		case record.CheckOut != nil && p.Timestamp.Equal(*record.CheckOut):
			role = models.PunchRoleOut
		case record.LunchOut != nil && p.Timestamp.Equal(*record.LunchOut):
			role = models.PunchRoleLunchOut
		case record.LunchIn != nil && p.Timestamp.Equal(*record.LunchIn):
			role = models.PunchRoleLunchIn
		}
		annotated = append(annotated, models.AnnotatedPunch{
			Time:       p.Timestamp,
			Role:       role,
			TerminalID: p.TerminalID,
			AuthMethod: p.AuthMethod,
		})
	}
	return annotated
}
