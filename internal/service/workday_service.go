package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
)

type lateAccumulationRepository interface {
	Increment(ctx context.Context, employeeID string, year, week int) (*models.LateAccumulation, error)
	MarkAbsenceGenerated(ctx context.Context, id string) (bool, error)
}

type workdayIncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
}

// WorkdayService computes per-record metrics: lateness, early departure,
// worked hours, the overtime/velada split and the resolved status. Compute is
// a pure mutation of the record so the same inputs always converge to the
// same stored values.
type WorkdayService struct {
	lateRepo     lateAccumulationRepository
	incidentRepo workdayIncidentRepository
	logger       *zap.Logger
}

// NewWorkdayService constructs the service.
func NewWorkdayService(lateRepo lateAccumulationRepository, incidentRepo workdayIncidentRepository, logger *zap.Logger) *WorkdayService {
	return &WorkdayService{lateRepo: lateRepo, incidentRepo: incidentRepo, logger: logger}
}

// dayContext carries the resolved inputs of one record computation.
type dayContext struct {
	record   *models.AttendanceRecord
	schedule *models.EffectiveSchedule
	settings models.EngineSettings

	hasEntryPermission bool
	hasExitPermission  bool
}

// Compute fills the record's metric fields from its punches, the effective
// schedule and the settings snapshot. Authorizations and incidents must be
// the approved set for the record's employee and work date.
func (s *WorkdayService) Compute(record *models.AttendanceRecord, schedule *models.EffectiveSchedule, settings models.EngineSettings, auths []models.Authorization, incidents []models.Incident) {
	day := &dayContext{record: record, schedule: schedule, settings: settings}

	if record.CheckIn == nil {
		s.resolveNoCheckIn(day, incidents)
		return
	}

	s.computeLateness(day)
	s.computePunctuality(day)
	s.computeEarlyDeparture(day)
	s.computeWorkedHours(day)
	s.splitExcessHours(day, auths)
	s.applyPermissions(day, auths)
	s.resolveStatus(day)

	record.IsNightShift = schedule.NightShift
	record.NightShiftBonus = schedule.NightShift && record.WorkedHours >= 6
	record.TotalPayrollHours = record.WorkedHours + record.PermissionHours
}

// resolveNoCheckIn handles days without a check-in: absent on a required
// working day, or the covering incident's status when leave explains the gap.
func (s *WorkdayService) resolveNoCheckIn(day *dayContext, incidents []models.Incident) {
	record := day.record
	if !day.schedule.Working || record.IsHoliday {
		if record.IsHoliday {
			record.Status = models.AttendanceStatusHoliday
		}
		return
	}
	for _, inc := range incidents {
		switch inc.Category {
		case models.IncidentCategoryVacation:
			record.Status = models.AttendanceStatusVacation
			return
		case models.IncidentCategorySickLeave:
			record.Status = models.AttendanceStatusSickLeave
			return
		case models.IncidentCategoryPermission:
			record.Status = models.AttendanceStatusPermission
			return
		}
	}
	record.Status = models.AttendanceStatusAbsent
}

// computeLateness compares the check-in clock against scheduled entry plus
// tolerance; a schedule without its own tolerance inherits the configured
// default. Night-shift schedules only evaluate lateness when the check-in
// hour itself falls in the night band, which avoids false lateness from
// shift-boundary arithmetic.
func (s *WorkdayService) computeLateness(day *dayContext) {
	record := day.record
	checkIn := *record.CheckIn
	if day.schedule.NightShift {
		hour := checkIn.Hour()
		if hour < 18 && hour >= 6 {
			record.LateMinutes = 0
			return
		}
	}
	actual := checkIn.Hour()*60 + checkIn.Minute()
	tolerance := day.schedule.ToleranceMinutes
	if tolerance == 0 {
		tolerance = day.settings.LateToleranceMinutes
	}
	allowed := day.schedule.EntryMinutes + tolerance
	if actual > allowed {
		record.LateMinutes = actual - allowed
	} else {
		record.LateMinutes = 0
	}
}

func (s *WorkdayService) computePunctuality(day *dayContext) {
	record := day.record
	checkIn := *record.CheckIn
	actual := checkIn.Hour()*60 + checkIn.Minute()
	record.PunctualityBonus = actual <= day.schedule.EntryMinutes-day.settings.PunctualityBonusMinutes
}

// scheduledExit anchors the exit clock on the work date, rolling to the next
// day when the schedule crosses midnight.
func (d *dayContext) scheduledExit() time.Time {
	base := time.Date(d.record.WorkDate.Year(), d.record.WorkDate.Month(), d.record.WorkDate.Day(), 0, 0, 0, 0, d.record.WorkDate.Location())
	exit := base.Add(time.Duration(d.schedule.ExitMinutes) * time.Minute)
	if d.schedule.ExitMinutes <= d.schedule.EntryMinutes {
		exit = exit.Add(24 * time.Hour)
	}
	return exit
}

func (s *WorkdayService) computeEarlyDeparture(day *dayContext) {
	record := day.record
	if record.CheckOut == nil {
		record.EarlyDeparture = 0
		return
	}
	scheduled := day.scheduledExit()
	if record.CheckOut.Before(scheduled) {
		record.EarlyDeparture = int(scheduled.Sub(*record.CheckOut).Minutes())
	} else {
		record.EarlyDeparture = 0
	}
}

// computeWorkedHours measures the check-in/out span and deducts break time.
// Break priority: the reconciled lunch-pair minutes, then the schedule break,
// then the configured default. The fallback only applies to spans longer
// than 300 minutes so short shifts are not punished for a break they never
// took.
func (s *WorkdayService) computeWorkedHours(day *dayContext) {
	record := day.record
	if record.CheckOut == nil {
		record.WorkedHours = 0
		return
	}
	spanMinutes := int(record.CheckOut.Sub(*record.CheckIn).Minutes())
	if spanMinutes < 0 {
		spanMinutes = 0
	}

	breakMinutes := record.BreakMinutes
	if breakMinutes == 0 && spanMinutes > 300 {
		breakMinutes = day.schedule.BreakMinutes
		if breakMinutes == 0 {
			breakMinutes = day.settings.DefaultBreakMinutes
		}
		record.BreakMinutes = breakMinutes
	}

	worked := spanMinutes - breakMinutes
	if worked < 0 {
		worked = 0
	}
	record.WorkedHours = roundHours(float64(worked) / 60)
}

// splitExcessHours caps regular hours at the daily target and splits the
// excess between overtime and velada by overlap with the configured night
// window. When approved authorizations exist for a bucket they cap it; with
// none the computed value stands and the anomaly detector flags it.
func (s *WorkdayService) splitExcessHours(day *dayContext, auths []models.Authorization) {
	record := day.record
	excess := record.WorkedHours - day.schedule.DailyWorkHours
	if excess <= 0 || record.CheckOut == nil {
		record.OvertimeHours = 0
		record.NightShiftHours = 0
		return
	}
	record.WorkedHours = day.schedule.DailyWorkHours

	nightHours := 0.0
	startHour := day.settings.NightWindowStartHour
	endHour := day.settings.NightWindowEndHour
	if startHour != endHour {
		base := time.Date(record.WorkDate.Year(), record.WorkDate.Month(), record.WorkDate.Day(), 0, 0, 0, 0, record.WorkDate.Location())
		windowStart := base.Add(time.Duration(startHour) * time.Hour)
		windowEnd := base.Add(time.Duration(endHour) * time.Hour)
		if startHour > endHour {
			windowEnd = windowEnd.Add(24 * time.Hour)
		}
		// The excess hours are the tail of the shift ending at check-out.
		excessStart := record.CheckOut.Add(-time.Duration(excess * float64(time.Hour)))
		nightHours = overlapHours(excessStart, *record.CheckOut, windowStart, windowEnd)
	}
	if nightHours > excess {
		nightHours = excess
	}
	// Velada needs a confirmed stay in the night window; a shorter overlap
	// counts as ordinary overtime.
	if nightHours*60 < float64(day.settings.NightConfirmationMinutes) {
		nightHours = 0
	}
	overtime := excess - nightHours

	if limit := authorizedHours(auths, models.AuthorizationTypeOvertime); limit > 0 && overtime > limit {
		overtime = limit
	}
	if limit := authorizedHours(auths, models.AuthorizationTypeNightShift); limit > 0 && nightHours > limit {
		nightHours = limit
	}

	record.OvertimeHours = roundHours(overtime)
	record.NightShiftHours = roundHours(nightHours)
}

// applyPermissions folds approved entry/exit permissions into the record.
// Entry permissions neutralise lateness, exit permissions neutralise the
// early-departure absence downgrade; both contribute permission hours.
func (s *WorkdayService) applyPermissions(day *dayContext, auths []models.Authorization) {
	record := day.record
	for _, auth := range auths {
		if !auth.Status.Counts() {
			continue
		}
		switch auth.Type {
		case models.AuthorizationTypeEntryPermit:
			day.hasEntryPermission = true
			record.PermissionHours += auth.Hours
		case models.AuthorizationTypeExitPermission:
			day.hasExitPermission = true
			record.PermissionHours += auth.Hours
		}
	}
	record.PermissionHours = roundHours(record.PermissionHours)
}

// statusRule is one step of the ordered status resolution. Later rules
// override earlier ones, so the precedence stays auditable in a single list.
type statusRule struct {
	name  string
	apply func(day *dayContext)
}

var statusRules = []statusRule{
	{name: "present", apply: func(day *dayContext) {
		day.record.Status = models.AttendanceStatusPresent
	}},
	{name: "late", apply: func(day *dayContext) {
		if day.record.LateMinutes > 0 && !day.hasEntryPermission {
			day.record.Status = models.AttendanceStatusLate
		}
	}},
	{name: "partial", apply: func(day *dayContext) {
		if day.record.WorkedHours > 0 && day.record.WorkedHours < 4 {
			day.record.Status = models.AttendanceStatusPartial
		}
	}},
	{name: "holiday", apply: func(day *dayContext) {
		if day.record.IsHoliday {
			day.record.Status = models.AttendanceStatusHoliday
		}
	}},
	{name: "early_departure_absence", apply: func(day *dayContext) {
		if day.record.EarlyDeparture > day.settings.EarlyDepartureAbsenceMinutes && !day.hasExitPermission {
			day.record.Status = models.AttendanceStatusAbsent
			day.record.PunctualityBonus = false
		}
	}},
}

func (s *WorkdayService) resolveStatus(day *dayContext) {
	for _, rule := range statusRules {
		rule.apply(day)
	}
}

// ApplyLateAccumulation increments the employee's weekly late counter and,
// when the configured threshold is reached for the first time, generates one
// absence incident dated on the triggering day. The flag flip is a
// compare-and-set so concurrent computations can never double-fire a week.
func (s *WorkdayService) ApplyLateAccumulation(ctx context.Context, record *models.AttendanceRecord, settings models.EngineSettings, hadEntryPermission bool) error {
	if record.LateMinutes <= 0 || hadEntryPermission {
		return nil
	}
	year, week := record.WorkDate.ISOWeek()
	acc, err := s.lateRepo.Increment(ctx, record.EmployeeID, year, week)
	if err != nil {
		return err
	}
	if acc.LateCount < settings.LateToAbsenceCount || acc.AbsenceGenerated {
		return nil
	}
	won, err := s.lateRepo.MarkAbsenceGenerated(ctx, acc.ID)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}
	notes := "generated automatically after repeated late arrivals"
	incident := &models.Incident{
		EmployeeID: record.EmployeeID,
		Category:   models.IncidentCategoryLateAccumulation,
		StartDate:  record.WorkDate,
		EndDate:    record.WorkDate,
		Paid:       false,
		Status:     models.IncidentStatusApproved,
		Notes:      &notes,
	}
	if err := s.incidentRepo.Create(ctx, incident); err != nil {
		// The flag already flipped; log and skip rather than abort the run.
		s.logger.Error("late accumulation incident creation failed",
			zap.String("employee_id", record.EmployeeID),
			zap.Int("year", year),
			zap.Int("week", week),
			zap.Error(err))
		return nil
	}
	s.logger.Info("late accumulation absence generated",
		zap.String("employee_id", record.EmployeeID),
		zap.Int("year", year),
		zap.Int("week", week),
		zap.Int("late_count", acc.LateCount))
	return nil
}

// HadEntryPermission reports whether the approved set contains an entry
// permission, for callers that need the flag outside Compute.
func HadEntryPermission(auths []models.Authorization) bool {
	return hasApprovedAuthorization(auths, models.AuthorizationTypeEntryPermit)
}

// hasApprovedAuthorization checks existence only. The hour quantity on a
// permission is optional, so a zero-hour approved grant still counts.
func hasApprovedAuthorization(auths []models.Authorization, authType models.AuthorizationType) bool {
	for _, auth := range auths {
		if auth.Status.Counts() && auth.Type == authType {
			return true
		}
	}
	return false
}

func authorizedHours(auths []models.Authorization, authType models.AuthorizationType) float64 {
	total := 0.0
	for _, auth := range auths {
		if auth.Status.Counts() && auth.Type == authType {
			total += auth.Hours
		}
	}
	return total
}

func overlapHours(aStart, aEnd, bStart, bEnd time.Time) float64 {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Hours()
}

// roundHours keeps hour figures at two decimals so repeated runs converge to
// identical stored values.
func roundHours(h float64) float64 {
	return float64(int(h*100+0.5)) / 100
}
