package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
	appErrors "github.com/asistmx/checador-api/pkg/errors"
)

type payrollRepository interface {
	OverlapExists(ctx context.Context, startDate, endDate time.Time, excludeID string) (bool, error)
	CreatePeriod(ctx context.Context, period *models.PayrollPeriod) error
	GetPeriod(ctx context.Context, id string) (*models.PayrollPeriod, error)
	ListPeriods(ctx context.Context, page, pageSize int) ([]models.PayrollPeriod, int, error)
	TransitionStatus(ctx context.Context, id string, from, to models.PayrollPeriodStatus, actor string) (bool, error)
	UpsertEntry(ctx context.Context, entry *models.PayrollEntry) error
	ListEntries(ctx context.Context, periodID string) ([]models.PayrollEntryDetail, error)
	GetEntry(ctx context.Context, periodID, employeeID string) (*models.PayrollEntryDetail, error)
}

type payrollAttendanceRepository interface {
	ListRange(ctx context.Context, employeeID string, from, to time.Time) ([]models.AttendanceRecord, error)
}

type payrollIncidentRepository interface {
	ListApprovedOverlapping(ctx context.Context, employeeID string, from, to time.Time) ([]models.Incident, error)
}

type payrollAuthorizationRepository interface {
	ListForRange(ctx context.Context, employeeID string, from, to time.Time) ([]models.Authorization, error)
}

type payrollLateRepository interface {
	Get(ctx context.Context, employeeID string, year, week int) (*models.LateAccumulation, error)
	MarkAbsenceGenerated(ctx context.Context, id string) (bool, error)
}

// PayrollConfig bounds one period calculation.
type PayrollConfig struct {
	Concurrency int
	RunTimeout  time.Duration
}

// PayrollService aggregates attendance, incidents, authorizations and late
// accumulation into one pay entry per employee per period. Employees are
// computed independently and in parallel; the period only reaches review once
// every entry is written.
type PayrollService struct {
	repo        payrollRepository
	attendance  payrollAttendanceRepository
	incidents   payrollIncidentRepository
	auths       payrollAuthorizationRepository
	lateRepo    payrollLateRepository
	employees   syncEmployeeRepository
	holidays    syncHolidayRepository
	settingsSvc *SettingsService
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         PayrollConfig

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewPayrollService constructs the service.
func NewPayrollService(
	repo payrollRepository,
	attendance payrollAttendanceRepository,
	incidents payrollIncidentRepository,
	auths payrollAuthorizationRepository,
	lateRepo payrollLateRepository,
	employees syncEmployeeRepository,
	holidays syncHolidayRepository,
	settingsSvc *SettingsService,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg PayrollConfig,
) *PayrollService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	return &PayrollService{
		repo:        repo,
		attendance:  attendance,
		incidents:   incidents,
		auths:       auths,
		lateRepo:    lateRepo,
		employees:   employees,
		holidays:    holidays,
		settingsSvc: settingsSvc,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		inFlight:    make(map[string]bool),
	}
}

// CreatePeriod stores a new draft period, rejecting overlapping date ranges
// before any entry is calculated.
func (s *PayrollService) CreatePeriod(ctx context.Context, period *models.PayrollPeriod) error {
	if !period.Type.Valid() {
		return appErrors.New("INVALID_PERIOD_TYPE", http.StatusBadRequest, fmt.Sprintf("unknown period type %q", period.Type))
	}
	if period.EndDate.Before(period.StartDate) {
		return appErrors.New("INVALID_PERIOD_RANGE", http.StatusBadRequest, "period end date precedes start date")
	}
	overlap, err := s.repo.OverlapExists(ctx, period.StartDate, period.EndDate, "")
	if err != nil {
		return appErrors.Wrap(err, "PERIOD_CHECK_FAILED", http.StatusInternalServerError, "could not verify period overlap")
	}
	if overlap {
		return appErrors.ErrPeriodOverlap
	}
	period.Status = models.PayrollPeriodDraft
	if err := s.repo.CreatePeriod(ctx, period); err != nil {
		return appErrors.Wrap(err, "PERIOD_CREATE_FAILED", http.StatusInternalServerError, "could not create period")
	}
	s.logger.Info("payroll period created",
		zap.String("period_id", period.ID),
		zap.String("type", string(period.Type)),
		zap.Time("start", period.StartDate),
		zap.Time("end", period.EndDate))
	return nil
}

// GetPeriod returns one period.
func (s *PayrollService) GetPeriod(ctx context.Context, id string) (*models.PayrollPeriod, error) {
	period, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "PERIOD_LOAD_FAILED", http.StatusInternalServerError, "could not load period")
	}
	return period, nil
}

// ListPeriods returns periods newest first.
func (s *PayrollService) ListPeriods(ctx context.Context, page, pageSize int) ([]models.PayrollPeriod, int, error) {
	return s.repo.ListPeriods(ctx, page, pageSize)
}

// ListEntries returns a period's computed entries.
func (s *PayrollService) ListEntries(ctx context.Context, periodID string) ([]models.PayrollEntryDetail, error) {
	return s.repo.ListEntries(ctx, periodID)
}

// Calculate computes every active employee's entry for the period. Only one
// calculation may be in flight per period, and only draft or review periods
// may calculate.
func (s *PayrollService) Calculate(ctx context.Context, periodID string) error {
	period, err := s.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if !period.Status.CanCalculate() {
		return appErrors.ErrPeriodLocked
	}

	s.mu.Lock()
	if s.inFlight[periodID] {
		s.mu.Unlock()
		return appErrors.ErrCalculationBusy
	}
	s.inFlight[periodID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, periodID)
		s.mu.Unlock()
	}()

	won, err := s.repo.TransitionStatus(ctx, periodID, period.Status, models.PayrollPeriodCalculating, "")
	if err != nil {
		return err
	}
	if !won {
		return appErrors.ErrCalculationBusy
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()
	started := time.Now()

	if err := s.calculateEntries(ctx, period); err != nil {
		// Roll the period back so a fixed-up retry can calculate again.
		if _, rbErr := s.repo.TransitionStatus(context.WithoutCancel(ctx), periodID, models.PayrollPeriodCalculating, period.Status, ""); rbErr != nil {
			s.logger.Error("period rollback failed", zap.String("period_id", periodID), zap.Error(rbErr))
		}
		return err
	}

	if _, err := s.repo.TransitionStatus(ctx, periodID, models.PayrollPeriodCalculating, models.PayrollPeriodReview, ""); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ObservePayrollRun(time.Since(started))
	}
	s.logger.Info("payroll period calculated",
		zap.String("period_id", periodID),
		zap.Duration("took", time.Since(started)))
	return nil
}

func (s *PayrollService) calculateEntries(ctx context.Context, period *models.PayrollPeriod) error {
	employees, err := s.employees.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load employees: %w", err)
	}
	holidayRows, err := s.holidays.ListRange(ctx, period.StartDate, period.EndDate)
	if err != nil {
		return fmt.Errorf("load holidays: %w", err)
	}
	holidaySet := models.NewHolidaySet(holidayRows)
	settings := s.settingsSvc.Snapshot(ctx)

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, s.cfg.Concurrency)
		errMu    sync.Mutex
		firstErr error
	)
	for i := range employees {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(emp *models.Employee) {
			defer wg.Done()
			defer func() { <-sem }()
			entry, cerr := s.computeEntry(ctx, period, emp, settings, holidaySet)
			if cerr == nil {
				cerr = s.repo.UpsertEntry(ctx, entry)
			}
			if cerr != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("employee %s: %w", emp.Code, cerr)
				}
				errMu.Unlock()
				return
			}
			if s.metrics != nil {
				s.metrics.AddPayrollEntries(1)
			}
		}(&employees[i])
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// computeEntry aggregates one employee's period into a pay entry with the
// full audit breakdown.
func (s *PayrollService) computeEntry(ctx context.Context, period *models.PayrollPeriod, employee *models.Employee, settings models.EngineSettings, holidaySet models.HolidaySet) (*models.PayrollEntry, error) {
	records, err := s.attendance.ListRange(ctx, employee.ID, period.StartDate, period.EndDate)
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	incidents, err := s.incidents.ListApprovedOverlapping(ctx, employee.ID, period.StartDate, period.EndDate)
	if err != nil {
		return nil, fmt.Errorf("load incidents: %w", err)
	}
	auths, err := s.auths.ListForRange(ctx, employee.ID, period.StartDate, period.EndDate)
	if err != nil {
		return nil, fmt.Errorf("load authorizations: %w", err)
	}

	entry := &models.PayrollEntry{PeriodID: period.ID, EmployeeID: employee.ID}
	breakdown := models.PayrollBreakdown{Version: 1}

	s.aggregateAttendance(entry, &breakdown, records, holidaySet)
	s.aggregateIncidents(entry, &breakdown, incidents, period)
	if err := s.resolveLateAccumulation(ctx, entry, &breakdown, employee, period, settings); err != nil {
		return nil, err
	}
	s.aggregateNightAuthorizations(entry, &breakdown, auths, settings)
	s.computeBonuses(entry, &breakdown, records, period, settings)
	s.computePay(entry, &breakdown, employee, settings)

	entry.Breakdown = breakdown
	return entry, nil
}

// aggregateAttendance routes each record's hours into the regular, overtime,
// holiday and weekend buckets. Holiday and weekend days send worked and
// overtime hours into their own buckets instead of the regular ones.
func (s *PayrollService) aggregateAttendance(entry *models.PayrollEntry, breakdown *models.PayrollBreakdown, records []models.AttendanceRecord, holidaySet models.HolidaySet) {
	for _, rec := range records {
		switch {
		case rec.IsHoliday || holidaySet.Contains(rec.WorkDate):
			entry.HolidayHours += rec.WorkedHours + rec.OvertimeHours
		case rec.IsWeekend:
			entry.WeekendHours += rec.WorkedHours + rec.OvertimeHours
		default:
			entry.RegularHours += rec.WorkedHours
			entry.OvertimeHours += rec.OvertimeHours
		}
		entry.NightShiftHours += rec.NightShiftHours

		switch rec.Status {
		case models.AttendanceStatusPresent, models.AttendanceStatusLate, models.AttendanceStatusPartial:
			entry.WorkedDays++
		case models.AttendanceStatusAbsent:
			entry.AbsentDays++
		}
		if rec.LateMinutes > 0 {
			entry.LateDays++
		}
		if rec.PunctualityBonus {
			entry.PunctualDays++
		}
		if rec.NightShiftBonus {
			entry.NightShiftDays++
		}
	}
	entry.RegularHours = roundHours(entry.RegularHours)
	entry.OvertimeHours = roundHours(entry.OvertimeHours)
	entry.HolidayHours = roundHours(entry.HolidayHours)
	entry.WeekendHours = roundHours(entry.WeekendHours)
	entry.NightShiftHours = roundHours(entry.NightShiftHours)

	breakdown.Attendance = models.BreakdownAttendance{
		RecordCount:   len(records),
		RegularHours:  entry.RegularHours,
		OvertimeHours: entry.OvertimeHours,
		HolidayHours:  entry.HolidayHours,
		WeekendHours:  entry.WeekendHours,
		WorkedDays:    entry.WorkedDays,
		AbsentDays:    entry.AbsentDays,
		LateDays:      entry.LateDays,
		PunctualDays:  entry.PunctualDays,
	}
}

// aggregateIncidents prorates each incident to the portion overlapping the
// period. Unpaid permissions and all absence-family days count as unpaid.
func (s *PayrollService) aggregateIncidents(entry *models.PayrollEntry, breakdown *models.PayrollBreakdown, incidents []models.Incident, period *models.PayrollPeriod) {
	absenceDays := 0
	for _, inc := range incidents {
		days := inc.OverlapDays(period.StartDate, period.EndDate)
		if days <= 0 {
			continue
		}
		switch inc.Category {
		case models.IncidentCategoryVacation:
			entry.VacationDays += days
		case models.IncidentCategorySickLeave:
			entry.SickLeaveDays += days
		case models.IncidentCategoryPermission:
			entry.PermissionDays += days
			if !inc.Paid {
				entry.UnpaidDays += days
			}
		case models.IncidentCategoryAbsence, models.IncidentCategoryLateAccumulation:
			absenceDays += days
			entry.UnpaidDays += days
		}
	}
	breakdown.Incidents = models.BreakdownIncidents{
		VacationDays:   entry.VacationDays,
		SickLeaveDays:  entry.SickLeaveDays,
		PermissionDays: entry.PermissionDays,
		AbsenceDays:    absenceDays,
		UnpaidDays:     entry.UnpaidDays,
	}
}

// resolveLateAccumulation applies the threshold for the week of the period
// start, reusing the same compare-and-set guard as daily processing so a week
// already converted into an incident never fires again here.
func (s *PayrollService) resolveLateAccumulation(ctx context.Context, entry *models.PayrollEntry, breakdown *models.PayrollBreakdown, employee *models.Employee, period *models.PayrollPeriod, settings models.EngineSettings) error {
	year, week := period.StartDate.ISOWeek()
	breakdown.LateAccumulation = models.BreakdownLateAccumulation{Year: year, Week: week}

	acc, err := s.lateRepo.Get(ctx, employee.ID, year, week)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load late accumulation: %w", err)
	}
	breakdown.LateAccumulation.LateCount = acc.LateCount
	breakdown.LateAccumulation.AlreadyGenerated = acc.AbsenceGenerated
	if acc.LateCount < settings.LateToAbsenceCount || acc.AbsenceGenerated {
		return nil
	}
	won, err := s.lateRepo.MarkAbsenceGenerated(ctx, acc.ID)
	if err != nil {
		return fmt.Errorf("mark late accumulation: %w", err)
	}
	if won {
		breakdown.LateAccumulation.ExtraAbsences = 1
		entry.UnpaidDays++
		s.logger.Info("late accumulation absence applied in payroll",
			zap.String("employee_id", employee.ID),
			zap.Int("year", year),
			zap.Int("week", week))
	}
	return nil
}

func (s *PayrollService) aggregateNightAuthorizations(entry *models.PayrollEntry, breakdown *models.PayrollBreakdown, auths []models.Authorization, settings models.EngineSettings) {
	count := 0
	hours := 0.0
	for _, auth := range auths {
		if auth.Status.Counts() && auth.Type == models.AuthorizationTypeNightShift {
			count++
			hours += auth.Hours
		}
	}
	entry.NightShiftBonus = roundMoney(float64(count) * settings.NightShiftBonusAmount)
	entry.DinnerAllowance = roundMoney(float64(count) * settings.DinnerAllowanceAmount)
	breakdown.NightShift = models.BreakdownNightShift{
		AuthorizedCount: count,
		Hours:           roundHours(hours),
		Days:            entry.NightShiftDays,
	}
}

// computeBonuses resolves punctuality, weekly and monthly bonuses. A week is
// clean when it has at least one record and none of them is absent or late;
// the monthly bonus requires the whole period clean.
func (s *PayrollService) computeBonuses(entry *models.PayrollEntry, breakdown *models.PayrollBreakdown, records []models.AttendanceRecord, period *models.PayrollPeriod, settings models.EngineSettings) {
	type weekState struct {
		records int
		dirty   bool
	}
	weeks := make(map[int]*weekState)
	for _, rec := range records {
		year, week := rec.WorkDate.ISOWeek()
		key := year*100 + week
		state := weeks[key]
		if state == nil {
			state = &weekState{}
			weeks[key] = state
		}
		state.records++
		if rec.Status == models.AttendanceStatusAbsent || rec.LateMinutes > 0 {
			state.dirty = true
		}
	}
	cleanWeeks := 0
	for _, state := range weeks {
		if state.records > 0 && !state.dirty {
			cleanWeeks++
		}
	}
	cleanMonth := entry.AbsentDays == 0 && entry.LateDays == 0 && len(records) > 0

	entry.PunctualityBonus = roundMoney(float64(entry.PunctualDays) * settings.PunctualityBonusAmount)
	entry.WeeklyBonus = roundMoney(float64(cleanWeeks) * settings.WeeklyBonusAmount)
	if cleanMonth {
		entry.MonthlyBonus = roundMoney(settings.MonthlyBonusAmount)
	}

	breakdown.Bonuses = models.BreakdownBonuses{
		PunctualDays:     entry.PunctualDays,
		CleanWeeks:       cleanWeeks,
		CleanMonth:       cleanMonth,
		PunctualityBonus: entry.PunctualityBonus,
		WeeklyBonus:      entry.WeeklyBonus,
		MonthlyBonus:     entry.MonthlyBonus,
		NightShiftBonus:  entry.NightShiftBonus,
		DinnerAllowance:  entry.DinnerAllowance,
	}
}

// computePay closes the arithmetic: itemized pay components, deductions and
// the gross/net identity.
func (s *PayrollService) computePay(entry *models.PayrollEntry, breakdown *models.PayrollBreakdown, employee *models.Employee, settings models.EngineSettings) {
	rate := employee.HourlyRate
	dailyRate := rate * 8

	entry.RegularPay = roundMoney(entry.RegularHours * rate)
	entry.OvertimePay = roundMoney(entry.OvertimeHours * rate * settings.OvertimeMultiplier)
	entry.HolidayPay = roundMoney(entry.HolidayHours * rate * settings.HolidayMultiplier)
	entry.WeekendPay = roundMoney(entry.WeekendHours * rate * settings.OvertimeMultiplier)
	entry.VacationPay = roundMoney(float64(entry.VacationDays) * dailyRate)

	totalBonus := entry.PunctualityBonus + entry.WeeklyBonus + entry.MonthlyBonus + entry.NightShiftBonus + entry.DinnerAllowance
	entry.Deductions = roundMoney(float64(entry.UnpaidDays) * dailyRate)
	entry.GrossPay = roundMoney(entry.RegularPay + entry.OvertimePay + entry.HolidayPay + entry.WeekendPay + entry.VacationPay + totalBonus)
	entry.NetPay = roundMoney(entry.GrossPay - entry.Deductions)

	breakdown.Rates = models.BreakdownRates{
		HourlyRate:         rate,
		OvertimeMultiplier: settings.OvertimeMultiplier,
		HolidayMultiplier:  settings.HolidayMultiplier,
		DailyRate:          dailyRate,
	}
	breakdown.Final = models.BreakdownFinalCalculations{
		RegularPay:  entry.RegularPay,
		OvertimePay: entry.OvertimePay,
		HolidayPay:  entry.HolidayPay,
		WeekendPay:  entry.WeekendPay,
		VacationPay: entry.VacationPay,
		TotalBonus:  roundMoney(totalBonus),
		Deductions:  entry.Deductions,
		GrossPay:    entry.GrossPay,
		NetPay:      entry.NetPay,
	}
}

// Approve moves a reviewed period to approved.
func (s *PayrollService) Approve(ctx context.Context, periodID, actor string) error {
	won, err := s.repo.TransitionStatus(ctx, periodID, models.PayrollPeriodReview, models.PayrollPeriodApproved, actor)
	if err != nil {
		return appErrors.Wrap(err, "PERIOD_APPROVE_FAILED", http.StatusInternalServerError, "could not approve period")
	}
	if !won {
		return appErrors.New("INVALID_PERIOD_STATUS", http.StatusConflict, "only reviewed periods can be approved")
	}
	return nil
}

// MarkPaid moves an approved period to paid.
func (s *PayrollService) MarkPaid(ctx context.Context, periodID, actor string) error {
	won, err := s.repo.TransitionStatus(ctx, periodID, models.PayrollPeriodApproved, models.PayrollPeriodPaid, actor)
	if err != nil {
		return appErrors.Wrap(err, "PERIOD_PAY_FAILED", http.StatusInternalServerError, "could not mark period paid")
	}
	if !won {
		return appErrors.New("INVALID_PERIOD_STATUS", http.StatusConflict, "only approved periods can be marked paid")
	}
	return nil
}

func roundMoney(v float64) float64 {
	if v < 0 {
		return -float64(int(-v*100+0.5)) / 100
	}
	return float64(int(v*100+0.5)) / 100
}
