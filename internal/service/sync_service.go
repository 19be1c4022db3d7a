package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
	"github.com/asistmx/checador-api/pkg/jobs"
)

type punchRepository interface {
	ListWindow(ctx context.Context, from, to time.Time) ([]models.RawPunch, error)
}

type syncEmployeeRepository interface {
	ListActive(ctx context.Context) ([]models.Employee, error)
}

type syncHolidayRepository interface {
	ListRange(ctx context.Context, from, to time.Time) ([]models.Holiday, error)
}

type syncAttendanceRepository interface {
	GetByEmployeeDate(ctx context.Context, employeeID string, workDate time.Time) (*models.AttendanceRecord, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
}

type syncRunRepository interface {
	CreateRun(ctx context.Context, run *models.SyncRun) error
	FinishRun(ctx context.Context, run *models.SyncRun) error
	GetRun(ctx context.Context, id string) (*models.SyncRun, error)
	LastCompletedWindowEnd(ctx context.Context) (time.Time, error)
	ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}

type syncAuthorizationRepository interface {
	ListForDate(ctx context.Context, employeeID string, workDate time.Time) ([]models.Authorization, error)
}

type syncIncidentRepository interface {
	ListApprovedForDate(ctx context.Context, employeeID string, workDate time.Time) ([]models.Incident, error)
}

// SyncConfig bounds one ingestion run.
type SyncConfig struct {
	Interval         time.Duration
	WatermarkOverlap time.Duration
	Concurrency      int
	Retries          int
	RunTimeout       time.Duration
}

// SyncService drives punch ingestion: it reads the raw punch store forward
// from a watermark, reconciles each (employee, work date) unit, computes its
// metrics and runs anomaly detection. Units are independent, so they fan out
// across workers; per-unit failures are isolated and counted, never fatal to
// the run.
type SyncService struct {
	punches     punchRepository
	employees   syncEmployeeRepository
	holidays    syncHolidayRepository
	attendance  syncAttendanceRepository
	runs        syncRunRepository
	auths       syncAuthorizationRepository
	incidents   syncIncidentRepository
	reconcile   *ReconcileService
	workday     *WorkdayService
	anomalies   *AnomalyService
	schedules   *ScheduleService
	settingsSvc *SettingsService
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         SyncConfig

	queue *jobs.Queue

	mu      sync.Mutex
	running bool
}

// NewSyncService constructs the service. Start must be called before Trigger.
func NewSyncService(
	punches punchRepository,
	employees syncEmployeeRepository,
	holidays syncHolidayRepository,
	attendance syncAttendanceRepository,
	runs syncRunRepository,
	auths syncAuthorizationRepository,
	incidents syncIncidentRepository,
	reconcile *ReconcileService,
	workday *WorkdayService,
	anomalies *AnomalyService,
	schedules *ScheduleService,
	settingsSvc *SettingsService,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg SyncConfig,
) *SyncService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.WatermarkOverlap <= 0 {
		cfg.WatermarkOverlap = time.Hour
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	s := &SyncService{
		punches:     punches,
		employees:   employees,
		holidays:    holidays,
		attendance:  attendance,
		runs:        runs,
		auths:       auths,
		incidents:   incidents,
		reconcile:   reconcile,
		workday:     workday,
		anomalies:   anomalies,
		schedules:   schedules,
		settingsSvc: settingsSvc,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
	s.queue = jobs.NewQueue("punch-sync", s.handleJob, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the job queue and, when an interval is configured, the
// periodic trigger.
func (s *SyncService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if s.cfg.Interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Trigger(); err != nil {
					s.logger.Warn("periodic sync enqueue failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop drains the queue.
func (s *SyncService) Stop() {
	s.queue.Stop()
}

// Trigger enqueues an on-demand ingestion run.
func (s *SyncService) Trigger() error {
	return s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "sync"})
}

func (s *SyncService) handleJob(ctx context.Context, _ jobs.Job) error {
	_, err := s.RunOnce(ctx)
	return err
}

// GetRun returns one run's bookkeeping.
func (s *SyncService) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	return s.runs.GetRun(ctx, id)
}

// ListRuns returns recent runs newest first.
func (s *SyncService) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	return s.runs.ListRuns(ctx, limit)
}

// RunOnce executes a single ingestion run over the window [watermark -
// overlap, now]. Re-running the same window is safe: reconciliation and
// metrics are idempotent upserts and anomaly detection checks open findings
// before inserting.
func (s *SyncService) RunOnce(ctx context.Context) (*models.SyncRun, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("an ingestion run is already in progress")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	now := time.Now()
	watermark, err := s.runs.LastCompletedWindowEnd(ctx)
	if err != nil {
		return nil, err
	}
	windowStart := watermark.Add(-s.cfg.WatermarkOverlap)
	if watermark.Year() < 2000 {
		// First run: bootstrap from the last day instead of all history.
		windowStart = now.Add(-24 * time.Hour)
	}

	run := &models.SyncRun{WindowStart: windowStart, WindowEnd: now}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	started := time.Now()

	if err := s.executeRun(ctx, run); err != nil {
		msg := err.Error()
		run.Status = models.SyncRunFailed
		run.Error = &msg
		if finishErr := s.runs.FinishRun(context.WithoutCancel(ctx), run); finishErr != nil {
			s.logger.Error("failed to persist failed sync run", zap.Error(finishErr))
		}
		s.logger.Error("sync run failed",
			zap.String("run_id", run.ID),
			zap.Int("punches_read", run.PunchesRead),
			zap.Int("records_processed", run.RecordsProcessed),
			zap.Error(err))
		return run, err
	}

	run.Status = models.SyncRunCompleted
	if err := s.runs.FinishRun(ctx, run); err != nil {
		return run, err
	}
	if s.metrics != nil {
		s.metrics.ObserveSyncRun(time.Since(started))
		s.metrics.AddPunchesProcessed(run.PunchesRead)
	}
	s.logger.Info("sync run completed",
		zap.String("run_id", run.ID),
		zap.Time("window_start", run.WindowStart),
		zap.Time("window_end", run.WindowEnd),
		zap.Int("punches_read", run.PunchesRead),
		zap.Int("records_processed", run.RecordsProcessed),
		zap.Int("records_failed", run.RecordsFailed),
		zap.Int("anomalies_found", run.AnomaliesFound))
	return run, nil
}

// dayUnit is one independently processable (employee, work date) group.
type dayUnit struct {
	employee *models.Employee
	workDate time.Time
	punches  []models.RawPunch
}

func (s *SyncService) executeRun(ctx context.Context, run *models.SyncRun) error {
	punches, err := s.punches.ListWindow(ctx, run.WindowStart, run.WindowEnd)
	if err != nil {
		return fmt.Errorf("read punch store: %w", err)
	}
	run.PunchesRead = len(punches)
	if len(punches) == 0 {
		return nil
	}

	employees, err := s.employees.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load employees: %w", err)
	}
	byCode := make(map[string]*models.Employee, len(employees))
	for i := range employees {
		byCode[employees[i].Code] = &employees[i]
	}

	holidayRows, err := s.holidays.ListRange(ctx, run.WindowStart.AddDate(0, 0, -1), run.WindowEnd.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("load holidays: %w", err)
	}
	holidaySet := models.NewHolidaySet(holidayRows)

	settings := s.settingsSvc.Snapshot(ctx)

	bySubject := make(map[string][]models.RawPunch)
	for _, p := range punches {
		bySubject[p.SubjectID] = append(bySubject[p.SubjectID], p)
	}

	var units []dayUnit
	for subjectID, subjectPunches := range bySubject {
		employee, ok := byCode[subjectID]
		if !ok {
			s.logger.Warn("punches for unknown subject skipped", zap.String("subject_id", subjectID))
			continue
		}
		for dateKey, group := range s.reconcile.GroupByWorkDate(subjectPunches) {
			workDate, perr := time.Parse("2006-01-02", dateKey)
			if perr != nil {
				continue
			}
			units = append(units, dayUnit{employee: employee, workDate: workDate, punches: group})
		}
	}

	var (
		wg        sync.WaitGroup
		counterMu sync.Mutex
		sem       = make(chan struct{}, s.cfg.Concurrency)
	)
	for _, unit := range units {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(u dayUnit) {
			defer wg.Done()
			defer func() { <-sem }()
			anomalies, perr := s.processUnit(ctx, u, settings, holidaySet)
			counterMu.Lock()
			defer counterMu.Unlock()
			if perr != nil {
				run.RecordsFailed++
				s.logger.Warn("day unit failed",
					zap.String("employee_id", u.employee.ID),
					zap.Time("work_date", u.workDate),
					zap.Error(perr))
				return
			}
			run.RecordsProcessed++
			run.AnomaliesFound += anomalies
		}(unit)
	}
	wg.Wait()
	return ctx.Err()
}

// processUnit runs the full per-day pipeline: reconcile, compute metrics,
// upsert, late accumulation, anomaly detection.
func (s *SyncService) processUnit(ctx context.Context, unit dayUnit, settings models.EngineSettings, holidaySet models.HolidaySet) (int, error) {
	record := s.reconcile.BuildRecord(unit.employee.ID, unit.workDate, unit.punches, settings, holidaySet)
	if record == nil {
		return 0, nil
	}

	existing, err := s.attendance.GetByEmployeeDate(ctx, unit.employee.ID, unit.workDate)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if existing != nil && existing.EditedBy != nil {
		// Manual corrections win over re-ingestion.
		return 0, nil
	}
	wasLate := existing != nil && existing.LateMinutes > 0

	schedule, err := s.schedules.Effective(ctx, unit.employee, models.ISOWeekday(unit.workDate))
	if err != nil {
		return 0, err
	}
	auths, err := s.auths.ListForDate(ctx, unit.employee.ID, unit.workDate)
	if err != nil {
		return 0, err
	}
	incidents, err := s.incidents.ListApprovedForDate(ctx, unit.employee.ID, unit.workDate)
	if err != nil {
		return 0, err
	}

	s.workday.Compute(record, schedule, settings, auths, incidents)

	stored, err := s.attendance.Upsert(ctx, record)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordReconciled("failed")
		}
		return 0, err
	}
	record = stored
	if s.metrics != nil {
		s.metrics.RecordReconciled("ok")
	}

	// Only a newly late record feeds the weekly counter, so re-running a
	// window cannot double-count the same late day.
	if !wasLate {
		if err := s.workday.ApplyLateAccumulation(ctx, record, settings, HadEntryPermission(auths)); err != nil {
			s.logger.Warn("late accumulation update failed",
				zap.String("employee_id", record.EmployeeID),
				zap.Time("work_date", record.WorkDate),
				zap.Error(err))
		}
	}

	return s.anomalies.Detect(ctx, record, schedule, settings, auths)
}
