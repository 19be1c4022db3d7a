package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
	appErrors "github.com/asistmx/checador-api/pkg/errors"
)

type attendanceRepository interface {
	GetByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error)
}

type attendanceEmployeeRepository interface {
	GetByID(ctx context.Context, id string) (*models.Employee, error)
}

// AttendanceCorrection is a manual punch fix applied by HR. Nil fields keep
// the stored value; the edit trail fields are mandatory.
type AttendanceCorrection struct {
	CheckIn      *time.Time
	CheckOut     *time.Time
	LunchOut     *time.Time
	LunchIn      *time.Time
	BreakMinutes *int
	EditedBy     string
	Reason       string
}

// AttendanceService exposes reconciled records to readers and applies manual
// corrections, re-running metrics and anomaly detection so corrected records
// stay consistent with computed ones.
type AttendanceService struct {
	repo        attendanceRepository
	employees   attendanceEmployeeRepository
	auths       syncAuthorizationRepository
	incidents   syncIncidentRepository
	workday     *WorkdayService
	anomalies   *AnomalyService
	schedules   *ScheduleService
	settingsSvc *SettingsService
	logger      *zap.Logger
}

// NewAttendanceService constructs the service.
func NewAttendanceService(
	repo attendanceRepository,
	employees attendanceEmployeeRepository,
	auths syncAuthorizationRepository,
	incidents syncIncidentRepository,
	workday *WorkdayService,
	anomalies *AnomalyService,
	schedules *ScheduleService,
	settingsSvc *SettingsService,
	logger *zap.Logger,
) *AttendanceService {
	return &AttendanceService{
		repo:        repo,
		employees:   employees,
		auths:       auths,
		incidents:   incidents,
		workday:     workday,
		anomalies:   anomalies,
		schedules:   schedules,
		settingsSvc: settingsSvc,
		logger:      logger,
	}
}

// List returns records matching the filter.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one record.
func (s *AttendanceService) Get(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "ATTENDANCE_LOAD_FAILED", http.StatusInternalServerError, "could not load attendance record")
	}
	return record, nil
}

// Correct applies a manual correction with its edit trail, then recomputes
// metrics and anomalies from the corrected punches.
func (s *AttendanceService) Correct(ctx context.Context, id string, correction AttendanceCorrection) (*models.AttendanceRecord, error) {
	if correction.EditedBy == "" || correction.Reason == "" {
		return nil, appErrors.New("EDIT_TRAIL_REQUIRED", http.StatusBadRequest, "manual corrections require an editor and a reason")
	}
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if correction.CheckIn != nil {
		record.CheckIn = correction.CheckIn
	}
	if correction.CheckOut != nil {
		record.CheckOut = correction.CheckOut
	}
	if correction.LunchOut != nil {
		record.LunchOut = correction.LunchOut
	}
	if correction.LunchIn != nil {
		record.LunchIn = correction.LunchIn
	}
	if correction.BreakMinutes != nil {
		record.BreakMinutes = *correction.BreakMinutes
	}
	now := time.Now().UTC()
	record.EditedBy = &correction.EditedBy
	record.EditedAt = &now
	record.EditReason = &correction.Reason
	record.RequiresReview = false

	employee, err := s.employees.GetByID(ctx, record.EmployeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, "EMPLOYEE_LOAD_FAILED", http.StatusInternalServerError, "could not load employee")
	}
	schedule, err := s.schedules.Effective(ctx, employee, models.ISOWeekday(record.WorkDate))
	if err != nil {
		return nil, err
	}
	settings := s.settingsSvc.Snapshot(ctx)
	auths, err := s.auths.ListForDate(ctx, record.EmployeeID, record.WorkDate)
	if err != nil {
		return nil, appErrors.Wrap(err, "AUTHORIZATIONS_LOAD_FAILED", http.StatusInternalServerError, "could not load authorizations")
	}
	incidents, err := s.incidents.ListApprovedForDate(ctx, record.EmployeeID, record.WorkDate)
	if err != nil {
		return nil, appErrors.Wrap(err, "INCIDENTS_LOAD_FAILED", http.StatusInternalServerError, "could not load incidents")
	}

	s.workday.Compute(record, schedule, settings, auths, incidents)

	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, "ATTENDANCE_SAVE_FAILED", http.StatusInternalServerError, "could not store corrected record")
	}
	if _, err := s.anomalies.Detect(ctx, stored, schedule, settings, auths); err != nil {
		s.logger.Warn("anomaly re-detection after correction failed",
			zap.String("attendance_id", stored.ID),
			zap.Error(err))
	}

	s.logger.Info("attendance record corrected",
		zap.String("attendance_id", stored.ID),
		zap.String("edited_by", correction.EditedBy),
		zap.String("reason", correction.Reason))
	return stored, nil
}
