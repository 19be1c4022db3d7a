package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
)

type anomalyRepository interface {
	OpenExists(ctx context.Context, attendanceID string, anomalyType models.AnomalyType) (bool, error)
	Insert(ctx context.Context, anomaly *models.AttendanceAnomaly) error
	CountOpen(ctx context.Context, attendanceID string) (int, error)
	GetByID(ctx context.Context, id string) (*models.AttendanceAnomaly, error)
	UpdateStatus(ctx context.Context, id string, status models.AnomalyStatus, resolvedBy string) error
	List(ctx context.Context, filter models.AnomalyFilter) ([]models.AttendanceAnomaly, int, error)
}

type anomalyAttendanceRepository interface {
	UpdateAnomalyCount(ctx context.Context, attendanceID string, count int) error
}

// AnomalyService runs the fixed rule battery over computed attendance
// records. Rules are independent so their order never changes the outcome,
// and a rule only inserts when no open finding of its type exists for the
// record, which keeps re-detection idempotent.
type AnomalyService struct {
	repo           anomalyRepository
	attendanceRepo anomalyAttendanceRepository
	metrics        *MetricsService
	logger         *zap.Logger
}

// NewAnomalyService constructs the service.
func NewAnomalyService(repo anomalyRepository, attendanceRepo anomalyAttendanceRepository, metrics *MetricsService, logger *zap.Logger) *AnomalyService {
	return &AnomalyService{repo: repo, attendanceRepo: attendanceRepo, metrics: metrics, logger: logger}
}

// finding is one fired rule before persistence.
type finding struct {
	anomalyType models.AnomalyType
	severity    models.AnomalySeverity
	expected    string
	actual      string
	deviation   int
}

// Detect evaluates every rule against the record, persists new findings and
// refreshes the record's open-anomaly counters. It returns the number of
// findings inserted by this call.
func (s *AnomalyService) Detect(ctx context.Context, record *models.AttendanceRecord, schedule *models.EffectiveSchedule, settings models.EngineSettings, auths []models.Authorization) (int, error) {
	findings := evaluateRules(record, schedule, settings, auths)

	inserted := 0
	for _, f := range findings {
		exists, err := s.repo.OpenExists(ctx, record.ID, f.anomalyType)
		if err != nil {
			return inserted, err
		}
		if exists {
			continue
		}
		expected := f.expected
		actual := f.actual
		anomaly := &models.AttendanceAnomaly{
			AttendanceID:     record.ID,
			EmployeeID:       record.EmployeeID,
			Type:             f.anomalyType,
			Severity:         f.severity,
			Expected:         &expected,
			Actual:           &actual,
			DeviationMinutes: f.deviation,
			Status:           models.AnomalyStatusOpen,
			AutoDetected:     true,
		}
		if err := s.repo.Insert(ctx, anomaly); err != nil {
			return inserted, err
		}
		inserted++
		if s.metrics != nil {
			s.metrics.RecordAnomaly(string(f.anomalyType), string(f.severity))
		}
	}

	count, err := s.repo.CountOpen(ctx, record.ID)
	if err != nil {
		return inserted, err
	}
	if err := s.attendanceRepo.UpdateAnomalyCount(ctx, record.ID, count); err != nil {
		return inserted, err
	}
	record.AnomalyCount = count
	record.HasAnomalies = count > 0
	return inserted, nil
}

func evaluateRules(record *models.AttendanceRecord, schedule *models.EffectiveSchedule, settings models.EngineSettings, auths []models.Authorization) []finding {
	var findings []finding

	if record.CheckIn != nil && record.CheckOut == nil && record.Status != models.AttendanceStatusAbsent {
		findings = append(findings, finding{
			anomalyType: models.AnomalyTypeMissingCheckout,
			severity:    models.AnomalySeverityWarning,
			expected:    "check-out punch",
			actual:      "none recorded",
		})
	}
	if record.CheckIn == nil && record.CheckOut != nil {
		findings = append(findings, finding{
			anomalyType: models.AnomalyTypeMissingCheckin,
			severity:    models.AnomalySeverityWarning,
			expected:    "check-in punch",
			actual:      "none recorded",
		})
	}
	if record.OvertimeHours > 0 && authorizedHours(auths, models.AuthorizationTypeOvertime) == 0 {
		findings = append(findings, finding{
			anomalyType: models.AnomalyTypeUnauthorizedOvertime,
			severity:    models.AnomalySeverityWarning,
			expected:    "approved overtime authorization",
			actual:      fmt.Sprintf("%.2f overtime hours without authorization", record.OvertimeHours),
		})
	}
	if record.NightShiftHours > 0 && authorizedHours(auths, models.AuthorizationTypeNightShift) == 0 {
		findings = append(findings, finding{
			anomalyType: models.AnomalyTypeUnauthorizedNightWork,
			severity:    models.AnomalySeverityCritical,
			expected:    "approved night-shift authorization",
			actual:      fmt.Sprintf("%.2f night-shift hours without authorization", record.NightShiftHours),
		})
	}
	// Only observed lunch pairs are judged; an imputed schedule break can
	// never exceed its own allowance.
	if allowed := schedule.BreakMinutes + settings.LunchDeviationMinutes; record.LunchOut != nil && record.LunchIn != nil && record.BreakMinutes > allowed {
		findings = append(findings, finding{
			anomalyType: models.AnomalyTypeExcessiveBreak,
			severity:    models.AnomalySeverityInfo,
			expected:    fmt.Sprintf("break of at most %d minutes", allowed),
			actual:      fmt.Sprintf("%d minutes", record.BreakMinutes),
			deviation:   record.BreakMinutes - allowed,
		})
	}
	if record.WorkedHours >= 5 && schedule.BreakMinutes > 0 && record.LunchOut == nil && record.LunchIn == nil {
		findings = append(findings, finding{
			anomalyType: models.AnomalyTypeMissingLunch,
			severity:    models.AnomalySeverityInfo,
			expected:    "lunch-out and lunch-in punches",
			actual:      "none recorded",
		})
	}
	if record.LateMinutes > 30 {
		severity := models.AnomalySeverityInfo
		if record.LateMinutes > 60 {
			severity = models.AnomalySeverityWarning
		}
		findings = append(findings, finding{
			anomalyType: models.AnomalyTypeLateArrival,
			severity:    severity,
			expected:    "arrival within tolerance",
			actual:      fmt.Sprintf("%d minutes late", record.LateMinutes),
			deviation:   record.LateMinutes,
		})
	}
	if record.EarlyDeparture > 15 && !hasApprovedAuthorization(auths, models.AuthorizationTypeExitPermission) {
		severity := models.AnomalySeverityInfo
		if record.EarlyDeparture > 60 {
			severity = models.AnomalySeverityWarning
		}
		findings = append(findings, finding{
			anomalyType: models.AnomalyTypeEarlyDeparture,
			severity:    severity,
			expected:    "departure at scheduled exit",
			actual:      fmt.Sprintf("%d minutes early", record.EarlyDeparture),
			deviation:   record.EarlyDeparture,
		})
	}
	if record.CheckIn != nil {
		actual := record.CheckIn.Hour()*60 + record.CheckIn.Minute()
		if ahead := schedule.EntryMinutes - actual; ahead > 60 {
			findings = append(findings, finding{
				anomalyType: models.AnomalyTypeScheduleDeviation,
				severity:    models.AnomalySeverityInfo,
				expected:    "check-in near scheduled entry",
				actual:      fmt.Sprintf("%d minutes before scheduled entry", ahead),
				deviation:   ahead,
			})
		}
	}
	if len(record.RawPunches) > 8 {
		findings = append(findings, finding{
			anomalyType: models.AnomalyTypeDuplicatePunches,
			severity:    models.AnomalySeverityInfo,
			expected:    "at most 8 punches per day",
			actual:      fmt.Sprintf("%d punches", len(record.RawPunches)),
		})
	}

	return findings
}

// List returns findings matching the filter.
func (s *AnomalyService) List(ctx context.Context, filter models.AnomalyFilter) ([]models.AttendanceAnomaly, int, error) {
	return s.repo.List(ctx, filter)
}

// Resolve closes a finding and refreshes the owning record's counters.
func (s *AnomalyService) Resolve(ctx context.Context, id string, status models.AnomalyStatus, resolvedBy string) error {
	anomaly, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, id, status, resolvedBy); err != nil {
		return err
	}
	count, err := s.repo.CountOpen(ctx, anomaly.AttendanceID)
	if err != nil {
		return err
	}
	return s.attendanceRepo.UpdateAnomalyCount(ctx, anomaly.AttendanceID, count)
}
