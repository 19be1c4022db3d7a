package service

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
	appErrors "github.com/asistmx/checador-api/pkg/errors"
	"github.com/asistmx/checador-api/pkg/export"
	"github.com/asistmx/checador-api/pkg/storage"
)

// ExportFormat selects the rendered artifact type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult points a caller at a rendered artifact.
type ExportResult struct {
	FileName  string    `json:"file_name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders payroll entries and attendance listings into CSV or
// PDF artifacts stored on disk behind signed download tokens.
type ExportService struct {
	payroll    *PayrollService
	attendance *AttendanceService
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	store      *storage.LocalStorage
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(payroll *PayrollService, attendance *AttendanceService, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	return &ExportService{
		payroll:    payroll,
		attendance: attendance,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		store:      store,
		signer:     signer,
		logger:     logger,
	}
}

// ExportPayrollPeriod renders every entry of a period.
func (s *ExportService) ExportPayrollPeriod(ctx context.Context, periodID string, format ExportFormat) (*ExportResult, error) {
	period, err := s.payroll.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	entries, err := s.payroll.ListEntries(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, "EXPORT_LOAD_FAILED", http.StatusInternalServerError, "could not load payroll entries")
	}

	dataset := export.Dataset{
		Headers: []string{"code", "employee", "regular_hours", "overtime_hours", "holiday_hours", "weekend_hours", "night_shift_hours", "worked_days", "absent_days", "gross_pay", "deductions", "net_pay"},
	}
	for _, entry := range entries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"code":              entry.EmployeeCode,
			"employee":          entry.EmployeeName,
			"regular_hours":     formatHours(entry.RegularHours),
			"overtime_hours":    formatHours(entry.OvertimeHours),
			"holiday_hours":     formatHours(entry.HolidayHours),
			"weekend_hours":     formatHours(entry.WeekendHours),
			"night_shift_hours": formatHours(entry.NightShiftHours),
			"worked_days":       strconv.Itoa(entry.WorkedDays),
			"absent_days":       strconv.Itoa(entry.AbsentDays),
			"gross_pay":         formatMoney(entry.GrossPay),
			"deductions":        formatMoney(entry.Deductions),
			"net_pay":           formatMoney(entry.NetPay),
		})
	}
	title := fmt.Sprintf("Payroll %s (%s to %s)", period.Name, period.StartDate.Format("2006-01-02"), period.EndDate.Format("2006-01-02"))
	return s.render(dataset, title, "payroll-"+periodID, format)
}

// ExportAttendance renders an attendance listing for the filter.
func (s *ExportService) ExportAttendance(ctx context.Context, filter models.AttendanceFilter, format ExportFormat) (*ExportResult, error) {
	filter.Page = 1
	filter.PageSize = 200
	records, _, err := s.attendance.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, "EXPORT_LOAD_FAILED", http.StatusInternalServerError, "could not load attendance records")
	}

	dataset := export.Dataset{
		Headers: []string{"code", "employee", "date", "check_in", "check_out", "worked_hours", "overtime_hours", "late_minutes", "status"},
	}
	for _, rec := range records {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"code":           rec.EmployeeCode,
			"employee":       rec.EmployeeName,
			"date":           rec.WorkDate.Format("2006-01-02"),
			"check_in":       formatClock(rec.CheckIn),
			"check_out":      formatClock(rec.CheckOut),
			"worked_hours":   formatHours(rec.WorkedHours),
			"overtime_hours": formatHours(rec.OvertimeHours),
			"late_minutes":   strconv.Itoa(rec.LateMinutes),
			"status":         string(rec.Status),
		})
	}
	return s.render(dataset, "Attendance report", "attendance", format)
}

func (s *ExportService) render(dataset export.Dataset, title, prefix string, format ExportFormat) (*ExportResult, error) {
	var (
		payload []byte
		err     error
		ext     string
	)
	switch format {
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		ext = "pdf"
	case ExportFormatCSV, "":
		payload, err = s.csv.Render(dataset)
		ext = "csv"
	default:
		return nil, appErrors.New("INVALID_EXPORT_FORMAT", http.StatusBadRequest, fmt.Sprintf("unknown export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, "EXPORT_RENDER_FAILED", http.StatusInternalServerError, "could not render export")
	}

	exportID := uuid.NewString()
	fileName := fmt.Sprintf("%s-%s.%s", prefix, time.Now().Format("20060102-150405"), ext)
	if _, err := s.store.Save(fileName, payload); err != nil {
		return nil, appErrors.Wrap(err, "EXPORT_SAVE_FAILED", http.StatusInternalServerError, "could not store export")
	}
	token, expiresAt, err := s.signer.Generate(exportID, fileName)
	if err != nil {
		return nil, appErrors.Wrap(err, "EXPORT_SIGN_FAILED", http.StatusInternalServerError, "could not sign export url")
	}
	s.logger.Info("export rendered",
		zap.String("file", fileName),
		zap.Int("rows", len(dataset.Rows)),
		zap.String("format", ext))
	return &ExportResult{FileName: fileName, Token: token, ExpiresAt: expiresAt}, nil
}

// Open validates a signed token and opens the referenced artifact.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, "INVALID_EXPORT_TOKEN", http.StatusForbidden, "export link is invalid or expired")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, "EXPORT_NOT_FOUND", http.StatusNotFound, "export file not found")
	}
	return file, relPath, nil
}

// CleanupExpired deletes artifacts older than the signed link TTL.
func (s *ExportService) CleanupExpired(ttl time.Duration) {
	deleted, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
	}
}

func formatHours(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatClock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04")
}
