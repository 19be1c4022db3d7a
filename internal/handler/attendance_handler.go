package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/asistmx/checador-api/internal/dto"
	"github.com/asistmx/checador-api/internal/models"
	"github.com/asistmx/checador-api/internal/service"
	appErrors "github.com/asistmx/checador-api/pkg/errors"
	"github.com/asistmx/checador-api/pkg/response"
)

type attendanceService interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error)
	Get(ctx context.Context, id string) (*models.AttendanceRecord, error)
	Correct(ctx context.Context, id string, correction service.AttendanceCorrection) (*models.AttendanceRecord, error)
}

type attendanceExportService interface {
	ExportAttendance(ctx context.Context, filter models.AttendanceFilter, format service.ExportFormat) (*service.ExportResult, error)
}

// AttendanceHandler exposes reconciled attendance records.
type AttendanceHandler struct {
	service attendanceService
	exports attendanceExportService
}

// NewAttendanceHandler builds a new handler.
func NewAttendanceHandler(service attendanceService, exports attendanceExportService) *AttendanceHandler {
	return &AttendanceHandler{service: service, exports: exports}
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param employee_id query string false "Employee filter"
// @Param date_from query string false "Start date (2006-01-02)"
// @Param date_to query string false "End date (2006-01-02)"
// @Param status query string false "Status filter"
// @Param has_anomalies query bool false "Only records with anomalies"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter, err := attendanceFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get one attendance record
// @Tags Attendance
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Correct godoc
// @Summary Manually correct an attendance record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.CorrectAttendanceRequest true "Correction payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id}/correct [put]
func (h *AttendanceHandler) Correct(c *gin.Context) {
	var req dto.CorrectAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid correction payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.Correct(c.Request.Context(), c.Param("id"), service.AttendanceCorrection{
		CheckIn:      req.CheckIn,
		CheckOut:     req.CheckOut,
		LunchOut:     req.LunchOut,
		LunchIn:      req.LunchIn,
		BreakMinutes: req.BreakMinutes,
		EditedBy:     claims.Email,
		Reason:       req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Export godoc
// @Summary Export filtered attendance records as CSV or PDF
// @Tags Attendance
// @Produce json
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} response.Envelope
// @Router /attendance/export [post]
func (h *AttendanceHandler) Export(c *gin.Context) {
	filter, err := attendanceFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))
	result, err := h.exports.ExportAttendance(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func attendanceFilterFromQuery(c *gin.Context) (models.AttendanceFilter, error) {
	filter := models.AttendanceFilter{
		EmployeeID: c.Query("employee_id"),
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	if raw := c.Query("date_from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date_from")
		}
		filter.DateFrom = &t
	}
	if raw := c.Query("date_to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date_to")
		}
		filter.DateTo = &t
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AttendanceStatus(raw)
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid status")
		}
		filter.Status = &status
	}
	if raw := c.Query("has_anomalies"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid has_anomalies")
		}
		filter.HasAnomalies = &v
	}
	return filter, nil
}
