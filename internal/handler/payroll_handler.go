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

type payrollService interface {
	CreatePeriod(ctx context.Context, period *models.PayrollPeriod) error
	GetPeriod(ctx context.Context, id string) (*models.PayrollPeriod, error)
	ListPeriods(ctx context.Context, page, pageSize int) ([]models.PayrollPeriod, int, error)
	Calculate(ctx context.Context, periodID string) error
	Approve(ctx context.Context, periodID, actor string) error
	MarkPaid(ctx context.Context, periodID, actor string) error
	ListEntries(ctx context.Context, periodID string) ([]models.PayrollEntryDetail, error)
}

type payrollExportService interface {
	ExportPayrollPeriod(ctx context.Context, periodID string, format service.ExportFormat) (*service.ExportResult, error)
}

// PayrollHandler exposes payroll periods, calculation and entries.
type PayrollHandler struct {
	service payrollService
	exports payrollExportService
}

// NewPayrollHandler builds a new handler.
func NewPayrollHandler(service payrollService, exports payrollExportService) *PayrollHandler {
	return &PayrollHandler{service: service, exports: exports}
}

// CreatePeriod godoc
// @Summary Create a draft payroll period
// @Tags Payroll
// @Accept json
// @Produce json
// @Param payload body dto.CreatePayrollPeriodRequest true "Period payload"
// @Success 201 {object} response.Envelope
// @Router /payroll/periods [post]
func (h *PayrollHandler) CreatePeriod(c *gin.Context) {
	var req dto.CreatePayrollPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid period payload"))
		return
	}
	startDate, _ := time.Parse("2006-01-02", req.StartDate)
	endDate, _ := time.Parse("2006-01-02", req.EndDate)
	period := &models.PayrollPeriod{
		Name:      req.Name,
		Type:      models.PayrollPeriodType(req.Type),
		StartDate: startDate,
		EndDate:   endDate,
	}
	if err := h.service.CreatePeriod(c.Request.Context(), period); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// ListPeriods godoc
// @Summary List payroll periods
// @Tags Payroll
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payroll/periods [get]
func (h *PayrollHandler) ListPeriods(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	periods, total, err := h.service.ListPeriods(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total})
}

// GetPeriod godoc
// @Summary Get one payroll period
// @Tags Payroll
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /payroll/periods/{id} [get]
func (h *PayrollHandler) GetPeriod(c *gin.Context) {
	period, err := h.service.GetPeriod(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Calculate godoc
// @Summary Calculate every employee's entry for the period
// @Tags Payroll
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /payroll/periods/{id}/calculate [post]
func (h *PayrollHandler) Calculate(c *gin.Context) {
	if err := h.service.Calculate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "calculated"}, nil)
}

// Approve godoc
// @Summary Approve a reviewed period
// @Tags Payroll
// @Produce json
// @Param id path string true "Period ID"
// @Success 204
// @Router /payroll/periods/{id}/approve [put]
func (h *PayrollHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Approve(c.Request.Context(), c.Param("id"), claims.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkPaid godoc
// @Summary Mark an approved period as paid
// @Tags Payroll
// @Produce json
// @Param id path string true "Period ID"
// @Success 204
// @Router /payroll/periods/{id}/pay [put]
func (h *PayrollHandler) MarkPaid(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.MarkPaid(c.Request.Context(), c.Param("id"), claims.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListEntries godoc
// @Summary List a period's computed entries
// @Tags Payroll
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /payroll/periods/{id}/entries [get]
func (h *PayrollHandler) ListEntries(c *gin.Context) {
	entries, err := h.service.ListEntries(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Export godoc
// @Summary Export a period's entries as CSV or PDF
// @Tags Payroll
// @Produce json
// @Param id path string true "Period ID"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /payroll/periods/{id}/export [post]
func (h *PayrollHandler) Export(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.ExportPayrollPeriod(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
