package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/asistmx/checador-api/internal/dto"
	"github.com/asistmx/checador-api/internal/models"
	appErrors "github.com/asistmx/checador-api/pkg/errors"
	"github.com/asistmx/checador-api/pkg/response"
)

type anomalyService interface {
	List(ctx context.Context, filter models.AnomalyFilter) ([]models.AttendanceAnomaly, int, error)
	Resolve(ctx context.Context, id string, status models.AnomalyStatus, resolvedBy string) error
}

// AnomalyHandler exposes anomaly findings and their resolution.
type AnomalyHandler struct {
	service anomalyService
}

// NewAnomalyHandler builds a new handler.
func NewAnomalyHandler(service anomalyService) *AnomalyHandler {
	return &AnomalyHandler{service: service}
}

// List godoc
// @Summary List anomaly findings
// @Tags Anomalies
// @Produce json
// @Param employee_id query string false "Employee filter"
// @Param type query string false "Anomaly type"
// @Param severity query string false "Severity"
// @Param status query string false "Lifecycle status"
// @Success 200 {object} response.Envelope
// @Router /anomalies [get]
func (h *AnomalyHandler) List(c *gin.Context) {
	filter := models.AnomalyFilter{
		EmployeeID: c.Query("employee_id"),
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if raw := c.Query("type"); raw != "" {
		t := models.AnomalyType(raw)
		filter.Type = &t
	}
	if raw := c.Query("severity"); raw != "" {
		sev := models.AnomalySeverity(raw)
		filter.Severity = &sev
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AnomalyStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid status"))
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("date_from"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateFrom = &t
		}
	}
	if raw := c.Query("date_to"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateTo = &t
		}
	}

	findings, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, findings, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Resolve godoc
// @Summary Resolve or dismiss an anomaly finding
// @Tags Anomalies
// @Accept json
// @Produce json
// @Param id path string true "Anomaly ID"
// @Param payload body dto.ResolveAnomalyRequest true "Resolution payload"
// @Success 204
// @Router /anomalies/{id}/resolve [put]
func (h *AnomalyHandler) Resolve(c *gin.Context) {
	var req dto.ResolveAnomalyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolution payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Resolve(c.Request.Context(), c.Param("id"), models.AnomalyStatus(req.Status), claims.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
