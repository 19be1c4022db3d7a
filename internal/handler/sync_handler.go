package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/asistmx/checador-api/internal/models"
	"github.com/asistmx/checador-api/pkg/response"
)

type syncService interface {
	Trigger() error
	GetRun(ctx context.Context, id string) (*models.SyncRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}

// SyncHandler exposes ingestion run control and status.
type SyncHandler struct {
	service syncService
}

// NewSyncHandler builds a new handler.
func NewSyncHandler(service syncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// Trigger godoc
// @Summary Trigger an on-demand punch ingestion run
// @Tags Sync
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /sync/runs [post]
func (h *SyncHandler) Trigger(c *gin.Context) {
	if err := h.service.Trigger(); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"status": "queued"}, nil)
}

// ListRuns godoc
// @Summary List recent ingestion runs
// @Tags Sync
// @Produce json
// @Param limit query int false "Max runs"
// @Success 200 {object} response.Envelope
// @Router /sync/runs [get]
func (h *SyncHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, nil)
}

// GetRun godoc
// @Summary Get one ingestion run
// @Tags Sync
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /sync/runs/{id} [get]
func (h *SyncHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}
