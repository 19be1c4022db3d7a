package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/asistmx/checador-api/internal/dto"
	"github.com/asistmx/checador-api/internal/models"
	appErrors "github.com/asistmx/checador-api/pkg/errors"
	"github.com/asistmx/checador-api/pkg/response"
)

type settingsService interface {
	List(ctx context.Context) ([]models.EngineSetting, error)
	Snapshot(ctx context.Context) models.EngineSettings
	Update(ctx context.Context, key, value, updatedBy string) error
}

// SettingsHandler exposes the engine threshold configuration.
type SettingsHandler struct {
	service settingsService
}

// NewSettingsHandler builds a new handler.
func NewSettingsHandler(service settingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// List godoc
// @Summary List stored engine settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingsHandler) List(c *gin.Context) {
	rows, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Snapshot godoc
// @Summary Get the resolved settings snapshot
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/snapshot [get]
func (h *SettingsHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Snapshot(c.Request.Context()), nil)
}

// Update godoc
// @Summary Update one engine setting
// @Tags Settings
// @Accept json
// @Produce json
// @Param key path string true "Setting key"
// @Param payload body dto.UpdateSettingRequest true "Setting payload"
// @Success 204
// @Router /settings/{key} [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	var req dto.UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid setting payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Update(c.Request.Context(), c.Param("key"), req.Value, claims.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
