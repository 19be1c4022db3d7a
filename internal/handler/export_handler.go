package handler

import (
	"os"

	"github.com/gin-gonic/gin"

	"github.com/asistmx/checador-api/pkg/response"
)

type exportDownloadService interface {
	Open(token string) (*os.File, string, error)
}

// ExportHandler serves rendered export artifacts behind signed tokens.
type ExportHandler struct {
	service exportDownloadService
}

// NewExportHandler builds a new handler.
func NewExportHandler(service exportDownloadService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Download godoc
// @Summary Download an export artifact with a signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, name, err := h.service.Open(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()
	c.FileAttachment(file.Name(), name)
}
