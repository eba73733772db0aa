package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/dto"
	"github.com/noah-isme/libstats-api/internal/models"
	"github.com/noah-isme/libstats-api/internal/service"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
	"github.com/noah-isme/libstats-api/pkg/logger"
	"github.com/noah-isme/libstats-api/pkg/response"
)

type exportJobService interface {
	Request(ctx context.Context, actor *models.JWTClaims, req dto.ExportRequest) (*dto.ExportJobResponse, error)
	Status(ctx context.Context, actor *models.JWTClaims, id string) (*dto.ExportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler exposes aggregate export endpoints.
type ExportHandler struct {
	service exportJobService
	logger  *zap.Logger
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(svc exportJobService, log *zap.Logger) *ExportHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExportHandler{service: svc, logger: log}
}

// Request godoc
// @Summary Request an aggregate export
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Request(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	job, err := h.service.Request(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Get export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished export through its signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Router /export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	download, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.Body.Close()

	c.Header("Content-Type", download.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Cache-Control", "private, max-age=0, no-store")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, download.Body); err != nil {
		logger.WithContext(h.logger, c.Request.Context()).Warn("export download interrupted", zap.String("filename", download.Filename), zap.Error(err))
	}
}
