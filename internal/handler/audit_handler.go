package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/libstats-api/internal/models"
	"github.com/noah-isme/libstats-api/pkg/response"
)

type auditTrailService interface {
	List(ctx context.Context, actor *models.JWTClaims, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	service auditTrailService
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(service auditTrailService) *AuditHandler {
	return &AuditHandler{service: service}
}

// List godoc
// @Summary Audit history of a resource
// @Tags Audit
// @Produce json
// @Param resource path string true "category_record, institution_year, scheduled_event or export_job"
// @Param resourceId path string true "Resource ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /audit/{resource}/{resourceId} [get]
func (h *AuditHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.service.List(c.Request.Context(), claimsFromContext(c), c.Param("resource"), c.Param("resourceId"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
