package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/libstats-api/internal/middleware"
	"github.com/noah-isme/libstats-api/internal/models"
	"github.com/noah-isme/libstats-api/pkg/response"
)

type aggregateService interface {
	Aggregate(ctx context.Context, actor *models.JWTClaims, year int, category string) (*models.Aggregate, error)
}

// AggregateHandler exposes participation-filtered aggregates.
type AggregateHandler struct {
	service aggregateService
}

// NewAggregateHandler constructs an AggregateHandler.
func NewAggregateHandler(service aggregateService) *AggregateHandler {
	return &AggregateHandler{service: service}
}

// Get godoc
// @Summary Aggregate a category across participating institutions
// @Tags Aggregates
// @Produce json
// @Param year path int true "Collection year"
// @Param category path string true "Category tag"
// @Success 200 {object} response.Envelope
// @Router /aggregates/{year}/{category} [get]
func (h *AggregateHandler) Get(c *gin.Context) {
	year, err := intParam(c, "year")
	if err != nil {
		response.Error(c, err)
		return
	}
	aggregate, err := h.service.Aggregate(c.Request.Context(), claimsFromContext(c), year, c.Param("category"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "participants", aggregate.Participants)
	middleware.SetMeta(c, "filtered", aggregate.Filtered)
	response.JSON(c, http.StatusOK, aggregate, nil, middleware.ExtractMeta(c))
}
