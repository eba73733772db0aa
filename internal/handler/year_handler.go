package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/libstats-api/internal/dto"
	"github.com/noah-isme/libstats-api/internal/models"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
	"github.com/noah-isme/libstats-api/pkg/response"
)

type windowService interface {
	State(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int) (*dto.WindowState, error)
	Open(ctx context.Context, actor *models.JWTClaims, year int, req dto.WindowRequest) (*dto.WindowResponse, error)
	Close(ctx context.Context, actor *models.JWTClaims, year int, req dto.WindowRequest) (*dto.WindowResponse, error)
	CreateYear(ctx context.Context, actor *models.JWTClaims, req dto.CreateYearRequest) (*dto.CreateYearResponse, error)
	DeleteYear(ctx context.Context, actor *models.JWTClaims, year int) (*dto.DeleteYearResponse, error)
}

type yearPublisher interface {
	PublishYear(ctx context.Context, actor *models.JWTClaims, year int) (*dto.PublishYearResponse, error)
}

// YearHandler exposes collection year and window administration.
type YearHandler struct {
	windows   windowService
	publisher yearPublisher
}

// NewYearHandler constructs a YearHandler.
func NewYearHandler(windows windowService, publisher yearPublisher) *YearHandler {
	return &YearHandler{windows: windows, publisher: publisher}
}

// Create godoc
// @Summary Create a collection year for every active institution
// @Tags Years
// @Accept json
// @Produce json
// @Param payload body dto.CreateYearRequest true "Year payload"
// @Success 201 {object} response.Envelope
// @Router /years [post]
func (h *YearHandler) Create(c *gin.Context) {
	var req dto.CreateYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid year payload"))
		return
	}
	result, err := h.windows.CreateYear(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Open godoc
// @Summary Open the submission window
// @Description Opens the year for every institution, or only for institutionIds when given.
// @Tags Years
// @Accept json
// @Produce json
// @Param year path int true "Collection year"
// @Param payload body dto.WindowRequest false "Scope"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/open [post]
func (h *YearHandler) Open(c *gin.Context) {
	h.toggle(c, h.windows.Open)
}

// Close godoc
// @Summary Close the submission window
// @Tags Years
// @Accept json
// @Produce json
// @Param year path int true "Collection year"
// @Param payload body dto.WindowRequest false "Scope"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/close [post]
func (h *YearHandler) Close(c *gin.Context) {
	h.toggle(c, h.windows.Close)
}

func (h *YearHandler) toggle(c *gin.Context, fn func(context.Context, *models.JWTClaims, int, dto.WindowRequest) (*dto.WindowResponse, error)) {
	year, err := intParam(c, "year")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.WindowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid window payload"))
			return
		}
	}
	result, err := fn(c.Request.Context(), claimsFromContext(c), year, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Publish godoc
// @Summary Publish a collection year
// @Tags Years
// @Produce json
// @Param year path int true "Collection year"
// @Success 200 {object} response.Envelope
// @Router /years/{year}/publish [post]
func (h *YearHandler) Publish(c *gin.Context) {
	year, err := intParam(c, "year")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.publisher.PublishYear(c.Request.Context(), claimsFromContext(c), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete an unpublished collection year
// @Tags Years
// @Produce json
// @Param year path int true "Collection year"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /years/{year} [delete]
func (h *YearHandler) Delete(c *gin.Context) {
	year, err := intParam(c, "year")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.windows.DeleteYear(c.Request.Context(), claimsFromContext(c), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Window godoc
// @Summary Get an institution's year and window state
// @Tags Institutions
// @Produce json
// @Param institutionId path int true "Institution ID"
// @Param year path int true "Collection year"
// @Success 200 {object} response.Envelope
// @Router /institutions/{institutionId}/years/{year} [get]
func (h *YearHandler) Window(c *gin.Context) {
	institutionID, year, err := institutionYearParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	state, err := h.windows.State(c.Request.Context(), claimsFromContext(c), institutionID, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}
