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

type submissionService interface {
	Get(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int, category string) (*models.CategoryRecord, error)
	Submit(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int, category string, req dto.SubmitCategoryRequest) (*dto.SubmissionResponse, error)
}

type entryStatusReader interface {
	Get(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int) (*models.EntryStatus, error)
}

type subscriptionImporter interface {
	Import(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int, kind string) (*dto.ImportResponse, error)
}

// CategoryHandler exposes per-institution category forms and entry status.
type CategoryHandler struct {
	submissions   submissionService
	statuses      entryStatusReader
	subscriptions subscriptionImporter
}

// NewCategoryHandler constructs a CategoryHandler.
func NewCategoryHandler(submissions submissionService, statuses entryStatusReader, subscriptions subscriptionImporter) *CategoryHandler {
	return &CategoryHandler{submissions: submissions, statuses: statuses, subscriptions: subscriptions}
}

// categoryDescriptor lists a form's fields for clients building input screens.
type categoryDescriptor struct {
	Category     models.Category `json:"category"`
	Label        string          `json:"label"`
	InputFields  []string        `json:"inputFields"`
	OutputFields []string        `json:"outputFields"`
	Monetary     bool            `json:"monetary"`
}

// Definitions godoc
// @Summary List category forms and their fields
// @Tags Categories
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *CategoryHandler) Definitions(c *gin.Context) {
	tags := models.Categories()
	items := make([]categoryDescriptor, 0, len(tags))
	for _, tag := range tags {
		def, _ := models.LookupCategory(string(tag))
		items = append(items, categoryDescriptor{
			Category:     def.Category,
			Label:        def.Label,
			InputFields:  def.InputFields(),
			OutputFields: def.OutputFields(),
			Monetary:     def.Monetary,
		})
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// EntryStatus godoc
// @Summary Get which category forms an institution has completed
// @Tags Institutions
// @Produce json
// @Param institutionId path int true "Institution ID"
// @Param year path int true "Collection year"
// @Success 200 {object} response.Envelope
// @Router /institutions/{institutionId}/years/{year}/entry-status [get]
func (h *CategoryHandler) EntryStatus(c *gin.Context) {
	institutionID, year, err := institutionYearParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	status, err := h.statuses.Get(c.Request.Context(), claimsFromContext(c), institutionID, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Get godoc
// @Summary Get a category form
// @Tags Categories
// @Produce json
// @Param institutionId path int true "Institution ID"
// @Param year path int true "Collection year"
// @Param category path string true "Category tag"
// @Success 200 {object} response.Envelope
// @Router /institutions/{institutionId}/years/{year}/categories/{category} [get]
func (h *CategoryHandler) Get(c *gin.Context) {
	institutionID, year, err := institutionYearParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.submissions.Get(c.Request.Context(), claimsFromContext(c), institutionID, year, c.Param("category"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Submit godoc
// @Summary Submit a category form
// @Description Stores input values, recomputes subtotals and grand total and flags the entry status.
// @Tags Categories
// @Accept json
// @Produce json
// @Param institutionId path int true "Institution ID"
// @Param year path int true "Collection year"
// @Param category path string true "Category tag"
// @Param payload body dto.SubmitCategoryRequest true "Field values"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /institutions/{institutionId}/years/{year}/categories/{category} [put]
func (h *CategoryHandler) Submit(c *gin.Context) {
	institutionID, year, err := institutionYearParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SubmitCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid category payload"))
		return
	}
	result, err := h.submissions.Submit(c.Request.Context(), claimsFromContext(c), institutionID, year, c.Param("category"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ImportSubscriptions godoc
// @Summary Import subscription counts from the catalog
// @Tags Categories
// @Produce json
// @Param institutionId path int true "Institution ID"
// @Param year path int true "Collection year"
// @Param kind path string true "av, ebook or ejournal"
// @Success 200 {object} response.Envelope
// @Router /institutions/{institutionId}/years/{year}/subscriptions/{kind}/import [post]
func (h *CategoryHandler) ImportSubscriptions(c *gin.Context) {
	institutionID, year, err := institutionYearParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.subscriptions.Import(c.Request.Context(), claimsFromContext(c), institutionID, year, c.Param("kind"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
