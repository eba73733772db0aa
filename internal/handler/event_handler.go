package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/libstats-api/internal/dto"
	"github.com/noah-isme/libstats-api/internal/models"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
	"github.com/noah-isme/libstats-api/pkg/response"
)

type eventService interface {
	Schedule(ctx context.Context, actor *models.JWTClaims, req dto.ScheduleEventRequest) (*models.ScheduledEvent, error)
	Get(ctx context.Context, actor *models.JWTClaims, id int64) (*models.ScheduledEvent, error)
	List(ctx context.Context, actor *models.JWTClaims, filter models.ScheduledEventFilter) ([]models.ScheduledEvent, *models.Pagination, error)
	Cancel(ctx context.Context, actor *models.JWTClaims, id int64) (*models.ScheduledEvent, error)
	Execute(ctx context.Context, actor *models.JWTClaims, id int64) (*dto.EventExecution, error)
	RunDue(ctx context.Context, actor *models.JWTClaims) (*dto.RunDueResponse, error)
}

// EventHandler exposes the scheduled event queue.
type EventHandler struct {
	service eventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(service eventService) *EventHandler {
	return &EventHandler{service: service}
}

// List godoc
// @Summary List scheduled events
// @Tags Events
// @Produce json
// @Param status query string false "pending, completed or cancelled"
// @Param eventType query string false "BROADCAST, FORM_OPENING or FORM_CLOSING"
// @Param year query int false "Collection year"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	filter, err := eventFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	events, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

func eventFilterFromQuery(c *gin.Context) (models.ScheduledEventFilter, error) {
	var filter models.ScheduledEventFilter
	if raw := c.Query("status"); raw != "" {
		status := models.EventStatus(strings.ToLower(raw))
		filter.Status = &status
	}
	if raw := c.Query("eventType"); raw != "" {
		eventType := models.EventType(strings.ToUpper(raw))
		if !eventType.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown eventType")
		}
		filter.EventType = &eventType
	}
	if raw := c.Query("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "year must be an integer")
		}
		filter.Year = &year
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	return filter, nil
}

// Schedule godoc
// @Summary Schedule an event
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Schedule(c *gin.Context) {
	var req dto.ScheduleEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	event, err := h.service.Schedule(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Get godoc
// @Summary Get a scheduled event
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	event, err := h.service.Get(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Cancel godoc
// @Summary Cancel a pending event
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [delete]
func (h *EventHandler) Cancel(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	event, err := h.service.Cancel(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Execute godoc
// @Summary Execute an event immediately
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/execute [post]
func (h *EventHandler) Execute(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Execute(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RunDue godoc
// @Summary Execute every pending event whose date has passed
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /events/run-due [post]
func (h *EventHandler) RunDue(c *gin.Context) {
	result, err := h.service.RunDue(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
