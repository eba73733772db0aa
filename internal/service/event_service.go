package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/dto"
	"github.com/noah-isme/libstats-api/internal/models"
	"github.com/noah-isme/libstats-api/internal/repository"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

type scheduledEventRepository interface {
	Create(ctx context.Context, event *models.ScheduledEvent) error
	FindByID(ctx context.Context, id int64) (*models.ScheduledEvent, error)
	FindPending(ctx context.Context, eventType models.EventType, year int) (*models.ScheduledEvent, error)
	List(ctx context.Context, filter models.ScheduledEventFilter) ([]models.ScheduledEvent, int, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledEvent, error)
	Transition(ctx context.Context, id int64, from, to models.EventStatus, at time.Time) (bool, error)
}

type windowSetter interface {
	SetWindow(ctx context.Context, year int, open bool, scope models.WindowScope) (int64, error)
}

type broadcaster interface {
	Broadcast(ctx context.Context, event *models.ScheduledEvent) error
}

// EventServiceConfig tunes the due-event runner.
type EventServiceConfig struct {
	BatchSize int
}

// EventService manages deferred administrative actions. Nothing runs on a timer
// inside the process; execution is triggered by the runner or an administrator.
type EventService struct {
	events    scheduledEventRepository
	windows   windowSetter
	notifier  broadcaster
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       EventServiceConfig
	now       func() time.Time
}

// NewEventService constructs an EventService.
func NewEventService(events scheduledEventRepository, windows windowSetter, notifier broadcaster, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg EventServiceConfig) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &EventService{
		events:    events,
		windows:   windows,
		notifier:  notifier,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Schedule records a pending event. Only one pending event may exist per type and year.
func (s *EventService) Schedule(ctx context.Context, actor *models.JWTClaims, req dto.ScheduleEventRequest) (*models.ScheduledEvent, error) {
	entry := auditEntry{Action: models.AuditActionEventSchedule, Resource: models.AuditResourceScheduledEvent, New: req}
	if err := requireSuperAdmin(actor); err != nil {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	eventType := models.EventType(req.EventType)
	if !eventType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown event type")
	}
	if err := validateYear(req.Year); err != nil {
		return nil, err
	}

	existing, err := s.events.FindPending(ctx, eventType, req.Year)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending events")
	}
	if existing != nil {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, duplicateEventError(existing)
	}

	event := &models.ScheduledEvent{
		EventType:     eventType,
		Year:          req.Year,
		ScheduledDate: req.ScheduledDate.UTC(),
		Status:        models.EventStatusPending,
		Notes:         req.Notes,
	}
	if actor.UserID != "" {
		createdBy := actor.UserID
		event.CreatedBy = &createdBy
	}
	if err := s.events.Create(ctx, event); err != nil {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		if errors.Is(err, repository.ErrDuplicatePendingEvent) {
			if existing, findErr := s.events.FindPending(ctx, eventType, req.Year); findErr == nil {
				return nil, duplicateEventError(existing)
			}
			return nil, appErrors.Clone(appErrors.ErrConflict, "a pending event of this type already exists for the year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule event")
	}

	entry.Success = true
	entry.ResourceID = idString(event.ID)
	entry.New = event
	recordAudit(ctx, s.audit, s.logger, actor, entry)
	return event, nil
}

func duplicateEventError(existing *models.ScheduledEvent) error {
	msg := fmt.Sprintf("a pending %s event already exists for %d", existing.EventType, existing.Year)
	return appErrors.WithDetails(appErrors.ErrConflict, msg, existing)
}

// Get returns one event.
func (s *EventService) Get(ctx context.Context, actor *models.JWTClaims, id int64) (*models.ScheduledEvent, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

func (s *EventService) find(ctx context.Context, id int64) (*models.ScheduledEvent, error) {
	event, err := s.events.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scheduled event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduled event")
	}
	return event, nil
}

// List returns events matching filter.
func (s *EventService) List(ctx context.Context, actor *models.JWTClaims, filter models.ScheduledEventFilter) ([]models.ScheduledEvent, *models.Pagination, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, nil, err
	}
	if filter.EventType != nil && !filter.EventType.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown event type")
	}
	if filter.Status != nil {
		switch *filter.Status {
		case models.EventStatusPending, models.EventStatusCompleted, models.EventStatusCancelled:
		default:
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown event status")
		}
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scheduled events")
	}
	return events, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Cancel withdraws a pending event. Cancelling a cancelled event is a no-op;
// completed events cannot be cancelled.
func (s *EventService) Cancel(ctx context.Context, actor *models.JWTClaims, id int64) (*models.ScheduledEvent, error) {
	entry := auditEntry{Action: models.AuditActionEventCancel, Resource: models.AuditResourceScheduledEvent, ResourceID: idString(id)}
	if err := requireSuperAdmin(actor); err != nil {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, err
	}
	event, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	switch event.Status {
	case models.EventStatusCancelled:
		return event, nil
	case models.EventStatusCompleted:
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, appErrors.WithDetails(appErrors.ErrConflict, "completed events cannot be cancelled", event)
	}

	at := s.now().UTC()
	ok, err := s.events.Transition(ctx, id, models.EventStatusPending, models.EventStatusCancelled, at)
	if err != nil {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel scheduled event")
	}
	if !ok {
		// Lost a race with an execution or another cancellation.
		current, err := s.find(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == models.EventStatusCompleted {
			recordAudit(ctx, s.audit, s.logger, actor, entry)
			return nil, appErrors.WithDetails(appErrors.ErrConflict, "completed events cannot be cancelled", current)
		}
		return current, nil
	}

	entry.Old = event
	event.Status = models.EventStatusCancelled
	event.CancelledAt = &at
	entry.Success = true
	entry.New = event
	recordAudit(ctx, s.audit, s.logger, actor, entry)
	return event, nil
}

// Execute runs one event now regardless of its scheduled date.
func (s *EventService) Execute(ctx context.Context, actor *models.JWTClaims, id int64) (*dto.EventExecution, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	event, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	execution, err := s.execute(ctx, actor, event)
	if err != nil {
		return nil, err
	}
	return execution, nil
}

// RunDue executes every pending event whose date has passed on behalf of an administrator.
func (s *EventService) RunDue(ctx context.Context, actor *models.JWTClaims) (*dto.RunDueResponse, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	return s.runDue(ctx, actor, s.now().UTC())
}

// ExecuteDue executes every pending event due at now. It is the entry point of the runner.
func (s *EventService) ExecuteDue(ctx context.Context, now time.Time) (*dto.RunDueResponse, error) {
	return s.runDue(ctx, nil, now.UTC())
}

func (s *EventService) runDue(ctx context.Context, actor *models.JWTClaims, now time.Time) (*dto.RunDueResponse, error) {
	due, err := s.events.ListDue(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list due events")
	}
	resp := &dto.RunDueResponse{RanAt: now, Executions: make([]dto.EventExecution, 0, len(due))}
	for i := range due {
		execution, err := s.execute(ctx, actor, &due[i])
		if err != nil {
			s.logger.Error("scheduled event failed", zap.Int64("event_id", due[i].ID), zap.Error(err))
		}
		resp.Executions = append(resp.Executions, *execution)
	}
	return resp, nil
}

// execute applies event. It always returns an execution record; err is set when the outcome is failed.
func (s *EventService) execute(ctx context.Context, actor *models.JWTClaims, event *models.ScheduledEvent) (*dto.EventExecution, error) {
	execution := &dto.EventExecution{Event: event, Outcome: dto.ExecutionSkipped}
	if event.Status.Terminal() {
		s.metrics.RecordEventExecution(event.EventType, execution.Outcome)
		return execution, nil
	}

	var err error
	switch event.EventType {
	case models.EventTypeFormOpening:
		err = s.applyWindow(ctx, event, true, execution)
	case models.EventTypeFormClosing:
		err = s.applyWindow(ctx, event, false, execution)
	case models.EventTypeBroadcast:
		err = s.applyBroadcast(ctx, event, execution)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown event type %q", event.EventType))
	}
	if err != nil {
		execution.Outcome = dto.ExecutionFailed
		execution.Error = err.Error()
	}

	s.metrics.RecordEventExecution(event.EventType, execution.Outcome)
	if execution.Outcome != dto.ExecutionSkipped {
		recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
			Action:     models.AuditActionEventExecute,
			Resource:   models.AuditResourceScheduledEvent,
			ResourceID: idString(event.ID),
			New:        execution,
			Success:    err == nil,
		})
	}
	return execution, err
}

// applyWindow sets the window before claiming the event, so a crash between the
// two steps leaves the event pending and a rerun converges on the same state.
func (s *EventService) applyWindow(ctx context.Context, event *models.ScheduledEvent, open bool, execution *dto.EventExecution) error {
	if _, err := s.windows.SetWindow(ctx, event.Year, open, models.WindowScope{}); err != nil {
		return err
	}
	return s.complete(ctx, event, execution)
}

// applyBroadcast sends while the event is still pending and completes it
// afterwards. A failed send leaves the event pending for a later run.
func (s *EventService) applyBroadcast(ctx context.Context, event *models.ScheduledEvent, execution *dto.EventExecution) error {
	if s.notifier == nil {
		return appErrors.Clone(appErrors.ErrInternal, "notifier not configured")
	}
	if err := s.notifier.Broadcast(ctx, event); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deliver broadcast")
	}
	return s.complete(ctx, event, execution)
}

func (s *EventService) complete(ctx context.Context, event *models.ScheduledEvent, execution *dto.EventExecution) error {
	at := s.now().UTC()
	ok, err := s.events.Transition(ctx, event.ID, models.EventStatusPending, models.EventStatusCompleted, at)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete scheduled event")
	}
	if !ok {
		execution.Outcome = dto.ExecutionSkipped
		return nil
	}
	event.Status = models.EventStatusCompleted
	event.CompletedAt = &at
	execution.Outcome = dto.ExecutionApplied
	return nil
}
