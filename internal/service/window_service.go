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
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

const (
	minCollectionYear = 1900
	maxCollectionYear = 2100
)

type institutionYearRepository interface {
	Get(ctx context.Context, institutionID int64, year int) (*models.InstitutionYear, error)
	ListByYear(ctx context.Context, year int) ([]models.InstitutionYear, error)
	SetOpen(ctx context.Context, year int, open bool, scope models.WindowScope) (int64, error)
	CreateForActiveInstitutions(ctx context.Context, params models.NewYearParams) ([]models.YearCreationResult, error)
	DeleteYear(ctx context.Context, year int) (int64, int64, error)
}

type pendingEventCompleter interface {
	CompletePending(ctx context.Context, eventType models.EventType, year int, at time.Time) (int64, error)
}

type publicationReader interface {
	AnyPublished(ctx context.Context, year int) (bool, error)
}

// WindowService controls whether institutions may edit their statistics for a year.
type WindowService struct {
	years     institutionYearRepository
	events    pendingEventCompleter
	published publicationReader
	audit     auditLogger
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewWindowService constructs a WindowService.
func NewWindowService(years institutionYearRepository, events pendingEventCompleter, published publicationReader, audit auditLogger, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *WindowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WindowService{
		years:     years,
		events:    events,
		published: published,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// IsOpen reports whether the collection window of iy is open.
func (s *WindowService) IsOpen(iy *models.InstitutionYear) bool {
	return iy != nil && iy.IsOpenForEditing
}

// CanEdit decides whether actor may write category forms for iy. Override is
// true when the window is closed and the super-admin role granted access.
func (s *WindowService) CanEdit(actor *models.JWTClaims, iy *models.InstitutionYear) (allowed bool, override bool) {
	if iy == nil || !actor.CanActFor(iy.InstitutionID) {
		return false, false
	}
	if s.IsOpen(iy) {
		return true, false
	}
	if actor.IsSuperAdmin() {
		return true, true
	}
	return false, false
}

// Get returns the institution-year row. It never creates one.
func (s *WindowService) Get(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int) (*models.InstitutionYear, error) {
	if !actor.CanActFor(institutionID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to access this institution")
	}
	return s.load(ctx, institutionID, year)
}

// State returns the institution-year along with the caller's edit rights.
func (s *WindowService) State(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int) (*dto.WindowState, error) {
	iy, err := s.Get(ctx, actor, institutionID, year)
	if err != nil {
		return nil, err
	}
	allowed, override := s.CanEdit(actor, iy)
	return &dto.WindowState{
		InstitutionYear: iy,
		Open:            s.IsOpen(iy),
		CanEdit:         allowed,
		Override:        override,
	}, nil
}

func (s *WindowService) load(ctx context.Context, institutionID int64, year int) (*models.InstitutionYear, error) {
	iy, err := s.years.Get(ctx, institutionID, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no collection year %d for institution %d", year, institutionID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution year")
	}
	return iy, nil
}

// SetWindow flips the editing flag for year without touching scheduled events.
// Scheduled event execution uses it directly.
func (s *WindowService) SetWindow(ctx context.Context, year int, open bool, scope models.WindowScope) (int64, error) {
	if err := validateYear(year); err != nil {
		return 0, err
	}
	affected, err := s.years.SetOpen(ctx, year, open, scope)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update collection window")
	}
	s.logger.Info("collection window updated",
		zap.Int("year", year),
		zap.Bool("open", open),
		zap.Int64s("institution_ids", scope.InstitutionIDs),
		zap.Int64("affected", affected),
	)
	return affected, nil
}

// Open opens the window for year. An all-institution open also completes any
// pending FORM_OPENING event so it never fires afterwards.
func (s *WindowService) Open(ctx context.Context, actor *models.JWTClaims, year int, req dto.WindowRequest) (*dto.WindowResponse, error) {
	return s.toggle(ctx, actor, year, true, req)
}

// Close closes the window for year. An all-institution close also completes any
// pending FORM_CLOSING event.
func (s *WindowService) Close(ctx context.Context, actor *models.JWTClaims, year int, req dto.WindowRequest) (*dto.WindowResponse, error) {
	return s.toggle(ctx, actor, year, false, req)
}

func (s *WindowService) toggle(ctx context.Context, actor *models.JWTClaims, year int, open bool, req dto.WindowRequest) (*dto.WindowResponse, error) {
	action := models.AuditActionWindowClose
	eventType := models.EventTypeFormClosing
	if open {
		action = models.AuditActionWindowOpen
		eventType = models.EventTypeFormOpening
	}
	entry := auditEntry{Action: action, Resource: models.AuditResourceInstitutionYr, ResourceID: idString(int64(year)), New: req}

	if err := requireSuperAdmin(actor); err != nil {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	scope := models.WindowScope{InstitutionIDs: req.InstitutionIDs}
	affected, err := s.SetWindow(ctx, year, open, scope)
	if err != nil {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, err
	}

	if scope.All() && s.events != nil {
		if _, err := s.events.CompletePending(ctx, eventType, year, s.now().UTC()); err != nil {
			s.logger.Warn("failed to complete pending window event",
				zap.String("event_type", string(eventType)),
				zap.Int("year", year),
				zap.Error(err),
			)
		}
	}

	resp := &dto.WindowResponse{Year: year, Open: open, Affected: affected, InstitutionIDs: scope.InstitutionIDs}
	entry.Success = true
	entry.New = resp
	recordAudit(ctx, s.audit, s.logger, actor, entry)
	return resp, nil
}

// CreateYear creates institution-year rows for every active institution. Existing rows are skipped.
func (s *WindowService) CreateYear(ctx context.Context, actor *models.JWTClaims, req dto.CreateYearRequest) (*dto.CreateYearResponse, error) {
	entry := auditEntry{Action: models.AuditActionYearCreate, Resource: models.AuditResourceInstitutionYr, ResourceID: idString(int64(req.Year)), New: req}
	if err := requireSuperAdmin(actor); err != nil {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.OpeningDate != nil && req.ClosingDate != nil && req.ClosingDate.Before(*req.OpeningDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "closingDate must not be before openingDate")
	}
	if req.FiscalYearStart != nil && req.FiscalYearEnd != nil && req.FiscalYearEnd.Before(*req.FiscalYearStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fiscalYearEnd must not be before fiscalYearStart")
	}

	results, err := s.years.CreateForActiveInstitutions(ctx, models.NewYearParams{
		Year:            req.Year,
		OpeningDate:     req.OpeningDate,
		ClosingDate:     req.ClosingDate,
		FiscalYearStart: req.FiscalYearStart,
		FiscalYearEnd:   req.FiscalYearEnd,
		AdminNotes:      req.AdminNotes,
	})
	if err != nil {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create collection year")
	}

	resp := &dto.CreateYearResponse{Year: req.Year, Results: results}
	for _, result := range results {
		if result.Outcome == models.YearCreated {
			resp.Created++
		} else {
			resp.Skipped++
		}
	}
	entry.Success = true
	entry.New = resp
	recordAudit(ctx, s.audit, s.logger, actor, entry)
	return resp, nil
}

// DeleteYear removes every institution-year of year and cancels its pending events.
// Published years cannot be deleted.
func (s *WindowService) DeleteYear(ctx context.Context, actor *models.JWTClaims, year int) (*dto.DeleteYearResponse, error) {
	entry := auditEntry{Action: models.AuditActionYearDelete, Resource: models.AuditResourceInstitutionYr, ResourceID: idString(int64(year))}
	if err := requireSuperAdmin(actor); err != nil {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, err
	}
	if err := validateYear(year); err != nil {
		return nil, err
	}

	published, err := s.published.AnyPublished(ctx, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check publication state")
	}
	if published {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("year %d has published statistics and cannot be deleted", year))
	}

	deleted, cancelled, err := s.years.DeleteYear(ctx, year)
	if err != nil {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete collection year")
	}
	if err := s.cache.Invalidate(ctx, CacheKey(aggregateCachePrefix, year, "*")); err != nil {
		s.logger.Warn("failed to invalidate aggregate cache", zap.Int("year", year), zap.Error(err))
	}

	resp := &dto.DeleteYearResponse{Year: year, Deleted: deleted, CancelledEvents: cancelled}
	entry.Success = true
	entry.Old = resp
	recordAudit(ctx, s.audit, s.logger, actor, entry)
	return resp, nil
}

func requireSuperAdmin(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.IsSuperAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "super administrator role required")
	}
	return nil
}

func validateYear(year int) error {
	if year < minCollectionYear || year > maxCollectionYear {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("year must be between %d and %d", minCollectionYear, maxCollectionYear))
	}
	return nil
}
