package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/dto"
	"github.com/noah-isme/libstats-api/internal/models"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

type entryStatusRepository interface {
	MarkComplete(ctx context.Context, institutionYearID int64, category models.Category) error
	Get(ctx context.Context, institutionYearID int64) (*models.EntryStatus, error)
	ListByYear(ctx context.Context, year int) ([]models.EntryStatus, error)
	PublishYear(ctx context.Context, year int, at time.Time) (int64, error)
}

type institutionYearReader interface {
	Get(ctx context.Context, institutionID int64, year int) (*models.InstitutionYear, error)
}

// EntryStatusService exposes which category forms each institution-year has completed.
type EntryStatusService struct {
	repo   entryStatusRepository
	years  institutionYearReader
	audit  auditLogger
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
}

// NewEntryStatusService constructs an EntryStatusService.
func NewEntryStatusService(repo entryStatusRepository, years institutionYearReader, audit auditLogger, cache *CacheService, logger *zap.Logger) *EntryStatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntryStatusService{repo: repo, years: years, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// MarkComplete flags category as submitted. Flags are never cleared.
func (s *EntryStatusService) MarkComplete(ctx context.Context, institutionYearID int64, category models.Category) error {
	if _, ok := models.LookupCategory(string(category)); !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unknown category")
	}
	if err := s.repo.MarkComplete(ctx, institutionYearID, category); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update entry status")
	}
	return nil
}

// Get returns the flags of one institution-year. An institution-year with no
// submissions yet reports every flag false.
func (s *EntryStatusService) Get(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int) (*models.EntryStatus, error) {
	if !actor.CanActFor(institutionID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to access this institution")
	}
	iy, err := s.years.Get(ctx, institutionID, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institution year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution year")
	}
	status, err := s.repo.Get(ctx, iy.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.EntryStatus{InstitutionYearID: iy.ID}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load entry status")
	}
	return status, nil
}

// PublishYear marks every entry status of year as published and stamps the publication date.
func (s *EntryStatusService) PublishYear(ctx context.Context, actor *models.JWTClaims, year int) (*dto.PublishYearResponse, error) {
	entry := auditEntry{Action: models.AuditActionYearPublish, Resource: models.AuditResourceInstitutionYr, ResourceID: idString(int64(year))}
	if err := requireSuperAdmin(actor); err != nil {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, err
	}
	if err := validateYear(year); err != nil {
		return nil, err
	}
	at := s.now().UTC()
	published, err := s.repo.PublishYear(ctx, year, at)
	if err != nil {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish year")
	}
	if published == 0 {
		recordAudit(ctx, s.audit, s.logger, actor, entry)
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no submissions to publish for year")
	}
	if err := s.cache.Invalidate(ctx, CacheKey(aggregateCachePrefix, year, "*")); err != nil {
		s.logger.Warn("failed to invalidate aggregate cache", zap.Int("year", year), zap.Error(err))
	}

	resp := &dto.PublishYearResponse{Year: year, Published: published, PublicationDate: at}
	entry.Success = true
	entry.New = resp
	recordAudit(ctx, s.audit, s.logger, actor, entry)
	return resp, nil
}
