package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/dto"
	"github.com/noah-isme/libstats-api/internal/models"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

type categoryRecordRepository interface {
	Get(ctx context.Context, institutionYearID int64, category models.Category) (*models.CategoryRecord, error)
	ListByYear(ctx context.Context, year int, category models.Category) ([]models.YearCategoryRecord, error)
	Save(ctx context.Context, submission *models.Submission) (*models.CategoryRecord, error)
}

type editGate interface {
	CanEdit(actor *models.JWTClaims, iy *models.InstitutionYear) (allowed bool, override bool)
}

// SubmissionService stores category forms. Each write runs the rollup engine,
// flags the entry status and records an audit entry in one transaction.
type SubmissionService struct {
	years     institutionYearReader
	gate      editGate
	records   categoryRecordRepository
	audit     auditLogger
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(years institutionYearReader, gate editGate, records categoryRecordRepository, audit auditLogger, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		years:     years,
		gate:      gate,
		records:   records,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Get returns the persisted form of category for the institution-year.
func (s *SubmissionService) Get(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int, category string) (*models.CategoryRecord, error) {
	def, err := lookupCategory(category)
	if err != nil {
		return nil, err
	}
	if !actor.CanActFor(institutionID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to access this institution")
	}
	iy, err := s.loadYear(ctx, institutionID, year)
	if err != nil {
		return nil, err
	}
	record, err := s.records.Get(ctx, iy.ID, def.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s has not been submitted", def.Label))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category record")
	}
	return record, nil
}

// Submit validates and stores a category form, replacing any earlier submission.
func (s *SubmissionService) Submit(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int, category string, req dto.SubmitCategoryRequest) (*dto.SubmissionResponse, error) {
	def, err := lookupCategory(category)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	return s.submit(ctx, actor, institutionID, year, def, req.Values, req.Notes, models.AuditActionCategorySubmit)
}

func (s *SubmissionService) submit(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int, def models.CategoryDefinition, values models.FieldValues, notes *string, action string) (*dto.SubmissionResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.CanActFor(institutionID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to submit for this institution")
	}
	iy, err := s.loadYear(ctx, institutionID, year)
	if err != nil {
		return nil, err
	}

	allowed, override := s.gate.CanEdit(actor, iy)
	if !allowed {
		recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
			Action:        action,
			Resource:      models.AuditResourceCategoryRecord,
			InstitutionID: &institutionID,
			New:           map[string]interface{}{"year": year, "category": def.Category},
		})
		return nil, appErrors.Clone(appErrors.ErrWindowClosed, fmt.Sprintf("collection window for %d is closed", year))
	}
	if err := validateFieldValues(def, values); err != nil {
		return nil, err
	}

	existing, err := s.records.Get(ctx, iy.ID, def.Category)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category record")
	}
	deps, err := s.dependencyValues(ctx, iy.ID, def)
	if err != nil {
		return nil, err
	}

	computed := Compute(def, values, deps)
	if override && action == models.AuditActionCategorySubmit {
		action = models.AuditActionCategorySubmitOverride
	}
	submission := &models.Submission{
		Record: models.CategoryRecord{
			InstitutionYearID: iy.ID,
			Category:          def.Category,
			FieldValues:       computed,
			Notes:             notes,
		},
		Audit: *buildAuditLog(ctx, actor, auditEntry{
			Action:        action,
			Resource:      models.AuditResourceCategoryRecord,
			InstitutionID: &institutionID,
			New:           computed,
			Success:       true,
			Override:      override,
		}),
		Activate: true,
	}
	if existing != nil {
		submission.Audit.OldValues = marshalAuditValue(existing.FieldValues)
	}
	updatedBy := actor.UserID
	submission.Record.UpdatedBy = &updatedBy

	record, err := s.records.Save(ctx, submission)
	if err != nil {
		s.logger.Error("failed to save category record",
			zap.Int64("institution_id", institutionID),
			zap.Int("year", year),
			zap.String("category", string(def.Category)),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save category record")
	}

	if err := s.cache.Invalidate(ctx, CacheKey(aggregateCachePrefix, year, "*")); err != nil {
		s.logger.Warn("failed to invalidate aggregate cache", zap.Int("year", year), zap.Error(err))
	}
	s.metrics.RecordSubmission(def.Category, override)
	if override {
		s.logger.Info("closed window overridden",
			zap.String("user_id", actor.UserID),
			zap.Int64("institution_id", institutionID),
			zap.Int("year", year),
			zap.String("category", string(def.Category)),
		)
	}
	return &dto.SubmissionResponse{Record: record, Override: override}, nil
}

// dependencyValues reads the persisted subtotal a grand total depends on.
// A missing dependency form contributes nothing.
func (s *SubmissionService) dependencyValues(ctx context.Context, institutionYearID int64, def models.CategoryDefinition) (models.FieldValues, error) {
	if def.Dependency == nil {
		return nil, nil
	}
	record, err := s.records.Get(ctx, institutionYearID, def.Dependency.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DependencyValues(*def.Dependency, nil), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dependent category record")
	}
	return DependencyValues(*def.Dependency, record), nil
}

func (s *SubmissionService) loadYear(ctx context.Context, institutionID int64, year int) (*models.InstitutionYear, error) {
	iy, err := s.years.Get(ctx, institutionID, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no collection year %d for institution %d", year, institutionID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution year")
	}
	return iy, nil
}

func lookupCategory(tag string) (models.CategoryDefinition, error) {
	def, ok := models.LookupCategory(tag)
	if !ok {
		return models.CategoryDefinition{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", tag))
	}
	return def, nil
}

// validateFieldValues rejects undeclared fields, including computed ones, and negative or non-finite values.
func validateFieldValues(def models.CategoryDefinition, values models.FieldValues) error {
	problems := map[string]string{}
	for field, value := range values {
		if !def.HasInput(field) {
			problems[field] = "unknown field"
			continue
		}
		if value == nil {
			continue
		}
		if math.IsNaN(*value) || math.IsInf(*value, 0) {
			problems[field] = "must be a finite number"
		} else if *value < 0 {
			problems[field] = "must not be negative"
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("invalid values for %s", def.Label), problems)
}
