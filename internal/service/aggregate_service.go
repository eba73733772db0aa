package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/models"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

const aggregateCachePrefix = "aggregates"

type yearRecordLister interface {
	ListByYear(ctx context.Context, year int, category models.Category) ([]models.YearCategoryRecord, error)
}

type yearStatusLister interface {
	ListByYear(ctx context.Context, year int) ([]models.EntryStatus, error)
}

// AggregateService sums participation-filtered forms across institutions.
type AggregateService struct {
	records  yearRecordLister
	statuses yearStatusLister
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewAggregateService constructs an AggregateService.
func NewAggregateService(records yearRecordLister, statuses yearStatusLister, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *AggregateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregateService{records: records, statuses: statuses, cache: cache, cacheTTL: cacheTTL, logger: logger, now: time.Now}
}

// Aggregate returns the figures of category for year, served from cache when possible.
func (s *AggregateService) Aggregate(ctx context.Context, actor *models.JWTClaims, year int, category string) (*models.Aggregate, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	def, err := lookupCategory(category)
	if err != nil {
		return nil, err
	}
	if err := validateYear(year); err != nil {
		return nil, err
	}

	key := CacheKey(aggregateCachePrefix, year, def.Category)
	var cached models.Aggregate
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	result, err := s.compile(ctx, year, def)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, result, s.cacheTTL)
	return result, nil
}

// compile loads every form of the year, drops non-participants and sums the rest.
func (s *AggregateService) compile(ctx context.Context, year int, def models.CategoryDefinition) (*models.Aggregate, error) {
	records, err := s.records.ListByYear(ctx, year, def.Category)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category records")
	}
	statuses, err := s.statuses.ListByYear(ctx, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load entry statuses")
	}

	eligible := FilterEligible(records, statuses, def.Category)
	result := &models.Aggregate{
		Year:         year,
		Category:     def.Category,
		Participants: len(eligible),
		Filtered:     len(eligible) != len(records),
		Fields:       SumFields(def, eligible),
		Institutions: make([]models.AggregateRow, 0, len(eligible)),
		GeneratedAt:  s.now().UTC(),
	}
	for _, record := range eligible {
		result.Institutions = append(result.Institutions, models.AggregateRow{
			InstitutionID:   record.InstitutionID,
			InstitutionName: record.InstitutionName,
			Fields:          record.FieldValues,
		})
	}
	return result, nil
}

// SumFields adds each output field across records using the subtotal rule, so a
// field nobody reported stays nil.
func SumFields(def models.CategoryDefinition, records []models.YearCategoryRecord) models.FieldValues {
	fields := def.OutputFields()
	sums := make(models.FieldValues, len(fields))
	for _, field := range fields {
		parts := make([]*float64, 0, len(records))
		for _, record := range records {
			parts = append(parts, record.FieldValues.Get(field))
		}
		total := Subtotal(parts...)
		if def.Monetary {
			total = RoundMoney(total)
		}
		sums[field] = total
	}
	return sums
}
