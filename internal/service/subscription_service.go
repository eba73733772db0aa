package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/dto"
	"github.com/noah-isme/libstats-api/internal/models"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

type catalogRepository interface {
	ListSubscribed(ctx context.Context, institutionID int64, year int, kind models.CatalogKind) ([]models.CatalogRecord, error)
}

// subscriptionTarget names the form rows a catalog kind is counted into.
type subscriptionTarget struct {
	Category  models.Category
	TitleRow  string
	VolumeRow string
}

var subscriptionTargets = map[models.CatalogKind]subscriptionTarget{
	models.CatalogKindAV:       {Category: models.CategoryOtherHoldings, TitleRow: "av_titles"},
	models.CatalogKindEBook:    {Category: models.CategoryElectronicBooks, TitleRow: "subscription_titles", VolumeRow: "subscription_volumes"},
	models.CatalogKindEJournal: {Category: models.CategoryElectronic, TitleRow: "journals_subscribed"},
}

// SubscriptionService turns an institution's catalog subscriptions into form counts.
type SubscriptionService struct {
	catalog     catalogRepository
	submissions *SubmissionService
	logger      *zap.Logger
}

// NewSubscriptionService constructs a SubscriptionService.
func NewSubscriptionService(catalog catalogRepository, submissions *SubmissionService, logger *zap.Logger) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{catalog: catalog, submissions: submissions, logger: logger}
}

// Import counts the distinct subscribed titles of kind per language and stores them
// on the matching form, keeping every other value already entered there.
func (s *SubscriptionService) Import(ctx context.Context, actor *models.JWTClaims, institutionID int64, year int, kind string) (*dto.ImportResponse, error) {
	catalogKind := models.CatalogKind(strings.ToLower(strings.TrimSpace(kind)))
	target, ok := subscriptionTargets[catalogKind]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown catalog kind %q", kind))
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.CanActFor(institutionID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to import for this institution")
	}
	def, err := lookupCategory(string(target.Category))
	if err != nil {
		return nil, err
	}

	iy, err := s.submissions.loadYear(ctx, institutionID, year)
	if err != nil {
		return nil, err
	}
	subscribed, err := s.catalog.ListSubscribed(ctx, institutionID, year, catalogKind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subscriptions")
	}
	distinct := Reconcile(subscribed, catalogKind.IdentityKeys())
	counts := countByLanguage(distinct, target)

	values := models.FieldValues{}
	existing, err := s.submissions.records.Get(ctx, iy.ID, def.Category)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category record")
	}
	var notes *string
	if existing != nil {
		notes = existing.Notes
		for field, value := range existing.FieldValues {
			if def.HasInput(field) {
				values[field] = value
			}
		}
	}
	for field, value := range counts {
		values[field] = value
	}

	result, err := s.submissions.submit(ctx, actor, institutionID, year, def, values, notes, models.AuditActionSubscriptionImport)
	if err != nil {
		return nil, err
	}
	s.logger.Info("subscriptions imported",
		zap.Int64("institution_id", institutionID),
		zap.Int("year", year),
		zap.String("kind", string(catalogKind)),
		zap.Int("subscribed", len(subscribed)),
		zap.Int("distinct", len(distinct)),
	)
	return &dto.ImportResponse{
		Kind:       catalogKind,
		Category:   def.Category,
		Subscribed: len(subscribed),
		Distinct:   len(distinct),
		Counts:     counts,
		Record:     result.Record,
		Override:   result.Override,
	}, nil
}

// countByLanguage tallies titles (and volumes when the target has a volume row) per
// language. Every language gets an explicit value so stale counts are overwritten.
func countByLanguage(records []models.CatalogRecord, target subscriptionTarget) models.FieldValues {
	counts := models.FieldValues{}
	for _, lang := range models.Languages {
		zero := 0.0
		counts[models.FieldName(target.TitleRow, lang)] = &zero
		if target.VolumeRow != "" {
			zeroVolumes := 0.0
			counts[models.FieldName(target.VolumeRow, lang)] = &zeroVolumes
		}
	}
	for _, record := range records {
		lang := normalizeLanguage(record.Language)
		*counts[models.FieldName(target.TitleRow, lang)]++
		if target.VolumeRow != "" && record.Volumes != nil {
			*counts[models.FieldName(target.VolumeRow, lang)] += *record.Volumes
		}
	}
	return counts
}

func normalizeLanguage(raw string) string {
	lang := strings.ToLower(strings.TrimSpace(raw))
	for _, known := range models.Languages {
		if lang == known {
			return known
		}
	}
	return "noncjk"
}
