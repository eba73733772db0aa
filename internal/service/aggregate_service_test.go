package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/libstats-api/internal/dto"
	"github.com/noah-isme/libstats-api/internal/models"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

func TestAggregateServiceFiltersNonParticipants(t *testing.T) {
	f := newSubmissionFixture()
	a := f.years.add(1, 2024, true)
	b := f.years.add(2, 2024, true)
	f.records.names = map[int64]string{1: "Alpha Library", 2: "Beta Library"}
	f.records.put(a.ID, models.CategorySerials, models.FieldValues{"purchased_print_noncjk": fp(10), "grand_total": fp(10)})
	f.records.put(b.ID, models.CategorySerials, models.FieldValues{"purchased_print_noncjk": fp(7), "grand_total": fp(7)})
	require.NoError(t, f.statuses.MarkComplete(context.Background(), a.ID, models.CategorySerials))
	require.NoError(t, f.statuses.MarkComplete(context.Background(), b.ID, models.CategoryElectronic))

	svc := NewAggregateService(f.records, f.statuses, nil, 0, nil)
	result, err := svc.Aggregate(context.Background(), editorOf(1), 2024, "serials")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Participants)
	assert.True(t, result.Filtered)
	require.Len(t, result.Institutions, 1)
	assert.Equal(t, "Alpha Library", result.Institutions[0].InstitutionName)
	assert.Equal(t, 10.0, *result.Fields.Get("grand_total"))
	assert.Nil(t, result.Fields.Get("nonpurchased_print_subtotal"))
}

func TestAggregateServiceWithoutStatusesKeepsAll(t *testing.T) {
	f := newSubmissionFixture()
	a := f.years.add(1, 1999, false)
	b := f.years.add(2, 1999, false)
	f.records.put(a.ID, models.CategorySerials, models.FieldValues{"grand_total": fp(4)})
	f.records.put(b.ID, models.CategorySerials, models.FieldValues{"grand_total": fp(6)})

	svc := NewAggregateService(f.records, f.statuses, nil, 0, nil)
	result, err := svc.Aggregate(context.Background(), editorOf(1), 1999, "serials")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Participants)
	assert.False(t, result.Filtered)
	assert.Equal(t, 10.0, *result.Fields.Get("grand_total"))
}

func TestAggregateServiceCachesAndInvalidatesOnSubmit(t *testing.T) {
	f := newSubmissionFixture()
	iy := f.years.add(42, 2025, true)
	cache := NewCacheService(f.cache, nil, time.Minute, nil, true)
	svc := NewAggregateService(f.records, f.statuses, cache, time.Minute, nil)

	first, err := svc.Aggregate(context.Background(), superAdmin(), 2025, "serials")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Participants)
	assert.Contains(t, f.cache.values, "aggregates:2025:serials")

	f.records.put(iy.ID, models.CategorySerials, models.FieldValues{"grand_total": fp(1)})
	cached, err := svc.Aggregate(context.Background(), superAdmin(), 2025, "serials")
	require.NoError(t, err)
	assert.Equal(t, 0, cached.Participants, "served from cache")

	_, err = f.svc.Submit(context.Background(), editorOf(42), 42, 2025, "serials", dto.SubmitCategoryRequest{
		Values: models.FieldValues{"purchased_print_noncjk": fp(3)},
	})
	require.NoError(t, err)
	assert.NotContains(t, f.cache.values, "aggregates:2025:serials")

	fresh, err := svc.Aggregate(context.Background(), superAdmin(), 2025, "serials")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Participants)
	assert.Equal(t, 3.0, *fresh.Fields.Get("grand_total"))
}

func TestAggregateServiceValidation(t *testing.T) {
	f := newSubmissionFixture()
	svc := NewAggregateService(f.records, f.statuses, nil, 0, nil)

	_, err := svc.Aggregate(context.Background(), nil, 2025, "serials")
	requireAppError(t, err, appErrors.ErrUnauthorized.Code)

	_, err = svc.Aggregate(context.Background(), superAdmin(), 2025, "nope")
	requireAppError(t, err, appErrors.ErrValidation.Code)
}

func TestSumFieldsRoundsMonetaryTotals(t *testing.T) {
	def, ok := models.LookupCategory(string(models.CategoryFiscalSupport))
	require.True(t, ok)
	records := []models.YearCategoryRecord{
		{CategoryRecord: models.CategoryRecord{FieldValues: models.FieldValues{"grand_total": fp(0.111)}}},
		{CategoryRecord: models.CategoryRecord{FieldValues: models.FieldValues{"grand_total": fp(0.1)}}},
	}
	sums := SumFields(def, records)
	assert.Equal(t, 0.21, *sums.Get("grand_total"))
}
