package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/libstats-api/internal/models"
)

func strPtr(value string) *string {
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func TestReconcilePrefersInstitutionSpecificInAnyOrder(t *testing.T) {
	global := models.CatalogRecord{ID: 1, Kind: models.CatalogKindAV, Title: "Streaming Film/Video", Type: strPtr("streaming film/video")}
	custom := models.CatalogRecord{ID: 5, Kind: models.CatalogKindAV, Title: " streaming film/video", Type: strPtr("Streaming Film/Video "), InstitutionID: int64Ptr(42), ParentID: int64Ptr(1)}
	keys := models.CatalogKindAV.IdentityKeys()

	for _, input := range [][]models.CatalogRecord{{global, custom}, {custom, global}} {
		result := Reconcile(input, keys)
		require.Len(t, result, 1)
		assert.Equal(t, int64(5), result[0].ID)
	}
}

func TestReconcileLowestIDWinsWithinSamePrecedence(t *testing.T) {
	a := models.CatalogRecord{ID: 9, Title: "Journal of Asian Studies", Publisher: strPtr("AAS")}
	b := models.CatalogRecord{ID: 3, Title: "journal of asian studies", Publisher: strPtr("aas")}
	result := Reconcile([]models.CatalogRecord{a, b}, models.CatalogKindEJournal.IdentityKeys())
	require.Len(t, result, 1)
	assert.Equal(t, int64(3), result[0].ID)
}

func TestReconcileNeverReturnsDuplicateIdentities(t *testing.T) {
	records := []models.CatalogRecord{
		{ID: 1, Title: "B", Publisher: strPtr("x")},
		{ID: 2, Title: "A", Publisher: strPtr("x")},
		{ID: 3, Title: "a", Publisher: strPtr("X"), InstitutionID: int64Ptr(7)},
		{ID: 4, Title: "A", Publisher: strPtr("y")},
	}
	result := Reconcile(records, models.CatalogKindEBook.IdentityKeys())
	require.Len(t, result, 3)
	assert.Equal(t, []int64{3, 4, 1}, []int64{result[0].ID, result[1].ID, result[2].ID})
}

func TestReconcileTitleOnlyMatchIsDistinctForAV(t *testing.T) {
	records := []models.CatalogRecord{
		{ID: 1, Title: "Seven Samurai", Type: strPtr("dvd")},
		{ID: 2, Title: "Seven Samurai", Type: strPtr("streaming film/video")},
	}
	assert.Len(t, Reconcile(records, models.CatalogKindAV.IdentityKeys()), 2)
}
