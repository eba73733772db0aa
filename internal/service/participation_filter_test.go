package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/libstats-api/internal/models"
)

func yearRecords(ids ...int64) []models.YearCategoryRecord {
	records := make([]models.YearCategoryRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, models.YearCategoryRecord{CategoryRecord: models.CategoryRecord{ID: id * 10, InstitutionYearID: id}})
	}
	return records
}

func TestFilterEligibleWithoutStatusesReturnsAll(t *testing.T) {
	records := yearRecords(1, 2, 3)
	filtered := FilterEligible(records, nil, models.CategorySerials)
	assert.Equal(t, records, filtered)
}

func TestFilterEligibleKeepsOnlyCompleted(t *testing.T) {
	records := yearRecords(1, 2)
	statuses := []models.EntryStatus{
		{InstitutionYearID: 1, Serials: true},
		{InstitutionYearID: 2, Serials: false, Electronic: true},
	}
	filtered := FilterEligible(records, statuses, models.CategorySerials)
	assert.Len(t, filtered, 1)
	assert.Equal(t, int64(1), filtered[0].InstitutionYearID)
}

func TestFilterEligibleStatusesWithoutFlagReturnAll(t *testing.T) {
	records := yearRecords(1, 2)
	statuses := []models.EntryStatus{{InstitutionYearID: 1, Electronic: true}}
	filtered := FilterEligible(records, statuses, models.CategorySerials)
	assert.Len(t, filtered, 2)
}
