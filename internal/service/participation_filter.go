package service

import "github.com/noah-isme/libstats-api/internal/models"

// FilterEligible keeps the records whose institution-year has completed category.
// When no institution-year has the flag set (typically a year that predates status
// tracking) every record is returned unchanged.
func FilterEligible(records []models.YearCategoryRecord, statuses []models.EntryStatus, category models.Category) []models.YearCategoryRecord {
	eligible := make(map[int64]struct{}, len(statuses))
	for i := range statuses {
		if statuses[i].Completed(category) {
			eligible[statuses[i].InstitutionYearID] = struct{}{}
		}
	}
	if len(eligible) == 0 {
		return records
	}
	filtered := make([]models.YearCategoryRecord, 0, len(eligible))
	for _, record := range records {
		if _, ok := eligible[record.InstitutionYearID]; ok {
			filtered = append(filtered, record)
		}
	}
	return filtered
}
