package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/libstats-api/internal/models"
)

// Reconcile collapses records sharing a composite identity into one. An
// institution-specific record beats a global one; ties go to the lowest id.
// The result is ordered by identity so it does not depend on input order.
func Reconcile(records []models.CatalogRecord, keys []models.IdentityKey) []models.CatalogRecord {
	chosen := make(map[string]models.CatalogRecord, len(records))
	for _, record := range records {
		key := identityOf(record, keys)
		current, ok := chosen[key]
		if !ok || preferred(record, current) {
			chosen[key] = record
		}
	}

	identities := make([]string, 0, len(chosen))
	for key := range chosen {
		identities = append(identities, key)
	}
	sort.Strings(identities)

	result := make([]models.CatalogRecord, 0, len(identities))
	for _, key := range identities {
		result = append(result, chosen[key])
	}
	return result
}

func identityOf(record models.CatalogRecord, keys []models.IdentityKey) string {
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = strings.ToLower(strings.TrimSpace(record.IdentityValue(key)))
	}
	return strings.Join(parts, "\x1f")
}

func preferred(candidate, current models.CatalogRecord) bool {
	if candidate.InstitutionSpecific() != current.InstitutionSpecific() {
		return candidate.InstitutionSpecific()
	}
	return candidate.ID < current.ID
}
