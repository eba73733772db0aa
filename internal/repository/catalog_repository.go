package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/libstats-api/internal/models"
)

// CatalogRepository reads AV, e-book and e-journal catalog records.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListSubscribed returns the records of kind an institution subscribed to for year,
// limited to global records and the institution's own customised copies.
func (r *CatalogRepository) ListSubscribed(ctx context.Context, institutionID int64, year int, kind models.CatalogKind) ([]models.CatalogRecord, error) {
	const query = `SELECT cr.id, cr.kind, cr.title, cr.type, cr.publisher, cr.language, cr.volumes, cr.institution_id, cr.parent_id, cr.created_at
FROM catalog_records cr
JOIN catalog_subscriptions cs ON cs.catalog_record_id = cr.id
WHERE cs.institution_id = $1 AND cs.year = $2 AND cr.kind = $3
  AND (cr.institution_id IS NULL OR cr.institution_id = $1)
ORDER BY cr.id ASC`
	var records []models.CatalogRecord
	if err := r.db.SelectContext(ctx, &records, query, institutionID, year, kind); err != nil {
		return nil, fmt.Errorf("list subscribed catalog records: %w", err)
	}
	return records, nil
}
