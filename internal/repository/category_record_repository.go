package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/models"
)

const categoryRecordColumns = `id, institution_year_id, category, field_values, notes, updated_by, created_at, updated_at`

// CategoryRecordRepository persists category forms.
type CategoryRecordRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewCategoryRecordRepository constructs the repository.
func NewCategoryRecordRepository(db *sqlx.DB, logger *zap.Logger) *CategoryRecordRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryRecordRepository{db: db, logger: logger}
}

// Get returns the form for (institutionYearID, category). sql.ErrNoRows is returned unwrapped.
func (r *CategoryRecordRepository) Get(ctx context.Context, institutionYearID int64, category models.Category) (*models.CategoryRecord, error) {
	query := `SELECT ` + categoryRecordColumns + ` FROM category_records WHERE institution_year_id = $1 AND category = $2`
	var record models.CategoryRecord
	if err := r.db.GetContext(ctx, &record, query, institutionYearID, category); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get category record: %w", err)
	}
	return &record, nil
}

// ListByYear returns the year's forms of category joined with their institutions.
func (r *CategoryRecordRepository) ListByYear(ctx context.Context, year int, category models.Category) ([]models.YearCategoryRecord, error) {
	const query = `SELECT cr.id, cr.institution_year_id, cr.category, cr.field_values, cr.notes, cr.updated_by, cr.created_at, cr.updated_at,
iy.institution_id, i.name AS institution_name
FROM category_records cr
JOIN institution_years iy ON iy.id = cr.institution_year_id
JOIN institutions i ON i.id = iy.institution_id
WHERE iy.year = $1 AND cr.category = $2
ORDER BY i.name ASC, cr.id ASC`
	var records []models.YearCategoryRecord
	if err := r.db.SelectContext(ctx, &records, query, year, category); err != nil {
		return nil, fmt.Errorf("list category records: %w", err)
	}
	return records, nil
}

// Save writes a submission as one unit: the form upsert, the entry status flag,
// the institution-year activity flag and the audit entry.
func (r *CategoryRecordRepository) Save(ctx context.Context, submission *models.Submission) (*models.CategoryRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin submission tx: %w", err)
	}

	record := submission.Record
	now := time.Now().UTC()
	const upsert = `INSERT INTO category_records (institution_year_id, category, field_values, notes, updated_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (institution_year_id, category)
DO UPDATE SET field_values = EXCLUDED.field_values, notes = EXCLUDED.notes,
              updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
RETURNING id, created_at, updated_at`
	if err := tx.QueryRowxContext(ctx, upsert, record.InstitutionYearID, record.Category, record.FieldValues,
		record.Notes, record.UpdatedBy, now).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("upsert category record: %w", err)
	}

	if err := markEntryCompleteTx(ctx, tx, record.InstitutionYearID, record.Category, r.logger); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if submission.Activate {
		if _, err := tx.ExecContext(ctx, `UPDATE institution_years SET is_active = TRUE, updated_at = $2 WHERE id = $1 AND is_active = FALSE`,
			record.InstitutionYearID, now); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("activate institution year: %w", err)
		}
	}

	audit := submission.Audit
	if audit.ResourceID == nil {
		id := fmt.Sprintf("%d", record.ID)
		audit.ResourceID = &id
	}
	if err := insertAuditLog(ctx, tx, &audit); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submission tx: %w", err)
	}
	return &record, nil
}
