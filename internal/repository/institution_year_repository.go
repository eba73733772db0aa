package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/libstats-api/internal/models"
)

const institutionYearColumns = `id, institution_id, year, is_open_for_editing, is_active, opening_date, closing_date,
fiscal_year_start, fiscal_year_end, publication_date, admin_notes, created_at, updated_at`

// InstitutionYearRepository manages per-institution collection windows.
type InstitutionYearRepository struct {
	db *sqlx.DB
}

// NewInstitutionYearRepository constructs the repository.
func NewInstitutionYearRepository(db *sqlx.DB) *InstitutionYearRepository {
	return &InstitutionYearRepository{db: db}
}

// Get returns the row for (institutionID, year). sql.ErrNoRows is returned unwrapped.
func (r *InstitutionYearRepository) Get(ctx context.Context, institutionID int64, year int) (*models.InstitutionYear, error) {
	query := `SELECT ` + institutionYearColumns + ` FROM institution_years WHERE institution_id = $1 AND year = $2`
	var iy models.InstitutionYear
	if err := r.db.GetContext(ctx, &iy, query, institutionID, year); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get institution year: %w", err)
	}
	return &iy, nil
}

// ListByYear returns every institution row for year ordered by institution.
func (r *InstitutionYearRepository) ListByYear(ctx context.Context, year int) ([]models.InstitutionYear, error) {
	query := `SELECT ` + institutionYearColumns + ` FROM institution_years WHERE year = $1 ORDER BY institution_id ASC`
	var rows []models.InstitutionYear
	if err := r.db.SelectContext(ctx, &rows, query, year); err != nil {
		return nil, fmt.Errorf("list institution years: %w", err)
	}
	return rows, nil
}

// SetOpen flips is_open_for_editing for the scope and returns the affected row count.
func (r *InstitutionYearRepository) SetOpen(ctx context.Context, year int, open bool, scope models.WindowScope) (int64, error) {
	query := `UPDATE institution_years SET is_open_for_editing = $1, updated_at = $2 WHERE year = $3`
	args := []interface{}{open, time.Now().UTC(), year}
	if !scope.All() {
		query += ` AND institution_id = ANY($4)`
		args = append(args, pq.Array(scope.InstitutionIDs))
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("set institution year window: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set institution year window: %w", err)
	}
	return affected, nil
}

// CreateForActiveInstitutions inserts a row per active institution, skipping existing ones.
func (r *InstitutionYearRepository) CreateForActiveInstitutions(ctx context.Context, params models.NewYearParams) ([]models.YearCreationResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create year tx: %w", err)
	}

	var institutionIDs []int64
	if err := tx.SelectContext(ctx, &institutionIDs, `SELECT id FROM institutions WHERE is_active = TRUE ORDER BY id ASC`); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("list active institutions: %w", err)
	}

	const insert = `INSERT INTO institution_years (institution_id, year, is_open_for_editing, is_active, opening_date, closing_date,
fiscal_year_start, fiscal_year_end, admin_notes, created_at, updated_at)
VALUES ($1, $2, FALSE, FALSE, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (institution_id, year) DO NOTHING`
	now := time.Now().UTC()
	results := make([]models.YearCreationResult, 0, len(institutionIDs))
	for _, id := range institutionIDs {
		res, err := tx.ExecContext(ctx, insert, id, params.Year, params.OpeningDate, params.ClosingDate,
			params.FiscalYearStart, params.FiscalYearEnd, params.AdminNotes, now)
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("create institution year: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("create institution year: %w", err)
		}
		outcome := models.YearSkipped
		if affected > 0 {
			outcome = models.YearCreated
		}
		results = append(results, models.YearCreationResult{InstitutionID: id, Outcome: outcome})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create year tx: %w", err)
	}
	return results, nil
}

// DeleteYear removes every institution row of year (cascading to entry statuses and
// category records) and cancels the year's pending scheduled events.
func (r *InstitutionYearRepository) DeleteYear(ctx context.Context, year int) (deleted int64, cancelled int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin delete year tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM institution_years WHERE year = $1`, year)
	if err != nil {
		return 0, 0, fmt.Errorf("delete institution years: %w", err)
	}
	if deleted, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("delete institution years: %w", err)
	}

	res, err = tx.ExecContext(ctx, `UPDATE scheduled_events SET status = 'cancelled', cancelled_at = $2
WHERE year = $1 AND status = 'pending'`, year, time.Now().UTC())
	if err != nil {
		return 0, 0, fmt.Errorf("cancel scheduled events: %w", err)
	}
	if cancelled, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("cancel scheduled events: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit delete year tx: %w", err)
	}
	return deleted, cancelled, nil
}
