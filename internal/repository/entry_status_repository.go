package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/models"
)

const (
	uniqueViolation         = "23505"
	entryStatusPKConstraint = "entry_statuses_pkey"
)

const entryStatusColumns = `id, institution_year_id, monographic_acquisitions, volume_holdings, serials, other_holdings,
unprocessed_backlog, fiscal_support, personnel_support, public_services, electronic, electronic_books, published,
created_at, updated_at`

// EntryStatusRepository persists per-category completion flags.
type EntryStatusRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewEntryStatusRepository constructs the repository.
func NewEntryStatusRepository(db *sqlx.DB, logger *zap.Logger) *EntryStatusRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntryStatusRepository{db: db, logger: logger}
}

// MarkComplete sets the category flag, creating the row if needed. A collision on
// the surrogate key resynchronises the id sequence and retries once.
func (r *EntryStatusRepository) MarkComplete(ctx context.Context, institutionYearID int64, category models.Category) error {
	if _, err := entryStatusColumn(category); err != nil {
		return err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin entry status tx: %w", err)
	}
	if err := markEntryCompleteTx(ctx, tx, institutionYearID, category, r.logger); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entry status: %w", err)
	}
	return nil
}

// Get returns the status row for an institution-year. sql.ErrNoRows is returned unwrapped.
func (r *EntryStatusRepository) Get(ctx context.Context, institutionYearID int64) (*models.EntryStatus, error) {
	query := `SELECT ` + entryStatusColumns + ` FROM entry_statuses WHERE institution_year_id = $1`
	var status models.EntryStatus
	if err := r.db.GetContext(ctx, &status, query, institutionYearID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get entry status: %w", err)
	}
	return &status, nil
}

// ListByYear returns every status row attached to the year's institution rows.
func (r *EntryStatusRepository) ListByYear(ctx context.Context, year int) ([]models.EntryStatus, error) {
	const query = `SELECT es.id, es.institution_year_id, es.monographic_acquisitions, es.volume_holdings, es.serials,
es.other_holdings, es.unprocessed_backlog, es.fiscal_support, es.personnel_support, es.public_services,
es.electronic, es.electronic_books, es.published, es.created_at, es.updated_at
FROM entry_statuses es JOIN institution_years iy ON iy.id = es.institution_year_id
WHERE iy.year = $1 ORDER BY es.institution_year_id ASC`
	var statuses []models.EntryStatus
	if err := r.db.SelectContext(ctx, &statuses, query, year); err != nil {
		return nil, fmt.Errorf("list entry statuses: %w", err)
	}
	return statuses, nil
}

// AnyPublished reports whether any status row of year has been published.
func (r *EntryStatusRepository) AnyPublished(ctx context.Context, year int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM entry_statuses es JOIN institution_years iy ON iy.id = es.institution_year_id
WHERE iy.year = $1 AND es.published = TRUE)`
	var published bool
	if err := r.db.GetContext(ctx, &published, query, year); err != nil {
		return false, fmt.Errorf("check published entry statuses: %w", err)
	}
	return published, nil
}

// PublishYear marks every status row of year published and stamps the publication date.
func (r *EntryStatusRepository) PublishYear(ctx context.Context, year int, at time.Time) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin publish tx: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE entry_statuses SET published = TRUE, updated_at = $2
WHERE institution_year_id IN (SELECT id FROM institution_years WHERE year = $1)`, year, at)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("publish entry statuses: %w", err)
	}
	published, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("publish entry statuses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE institution_years SET publication_date = $2, updated_at = $2 WHERE year = $1`, year, at); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("stamp publication date: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit publish tx: %w", err)
	}
	return published, nil
}

// markEntryCompleteTx marks the flag inside tx. A failed statement aborts a
// Postgres transaction, so the retry runs behind a savepoint.
func markEntryCompleteTx(ctx context.Context, tx *sqlx.Tx, institutionYearID int64, category models.Category, logger *zap.Logger) error {
	column, err := entryStatusColumn(category)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `SAVEPOINT entry_status_mark`); err != nil {
		return fmt.Errorf("savepoint entry status: %w", err)
	}
	err = upsertEntryStatus(ctx, tx, institutionYearID, column)
	if isSurrogateKeyCollision(err) {
		logger.Warn("entry status id sequence out of sync, resynchronising",
			zap.Int64("institution_year_id", institutionYearID), zap.String("category", string(category)))
		if _, err := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT entry_status_mark`); err != nil {
			return fmt.Errorf("rollback entry status savepoint: %w", err)
		}
		if err := resyncEntryStatusSequence(ctx, tx); err != nil {
			return err
		}
		err = upsertEntryStatus(ctx, tx, institutionYearID, column)
	}
	if err != nil {
		return fmt.Errorf("mark entry status complete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT entry_status_mark`); err != nil {
		return fmt.Errorf("release entry status savepoint: %w", err)
	}
	return nil
}

func upsertEntryStatus(ctx context.Context, exec sqlx.ExecerContext, institutionYearID int64, column string) error {
	query := fmt.Sprintf(`INSERT INTO entry_statuses (institution_year_id, %[1]s, created_at, updated_at)
VALUES ($1, TRUE, $2, $2)
ON CONFLICT (institution_year_id) DO UPDATE SET %[1]s = TRUE, updated_at = EXCLUDED.updated_at`, column)
	_, err := exec.ExecContext(ctx, query, institutionYearID, time.Now().UTC())
	return err
}

func resyncEntryStatusSequence(ctx context.Context, exec sqlx.ExecerContext) error {
	const query = `SELECT setval(pg_get_serial_sequence('entry_statuses', 'id'), COALESCE((SELECT MAX(id) FROM entry_statuses), 0) + 1, false)`
	if _, err := exec.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("resync entry status sequence: %w", err)
	}
	return nil
}

func isSurrogateKeyCollision(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == uniqueViolation && pqErr.Constraint == entryStatusPKConstraint
}

// entryStatusColumn maps a category to its flag column; only known tags reach SQL.
func entryStatusColumn(category models.Category) (string, error) {
	if _, ok := models.CategoryDefinitions[category]; !ok {
		return "", fmt.Errorf("unknown category %q", category)
	}
	return string(category), nil
}
