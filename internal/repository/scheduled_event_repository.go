package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/libstats-api/internal/models"
)

const pendingEventConstraint = "uq_scheduled_events_pending"

// ErrDuplicatePendingEvent is returned when a pending event of the same type and year exists.
var ErrDuplicatePendingEvent = errors.New("pending scheduled event already exists")

const scheduledEventColumns = `id, event_type, year, scheduled_date, status, notes, created_by, created_at, completed_at, cancelled_at`

// ScheduledEventRepository persists deferred administrative actions.
type ScheduledEventRepository struct {
	db *sqlx.DB
}

// NewScheduledEventRepository constructs the repository.
func NewScheduledEventRepository(db *sqlx.DB) *ScheduledEventRepository {
	return &ScheduledEventRepository{db: db}
}

// Create inserts a pending event and fills its id.
func (r *ScheduledEventRepository) Create(ctx context.Context, event *models.ScheduledEvent) error {
	if event.Status == "" {
		event.Status = models.EventStatusPending
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO scheduled_events (event_type, year, scheduled_date, status, notes, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := r.db.QueryRowxContext(ctx, query, event.EventType, event.Year, event.ScheduledDate, event.Status,
		event.Notes, event.CreatedBy, event.CreatedAt).Scan(&event.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation && pqErr.Constraint == pendingEventConstraint {
			return ErrDuplicatePendingEvent
		}
		return fmt.Errorf("create scheduled event: %w", err)
	}
	return nil
}

// FindByID returns an event. sql.ErrNoRows is returned unwrapped.
func (r *ScheduledEventRepository) FindByID(ctx context.Context, id int64) (*models.ScheduledEvent, error) {
	query := `SELECT ` + scheduledEventColumns + ` FROM scheduled_events WHERE id = $1`
	var event models.ScheduledEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find scheduled event: %w", err)
	}
	return &event, nil
}

// FindPending returns the pending event for (type, year). sql.ErrNoRows is returned unwrapped.
func (r *ScheduledEventRepository) FindPending(ctx context.Context, eventType models.EventType, year int) (*models.ScheduledEvent, error) {
	query := `SELECT ` + scheduledEventColumns + ` FROM scheduled_events WHERE event_type = $1 AND year = $2 AND status = 'pending' LIMIT 1`
	var event models.ScheduledEvent
	if err := r.db.GetContext(ctx, &event, query, eventType, year); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find pending scheduled event: %w", err)
	}
	return &event, nil
}

// List returns events matching the filter with the total count.
func (r *ScheduledEventRepository) List(ctx context.Context, filter models.ScheduledEventFilter) ([]models.ScheduledEvent, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.EventType != nil {
		args = append(args, *filter.EventType)
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if filter.Year != nil {
		args = append(args, *filter.Year)
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM scheduled_events WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count scheduled events: %w", err)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf(`SELECT %s FROM scheduled_events WHERE %s ORDER BY scheduled_date ASC, id ASC LIMIT $%d OFFSET $%d`,
		scheduledEventColumns, where, len(args)-1, len(args))
	var events []models.ScheduledEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list scheduled events: %w", err)
	}
	return events, total, nil
}

// ListDue returns pending events scheduled at or before now, oldest first.
func (r *ScheduledEventRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + scheduledEventColumns + ` FROM scheduled_events
WHERE status = 'pending' AND scheduled_date <= $1 ORDER BY scheduled_date ASC, id ASC LIMIT $2`
	var events []models.ScheduledEvent
	if err := r.db.SelectContext(ctx, &events, query, now, limit); err != nil {
		return nil, fmt.Errorf("list due scheduled events: %w", err)
	}
	return events, nil
}

// Transition moves an event from one status to another only if it is still in from.
// It reports whether this call performed the transition.
func (r *ScheduledEventRepository) Transition(ctx context.Context, id int64, from, to models.EventStatus, at time.Time) (bool, error) {
	const query = `UPDATE scheduled_events SET status = $3::text,
completed_at = CASE WHEN $3::text = 'completed' THEN $4::timestamptz ELSE NULL END,
cancelled_at = CASE WHEN $3::text = 'cancelled' THEN $4::timestamptz ELSE NULL END
WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, at)
	if err != nil {
		return false, fmt.Errorf("transition scheduled event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition scheduled event: %w", err)
	}
	return affected == 1, nil
}

// CompletePending marks the pending event of (type, year) completed, if any.
func (r *ScheduledEventRepository) CompletePending(ctx context.Context, eventType models.EventType, year int, at time.Time) (int64, error) {
	const query = `UPDATE scheduled_events SET status = 'completed', completed_at = $3
WHERE event_type = $1 AND year = $2 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, eventType, year, at)
	if err != nil {
		return 0, fmt.Errorf("complete pending scheduled event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("complete pending scheduled event: %w", err)
	}
	return affected, nil
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
