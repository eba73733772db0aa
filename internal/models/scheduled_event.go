package models

import "time"

// EventType enumerates scheduled event kinds.
type EventType string

const (
	EventTypeBroadcast   EventType = "BROADCAST"
	EventTypeFormOpening EventType = "FORM_OPENING"
	EventTypeFormClosing EventType = "FORM_CLOSING"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeBroadcast, EventTypeFormOpening, EventTypeFormClosing:
		return true
	}
	return false
}

// EventStatus captures the scheduled event lifecycle.
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s EventStatus) Terminal() bool {
	return s == EventStatusCompleted || s == EventStatusCancelled
}

// ScheduledEvent is a deferred administrative action.
type ScheduledEvent struct {
	ID            int64       `db:"id" json:"id"`
	EventType     EventType   `db:"event_type" json:"event_type"`
	Year          int         `db:"year" json:"year"`
	ScheduledDate time.Time   `db:"scheduled_date" json:"scheduled_date"`
	Status        EventStatus `db:"status" json:"status"`
	Notes         *string     `db:"notes" json:"notes,omitempty"`
	CreatedBy     *string     `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	CompletedAt   *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt   *time.Time  `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// ScheduledEventFilter narrows event listings.
type ScheduledEventFilter struct {
	Status    *EventStatus
	EventType *EventType
	Year      *int
	Page      int
	PageSize  int
}

// BroadcastMessage is published on the broadcast channel when a BROADCAST event fires.
type BroadcastMessage struct {
	EventID int64     `json:"event_id"`
	Year    int       `json:"year"`
	Notes   string    `json:"notes,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}
