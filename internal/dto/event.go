package dto

import (
	"time"

	"github.com/noah-isme/libstats-api/internal/models"
)

// ScheduleEventRequest captures POST /events payload.
type ScheduleEventRequest struct {
	EventType     string    `json:"eventType" validate:"required,oneof=BROADCAST FORM_OPENING FORM_CLOSING"`
	Year          int       `json:"year" validate:"required,min=1900,max=2100"`
	ScheduledDate time.Time `json:"scheduledDate" validate:"required"`
	Notes         *string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// Execution outcomes.
const (
	ExecutionApplied = "applied"
	ExecutionSkipped = "skipped"
	ExecutionFailed  = "failed"
)

// EventExecution reports what one execute call did.
type EventExecution struct {
	Event   *models.ScheduledEvent `json:"event"`
	Outcome string                 `json:"outcome"`
	Error   string                 `json:"error,omitempty"`
}

// RunDueResponse summarises an ExecuteDue pass.
type RunDueResponse struct {
	RanAt      time.Time        `json:"ranAt"`
	Executions []EventExecution `json:"executions"`
}
