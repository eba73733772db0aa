package models

import "time"

// ExportFormat enumerates supported export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob persists an asynchronous aggregate export.
type ExportJob struct {
	ID           string       `db:"id" json:"id"`
	Category     Category     `db:"category" json:"category"`
	Year         int          `db:"year" json:"year"`
	Format       ExportFormat `db:"format" json:"format"`
	Status       ExportStatus `db:"status" json:"status"`
	StorageKey   *string      `db:"storage_key" json:"-"`
	ResultURL    *string      `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string       `db:"created_by" json:"created_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}

// ExportJobUpdate captures status transitions written by the worker.
type ExportJobUpdate struct {
	Status       ExportStatus
	StorageKey   *string
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Aggregate is the participation-filtered sum of one form across institutions.
type Aggregate struct {
	Year         int            `json:"year"`
	Category     Category       `json:"category"`
	Participants int            `json:"participants"`
	Filtered     bool           `json:"filtered"`
	Fields       FieldValues    `json:"fields"`
	Institutions []AggregateRow `json:"institutions"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// AggregateRow is one eligible institution's contribution.
type AggregateRow struct {
	InstitutionID   int64       `json:"institution_id"`
	InstitutionName string      `json:"institution_name"`
	Fields          FieldValues `json:"fields"`
}
