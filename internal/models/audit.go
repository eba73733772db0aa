package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionCategorySubmit         = "CATEGORY_SUBMIT"
	AuditActionCategorySubmitOverride = "CATEGORY_SUBMIT_OVERRIDE"
	AuditActionSubscriptionImport     = "SUBSCRIPTION_IMPORT"
	AuditActionYearCreate             = "YEAR_CREATE"
	AuditActionYearDelete             = "YEAR_DELETE"
	AuditActionYearPublish            = "YEAR_PUBLISH"
	AuditActionWindowOpen             = "WINDOW_OPEN"
	AuditActionWindowClose            = "WINDOW_CLOSE"
	AuditActionEventSchedule          = "EVENT_SCHEDULE"
	AuditActionEventCancel            = "EVENT_CANCEL"
	AuditActionEventExecute           = "EVENT_EXECUTE"
	AuditActionExportRequest          = "EXPORT_REQUEST"
)

// Audit resource names.
const (
	AuditResourceCategoryRecord = "category_record"
	AuditResourceInstitutionYr  = "institution_year"
	AuditResourceScheduledEvent = "scheduled_event"
	AuditResourceExportJob      = "export_job"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID            string    `db:"id" json:"id"`
	UserID        *string   `db:"user_id" json:"user_id,omitempty"`
	InstitutionID *int64    `db:"institution_id" json:"institution_id,omitempty"`
	Action        string    `db:"action" json:"action"`
	Resource      string    `db:"resource" json:"resource"`
	ResourceID    *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues     []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues     []byte    `db:"new_values" json:"new_values,omitempty"`
	Success       bool      `db:"success" json:"success"`
	Override      bool      `db:"override" json:"override"`
	IPAddress     string    `db:"ip_address" json:"ip_address"`
	UserAgent     string    `db:"user_agent" json:"user_agent"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
