package models

import "time"

// CategoryRecord is one submitted statistics form for an institution-year.
type CategoryRecord struct {
	ID                int64       `db:"id" json:"id"`
	InstitutionYearID int64       `db:"institution_year_id" json:"institution_year_id"`
	Category          Category    `db:"category" json:"category"`
	FieldValues       FieldValues `db:"field_values" json:"field_values"`
	Notes             *string     `db:"notes" json:"notes,omitempty"`
	UpdatedBy         *string     `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

// YearCategoryRecord joins a form with its institution for aggregation.
type YearCategoryRecord struct {
	CategoryRecord
	InstitutionID   int64  `db:"institution_id" json:"institution_id"`
	InstitutionName string `db:"institution_name" json:"institution_name"`
}

// Submission is a category form write together with its side effects.
type Submission struct {
	Record   CategoryRecord
	Audit    AuditLog
	Activate bool
}
