package models

import "time"

// Institution is a member library reporting statistics.
type Institution struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// InstitutionYear holds the collection window state of one institution for one year.
type InstitutionYear struct {
	ID               int64      `db:"id" json:"id"`
	InstitutionID    int64      `db:"institution_id" json:"institution_id"`
	Year             int        `db:"year" json:"year"`
	IsOpenForEditing bool       `db:"is_open_for_editing" json:"is_open_for_editing"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	OpeningDate      *time.Time `db:"opening_date" json:"opening_date,omitempty"`
	ClosingDate      *time.Time `db:"closing_date" json:"closing_date,omitempty"`
	FiscalYearStart  *time.Time `db:"fiscal_year_start" json:"fiscal_year_start,omitempty"`
	FiscalYearEnd    *time.Time `db:"fiscal_year_end" json:"fiscal_year_end,omitempty"`
	PublicationDate  *time.Time `db:"publication_date" json:"publication_date,omitempty"`
	AdminNotes       *string    `db:"admin_notes" json:"admin_notes,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// WindowScope selects the institutions a window action applies to.
// An empty InstitutionIDs slice means every institution with a row for the year.
type WindowScope struct {
	InstitutionIDs []int64
}

// All reports whether the scope covers every institution.
func (s WindowScope) All() bool {
	return len(s.InstitutionIDs) == 0
}

// NewYearParams carries the dates stamped on rows created for a new collection year.
type NewYearParams struct {
	Year            int
	OpeningDate     *time.Time
	ClosingDate     *time.Time
	FiscalYearStart *time.Time
	FiscalYearEnd   *time.Time
	AdminNotes      *string
}

// YearCreationOutcome values.
const (
	YearCreated = "created"
	YearSkipped = "skipped"
)

// YearCreationResult records whether a row was created or already existed.
type YearCreationResult struct {
	InstitutionID int64  `json:"institution_id"`
	Outcome       string `json:"outcome"`
}
