package dto

import (
	"time"

	"github.com/noah-isme/libstats-api/internal/models"
)

// CreateYearRequest captures POST /years payload.
type CreateYearRequest struct {
	Year            int        `json:"year" validate:"required,min=1900,max=2100"`
	OpeningDate     *time.Time `json:"openingDate,omitempty"`
	ClosingDate     *time.Time `json:"closingDate,omitempty"`
	FiscalYearStart *time.Time `json:"fiscalYearStart,omitempty"`
	FiscalYearEnd   *time.Time `json:"fiscalYearEnd,omitempty"`
	AdminNotes      *string    `json:"adminNotes,omitempty" validate:"omitempty,max=2000"`
}

// CreateYearResponse reports per-institution create-or-skip outcomes.
type CreateYearResponse struct {
	Year    int                         `json:"year"`
	Created int                         `json:"created"`
	Skipped int                         `json:"skipped"`
	Results []models.YearCreationResult `json:"results"`
}

// WindowRequest scopes an open/close action; an empty list targets every institution.
type WindowRequest struct {
	InstitutionIDs []int64 `json:"institutionIds,omitempty" validate:"omitempty,dive,gt=0"`
}

// WindowResponse summarises a window action.
type WindowResponse struct {
	Year           int     `json:"year"`
	Open           bool    `json:"open"`
	Affected       int64   `json:"affected"`
	InstitutionIDs []int64 `json:"institutionIds,omitempty"`
}

// DeleteYearResponse summarises a session deletion.
type DeleteYearResponse struct {
	Year            int   `json:"year"`
	Deleted         int64 `json:"deleted"`
	CancelledEvents int64 `json:"cancelledEvents"`
}

// PublishYearResponse summarises a publication.
type PublishYearResponse struct {
	Year            int       `json:"year"`
	Published       int64     `json:"published"`
	PublicationDate time.Time `json:"publicationDate"`
}

// WindowState describes an institution-year together with the caller's edit rights.
type WindowState struct {
	InstitutionYear *models.InstitutionYear `json:"institutionYear"`
	Open            bool                    `json:"open"`
	CanEdit         bool                    `json:"canEdit"`
	Override        bool                    `json:"override"`
}
