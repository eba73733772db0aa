package models

import "time"

// CatalogKind enumerates catalog record families.
type CatalogKind string

const (
	CatalogKindAV       CatalogKind = "av"
	CatalogKindEBook    CatalogKind = "ebook"
	CatalogKindEJournal CatalogKind = "ejournal"
)

// IdentityKey names a catalog attribute that takes part in record identity.
type IdentityKey string

const (
	IdentityTitle     IdentityKey = "title"
	IdentityType      IdentityKey = "type"
	IdentityPublisher IdentityKey = "publisher"
)

// IdentityKeys returns the composite identity of records of kind.
func (k CatalogKind) IdentityKeys() []IdentityKey {
	switch k {
	case CatalogKindAV:
		return []IdentityKey{IdentityTitle, IdentityType}
	case CatalogKindEBook, CatalogKindEJournal:
		return []IdentityKey{IdentityTitle, IdentityPublisher}
	}
	return nil
}

// Valid reports whether k is a known kind.
func (k CatalogKind) Valid() bool {
	return k.IdentityKeys() != nil
}

// CatalogRecord is an AV, e-book or e-journal title. A nil InstitutionID marks a global record.
type CatalogRecord struct {
	ID            int64       `db:"id" json:"id"`
	Kind          CatalogKind `db:"kind" json:"kind"`
	Title         string      `db:"title" json:"title"`
	Type          *string     `db:"type" json:"type,omitempty"`
	Publisher     *string     `db:"publisher" json:"publisher,omitempty"`
	Language      string      `db:"language" json:"language"`
	Volumes       *float64    `db:"volumes" json:"volumes,omitempty"`
	InstitutionID *int64      `db:"institution_id" json:"institution_id,omitempty"`
	ParentID      *int64      `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}

// IdentityValue returns the raw attribute for key.
func (r CatalogRecord) IdentityValue(key IdentityKey) string {
	switch key {
	case IdentityTitle:
		return r.Title
	case IdentityType:
		if r.Type != nil {
			return *r.Type
		}
	case IdentityPublisher:
		if r.Publisher != nil {
			return *r.Publisher
		}
	}
	return ""
}

// InstitutionSpecific reports whether the record is a customised copy.
func (r CatalogRecord) InstitutionSpecific() bool {
	return r.InstitutionID != nil
}
