package models

import "time"

// EntryStatus tracks which category forms an institution-year has submitted.
// Flags only ever move from false to true.
type EntryStatus struct {
	ID                      int64     `db:"id" json:"id"`
	InstitutionYearID       int64     `db:"institution_year_id" json:"institution_year_id"`
	MonographicAcquisitions bool      `db:"monographic_acquisitions" json:"monographic_acquisitions"`
	VolumeHoldings          bool      `db:"volume_holdings" json:"volume_holdings"`
	Serials                 bool      `db:"serials" json:"serials"`
	OtherHoldings           bool      `db:"other_holdings" json:"other_holdings"`
	UnprocessedBacklog      bool      `db:"unprocessed_backlog" json:"unprocessed_backlog"`
	FiscalSupport           bool      `db:"fiscal_support" json:"fiscal_support"`
	PersonnelSupport        bool      `db:"personnel_support" json:"personnel_support"`
	PublicServices          bool      `db:"public_services" json:"public_services"`
	Electronic              bool      `db:"electronic" json:"electronic"`
	ElectronicBooks         bool      `db:"electronic_books" json:"electronic_books"`
	Published               bool      `db:"published" json:"published"`
	CreatedAt               time.Time `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time `db:"updated_at" json:"updated_at"`
}

// Completed reports the flag for category.
func (s *EntryStatus) Completed(category Category) bool {
	if s == nil {
		return false
	}
	switch category {
	case CategoryMonographicAcquisitions:
		return s.MonographicAcquisitions
	case CategoryVolumeHoldings:
		return s.VolumeHoldings
	case CategorySerials:
		return s.Serials
	case CategoryOtherHoldings:
		return s.OtherHoldings
	case CategoryUnprocessedBacklog:
		return s.UnprocessedBacklog
	case CategoryFiscalSupport:
		return s.FiscalSupport
	case CategoryPersonnelSupport:
		return s.PersonnelSupport
	case CategoryPublicServices:
		return s.PublicServices
	case CategoryElectronic:
		return s.Electronic
	case CategoryElectronicBooks:
		return s.ElectronicBooks
	}
	return false
}
