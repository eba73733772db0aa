package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// Category is the tag of one statistics form.
type Category string

const (
	CategoryMonographicAcquisitions Category = "monographic_acquisitions"
	CategoryVolumeHoldings          Category = "volume_holdings"
	CategorySerials                 Category = "serials"
	CategoryOtherHoldings           Category = "other_holdings"
	CategoryUnprocessedBacklog      Category = "unprocessed_backlog"
	CategoryFiscalSupport           Category = "fiscal_support"
	CategoryPersonnelSupport        Category = "personnel_support"
	CategoryPublicServices          Category = "public_services"
	CategoryElectronic              Category = "electronic"
	CategoryElectronicBooks         Category = "electronic_books"
)

// Languages is the language dimension shared by every input row.
var Languages = []string{"chinese", "japanese", "korean", "noncjk"}

const (
	// SubtotalSuffix names the per-row rollup field: <row>_subtotal.
	SubtotalSuffix = "subtotal"
	// GrandTotalField names the per-form total.
	GrandTotalField = "grand_total"
)

// FieldName returns the input field for row in language.
func FieldName(row, language string) string {
	return row + "_" + language
}

// SubtotalField returns the rollup field for row.
func SubtotalField(row string) string {
	return row + "_" + SubtotalSuffix
}

// GrandTotalPart is one signed term of a grand total.
type GrandTotalPart struct {
	Row      string
	Subtract bool
}

// Dependency references a subtotal persisted on another form of the same institution-year.
type Dependency struct {
	Category Category
	Field    string
}

// CategoryDefinition is the metadata driving validation and rollup of one form.
type CategoryDefinition struct {
	Category   Category
	Label      string
	Rows       []string
	GrandTotal []GrandTotalPart
	Dependency *Dependency
	Monetary   bool
}

// InputFields lists every field a submission may carry.
func (d CategoryDefinition) InputFields() []string {
	fields := make([]string, 0, len(d.Rows)*len(Languages))
	for _, row := range d.Rows {
		for _, lang := range Languages {
			fields = append(fields, FieldName(row, lang))
		}
	}
	return fields
}

// OutputFields lists input fields followed by subtotals and the grand total.
func (d CategoryDefinition) OutputFields() []string {
	fields := d.InputFields()
	for _, row := range d.Rows {
		fields = append(fields, SubtotalField(row))
	}
	if len(d.GrandTotal) > 0 {
		fields = append(fields, GrandTotalField)
	}
	return fields
}

// HasInput reports whether field is a declared input of the form.
func (d CategoryDefinition) HasInput(field string) bool {
	for _, row := range d.Rows {
		for _, lang := range Languages {
			if FieldName(row, lang) == field {
				return true
			}
		}
	}
	return false
}

func sum(rows ...string) []GrandTotalPart {
	parts := make([]GrandTotalPart, len(rows))
	for i, row := range rows {
		parts[i] = GrandTotalPart{Row: row}
	}
	return parts
}

// CategoryDefinitions is the lookup table of every form, keyed by tag.
var CategoryDefinitions = map[Category]CategoryDefinition{
	CategoryMonographicAcquisitions: {
		Category:   CategoryMonographicAcquisitions,
		Label:      "Monographic Acquisitions",
		Rows:       []string{"purchased_titles", "purchased_volumes", "nonpurchased_titles", "nonpurchased_volumes"},
		GrandTotal: sum("purchased_volumes", "nonpurchased_volumes"),
	},
	CategoryVolumeHoldings: {
		Category: CategoryVolumeHoldings,
		Label:    "Physical Volume Holdings",
		Rows:     []string{"previous_year", "added_gross", "withdrawn"},
		GrandTotal: []GrandTotalPart{
			{Row: "previous_year"},
			{Row: "added_gross"},
			{Row: "withdrawn", Subtract: true},
		},
		Dependency: &Dependency{Category: CategoryElectronicBooks, Field: SubtotalField("purchased_volumes")},
	},
	CategorySerials: {
		Category:   CategorySerials,
		Label:      "Serial Titles",
		Rows:       []string{"purchased_print", "nonpurchased_print"},
		GrandTotal: sum("purchased_print", "nonpurchased_print"),
		Dependency: &Dependency{Category: CategoryElectronic, Field: SubtotalField("journals_purchased")},
	},
	CategoryOtherHoldings: {
		Category:   CategoryOtherHoldings,
		Label:      "Holdings of Other Materials",
		Rows:       []string{"microform", "cartographic", "audio", "film_video", "dvd", "av_titles"},
		GrandTotal: sum("microform", "cartographic", "audio", "film_video", "dvd", "av_titles"),
	},
	CategoryUnprocessedBacklog: {
		Category:   CategoryUnprocessedBacklog,
		Label:      "Unprocessed Backlog Materials",
		Rows:       []string{"monographs", "other_materials"},
		GrandTotal: sum("monographs", "other_materials"),
	},
	CategoryFiscalSupport: {
		Category: CategoryFiscalSupport,
		Label:    "Fiscal Support",
		Rows: []string{
			"appropriations_monographs", "appropriations_serials", "appropriations_other_materials",
			"appropriations_electronic", "endowments", "grants", "east_asian_program_support",
		},
		GrandTotal: sum(
			"appropriations_monographs", "appropriations_serials", "appropriations_other_materials",
			"appropriations_electronic", "endowments", "grants", "east_asian_program_support",
		),
		Monetary: true,
	},
	CategoryPersonnelSupport: {
		Category:   CategoryPersonnelSupport,
		Label:      "Personnel Support",
		Rows:       []string{"professional_staff", "support_staff", "student_assistants", "others"},
		GrandTotal: sum("professional_staff", "support_staff", "student_assistants", "others"),
	},
	CategoryPublicServices: {
		Category:   CategoryPublicServices,
		Label:      "Public Services",
		Rows:       []string{"presentations", "presentation_participants", "reference_transactions", "circulations", "lending_requests", "borrowing_requests"},
		GrandTotal: sum("presentations", "reference_transactions", "circulations", "lending_requests", "borrowing_requests"),
	},
	CategoryElectronic: {
		Category:   CategoryElectronic,
		Label:      "Electronic Resources",
		Rows:       []string{"journals_purchased", "journals_subscribed", "databases"},
		GrandTotal: sum("journals_purchased", "journals_subscribed", "databases"),
	},
	CategoryElectronicBooks: {
		Category:   CategoryElectronicBooks,
		Label:      "Electronic Books",
		Rows:       []string{"purchased_titles", "purchased_volumes", "subscription_titles", "subscription_volumes"},
		GrandTotal: sum("purchased_volumes", "subscription_volumes"),
	},
}

// LookupCategory resolves a tag to its definition.
func LookupCategory(tag string) (CategoryDefinition, bool) {
	def, ok := CategoryDefinitions[Category(tag)]
	return def, ok
}

// Categories returns every tag in a stable order.
func Categories() []Category {
	tags := make([]Category, 0, len(CategoryDefinitions))
	for tag := range CategoryDefinitions {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// FieldValues maps field names to nullable figures. It is stored as JSONB.
type FieldValues map[string]*float64

// Get returns the value of field or nil.
func (f FieldValues) Get(field string) *float64 {
	if f == nil {
		return nil
	}
	return f[field]
}

// Clone returns a shallow copy with fresh pointers.
func (f FieldValues) Clone() FieldValues {
	out := make(FieldValues, len(f))
	for k, v := range f {
		if v == nil {
			out[k] = nil
			continue
		}
		val := *v
		out[k] = &val
	}
	return out
}

// Value marshals the map for persistence.
func (f FieldValues) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

// Scan decodes a JSONB column.
func (f *FieldValues) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*f = FieldValues{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported field values type %T", src)
	}
	values := FieldValues{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &values); err != nil {
			return fmt.Errorf("decode field values: %w", err)
		}
	}
	*f = values
	return nil
}
