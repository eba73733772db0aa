package service

import (
	"math"

	"github.com/noah-isme/libstats-api/internal/models"
)

// Subtotal sums parts treating nil as zero, unless every part is nil, in which
// case the result is nil.
func Subtotal(parts ...*float64) *float64 {
	var total float64
	seen := false
	for _, part := range parts {
		if part == nil {
			continue
		}
		seen = true
		total += *part
	}
	if !seen {
		return nil
	}
	return &total
}

// RoundMoney rounds a monetary sum to two decimals. Nil stays nil.
func RoundMoney(value *float64) *float64 {
	if value == nil {
		return nil
	}
	rounded := math.Round(*value*100) / 100
	return &rounded
}

// GrandTotal combines signed row subtotals. Without a dependency it follows the
// subtotal rule; with one it is never nil and an absent dependency counts as zero.
func GrandTotal(def models.CategoryDefinition, subtotals map[string]*float64, deps models.FieldValues) *float64 {
	parts := make([]*float64, 0, len(def.GrandTotal)+1)
	for _, part := range def.GrandTotal {
		value := subtotals[part.Row]
		if value != nil && part.Subtract {
			negated := -*value
			value = &negated
		}
		parts = append(parts, value)
	}
	total := Subtotal(parts...)
	if def.Dependency != nil {
		var zero float64
		total = Subtotal(total, &zero, deps.Get(dependencyKey(*def.Dependency)))
	}
	if def.Monetary {
		total = RoundMoney(total)
	}
	return total
}

// Compute returns the submitted inputs plus every row subtotal and the grand total.
// deps carries the persisted values of dependency forms keyed "<category>.<field>".
func Compute(def models.CategoryDefinition, inputs models.FieldValues, deps models.FieldValues) models.FieldValues {
	out := make(models.FieldValues, len(def.OutputFields()))
	subtotals := make(map[string]*float64, len(def.Rows))
	for _, row := range def.Rows {
		parts := make([]*float64, 0, len(models.Languages))
		for _, lang := range models.Languages {
			field := models.FieldName(row, lang)
			value := copyValue(inputs.Get(field))
			out[field] = value
			parts = append(parts, value)
		}
		subtotal := Subtotal(parts...)
		if def.Monetary {
			subtotal = RoundMoney(subtotal)
		}
		subtotals[row] = subtotal
		out[models.SubtotalField(row)] = subtotal
	}
	if len(def.GrandTotal) > 0 {
		out[models.GrandTotalField] = GrandTotal(def, subtotals, deps)
	}
	return out
}

// DependencyValues extracts the value a dependent form reads from a persisted record.
// A nil record yields an empty map, which GrandTotal treats as zero.
func DependencyValues(dep models.Dependency, record *models.CategoryRecord) models.FieldValues {
	values := models.FieldValues{}
	if record == nil {
		return values
	}
	values[dependencyKey(dep)] = copyValue(record.FieldValues.Get(dep.Field))
	return values
}

func dependencyKey(dep models.Dependency) string {
	return string(dep.Category) + "." + dep.Field
}

func copyValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	val := *v
	return &val
}
