package config

import (
	"cmp"
	"slices"
)

// IndexHole is a value interval of a field known to be missing from the index
// between two days. Dates are yyyyMMdd and all bounds are inclusive.
type IndexHole struct {
	// Field limits the hole to one field. Empty applies to every field.
	Field     string `yaml:"field,omitempty"`
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
	Lower     string `yaml:"lower"`
	Upper     string `yaml:"upper"`
}

// AppliesTo reports whether the hole concerns field.
func (h IndexHole) AppliesTo(field string) bool {
	return h.Field == "" || h.Field == field
}

func (h IndexHole) spans(begin, end string) bool {
	return h.StartDate <= end && begin <= h.EndDate
}

// Overlaps reports whether value falls in the hole during [begin, end].
func (h IndexHole) Overlaps(begin, end, value string) bool {
	return h.spans(begin, end) && h.Lower <= value && value <= h.Upper
}

// OverlapsRange reports whether [lower, upper] intersects the hole during
// [begin, end].
func (h IndexHole) OverlapsRange(begin, end, lower, upper string) bool {
	return h.spans(begin, end) && h.Lower <= upper && lower <= h.Upper
}

// After reports whether the hole starts beyond value.
func (h IndexHole) After(value string) bool {
	return h.Lower > value
}

// SortHoles orders holes by lower then upper bound.
func SortHoles(holes []IndexHole) {
	slices.SortStableFunc(holes, func(a, b IndexHole) int {
		if c := cmp.Compare(a.Lower, b.Lower); c != 0 {
			return c
		}
		return cmp.Compare(a.Upper, b.Upper)
	})
}
