package expr

import "fmt"

// MarkerType identifies a query-property marker.
type MarkerType uint8

const (
	MarkerNone MarkerType = iota
	// Delayed subtrees are evaluated against records only.
	Delayed
	// EvaluationOnly subtrees never reach the index.
	EvaluationOnly
	// IndexHole subtrees touch a known gap in the index.
	IndexHole
	// ExceededValueThreshold subtrees matched too many values to enumerate.
	ExceededValueThreshold
	// ExceededTermThreshold subtrees expanded into too many terms.
	ExceededTermThreshold
	// ExceededOrThreshold subtrees are disjunctions too wide to enumerate.
	ExceededOrThreshold
	// BoundedRange wraps the lower and upper bound of one field.
	BoundedRange
)

var markerLabels = [...]string{
	MarkerNone:             "",
	Delayed:                "_Delayed_",
	EvaluationOnly:         "_Eval_",
	IndexHole:              "_Hole_",
	ExceededValueThreshold: "_Value_",
	ExceededTermThreshold:  "_Term_",
	ExceededOrThreshold:    "_List_",
	BoundedRange:           "_Bounded_",
}

// Label returns the identifier used when the marker is rendered.
func (m MarkerType) Label() string {
	if int(m) < len(markerLabels) {
		return markerLabels[m]
	}
	return fmt.Sprintf("_Marker%d_", m)
}

func (m MarkerType) String() string { return m.Label() }

// ParseMarker returns the marker with the given label.
func ParseMarker(label string) (MarkerType, error) {
	for i, l := range markerLabels {
		if i > 0 && l == label {
			return MarkerType(i), nil
		}
	}
	return MarkerNone, fmt.Errorf("expr: unknown marker %q", label)
}
