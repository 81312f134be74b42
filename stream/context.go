package stream

import "fmt"

// Context classifies how far the index can answer a stream's subtree.
type Context uint8

const (
	// Initialized leaves have not been pulled yet.
	Initialized Context = iota
	// Variable streams settle on Present when consumed.
	Variable
	// Present streams have concrete matches.
	Present
	// Absent streams provably match nothing in the date range.
	Absent
	// Ignored streams are delayed or evaluation-only.
	Ignored
	// Unindexed streams reference a field without an index.
	Unindexed
	// UnknownField streams reference a field never observed.
	UnknownField
	// ExceededTermThreshold streams expanded into too many terms.
	ExceededTermThreshold
	// ExceededValueThreshold streams matched too many values.
	ExceededValueThreshold
)

var contextNames = [...]string{
	Initialized:            "INITIALIZED",
	Variable:               "VARIABLE",
	Present:                "PRESENT",
	Absent:                 "ABSENT",
	Ignored:                "IGNORED",
	Unindexed:              "UNINDEXED",
	UnknownField:           "UNKNOWN_FIELD",
	ExceededTermThreshold:  "EXCEEDED_TERM_THRESHOLD",
	ExceededValueThreshold: "EXCEEDED_VALUE_THRESHOLD",
}

func (c Context) String() string {
	if int(c) < len(contextNames) {
		return contextNames[c]
	}
	return fmt.Sprintf("Context(%d)", c)
}

// Exceeded reports whether c is one of the threshold contexts.
func (c Context) Exceeded() bool {
	return c == ExceededTermThreshold || c == ExceededValueThreshold
}

// Mergeable reports whether streams in c emit tuples that constrain a merge.
func (c Context) Mergeable() bool {
	return c == Present || c == Variable || c.Exceeded()
}
