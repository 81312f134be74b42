package rangestream

import (
	"errors"
	"fmt"

	"github.com/hupe1980/rangestream/expr"
	"github.com/hupe1980/rangestream/stream"
)

var (
	// ErrDepthExceeded is returned when the predicate tree is deeper than the
	// configured maximum.
	ErrDepthExceeded = errors.New("query depth threshold exceeded")

	// ErrValueThresholdUnsupported is returned when a value-expansion marker
	// covers an index-only field, or a range or pattern scan over one matches
	// too many values, and full scans of such fields are not available.
	ErrValueThresholdUnsupported = stream.ErrValueThresholdUnsupported

	// ErrFullTableScanRequired is returned by Plans when the index cannot
	// constrain the query and full table scans are disabled.
	ErrFullTableScanRequired = errors.New("query requires a full table scan")

	// ErrAlreadyPlanned is returned by a second StreamPlans call.
	ErrAlreadyPlanned = errors.New("streamPlans already called")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("rangestream closed")
)

// PlanError is a fatal planning error. It names the step that failed and,
// where known, the offending subtree.
//
// The original underlying error can be accessed via errors.Unwrap.
type PlanError struct {
	Op   string
	Node *expr.Node
	Err  error
}

func (e *PlanError) Error() string {
	if e.Node == nil {
		return fmt.Sprintf("rangestream: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("rangestream: %s %s: %v", e.Op, e.Node, e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }

func planError(op string, node *expr.Node, err error) error {
	var pe *PlanError
	if errors.As(err, &pe) {
		return err
	}
	var se *expr.ShapeError
	if errors.As(err, &se) && node == nil {
		node = se.Node
	}
	return &PlanError{Op: op, Node: node, Err: err}
}
