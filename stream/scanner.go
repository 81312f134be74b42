package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/rangestream/expr"
)

// ScannerStream is a leaf stream. It either wraps a lazily opened index scan
// or replays a fixed list of tuples.
//
// A ScannerStream is not safe for concurrent use.
type ScannerStream struct {
	context Context
	node    *expr.Node
	label   string

	open         func(ctx context.Context) (Source, error)
	days         []string
	src          Source
	rejectExceed bool
	failed       error

	tuples []Tuple
	pos    int

	head     Tuple
	hasHead  bool
	done     bool
	closed   bool
	closeErr error
}

var _ IndexStream = (*ScannerStream)(nil)

// Scan returns a leaf that opens a scan for req on its first pull and
// then settles on PRESENT or ABSENT. When the scan reports
// ErrValueThresholdExceeded the leaf degrades to EXCEEDED_VALUE_THRESHOLD and
// emits one tuple of unknown cardinality for each of days, unless
// req.RejectExceeded is set, in which case the pull fails with
// ErrValueThresholdUnsupported.
func Scan(factory ScannerFactory, req ScanRequest, node *expr.Node, days []string) *ScannerStream {
	return &ScannerStream{
		context: Initialized,
		node:    node,
		label:   "scan",
		open: func(ctx context.Context) (Source, error) {
			return factory.Open(ctx, req)
		},
		days:         days,
		rejectExceed: req.RejectExceeded,
	}
}

// Static returns a leaf with a fixed context replaying tuples.
func Static(c Context, node *expr.Node, tuples []Tuple) *ScannerStream {
	return &ScannerStream{context: c, node: node, label: "static", tuples: tuples}
}

// WithData returns a VARIABLE leaf replaying tuples.
func WithData(tuples []Tuple, node *expr.Node) *ScannerStream {
	s := Static(Variable, node, tuples)
	s.label = "withData"
	return s
}

// NoData returns an ABSENT leaf.
func NoData(node *expr.Node) *ScannerStream {
	s := Static(Absent, node, nil)
	s.label = "noData"
	return s
}

// NotIndexed returns an UNINDEXED leaf.
func NotIndexed(node *expr.Node) *ScannerStream {
	s := Static(Unindexed, node, nil)
	s.label = "unindexed"
	return s
}

// Unknown returns an UNKNOWN_FIELD leaf.
func Unknown(node *expr.Node) *ScannerStream {
	s := Static(UnknownField, node, nil)
	s.label = "unknownField"
	return s
}

// Marked returns an IGNORED leaf for a subtree that is already marked.
func Marked(node *expr.Node) *ScannerStream {
	s := Static(Ignored, node, nil)
	s.label = "ignored"
	return s
}

// DelayedExpression returns an IGNORED leaf whose node is marked Delayed.
func DelayedExpression(node *expr.Node) *ScannerStream {
	if u := expr.Unwrap(node); u.Kind() != expr.KindMarker {
		node = expr.Mark(expr.Delayed, node)
	}
	s := Static(Ignored, node, nil)
	s.label = "delayed"
	return s
}

// ExceededTerm returns an EXCEEDED_TERM_THRESHOLD leaf emitting every day.
func ExceededTerm(node *expr.Node, days []string) *ScannerStream {
	s := Static(ExceededTermThreshold, node, DayTuples(days, node))
	s.label = "exceededTerm"
	return s
}

// ExceededValue returns an EXCEEDED_VALUE_THRESHOLD leaf emitting every day.
func ExceededValue(node *expr.Node, days []string) *ScannerStream {
	s := Static(ExceededValueThreshold, node, DayTuples(days, node))
	s.label = "exceededValue"
	return s
}

// Context implements IndexStream.
func (s *ScannerStream) Context() Context { return s.context }

// CurrentNode implements IndexStream.
func (s *ScannerStream) CurrentNode() *expr.Node { return s.node }

// Peek implements IndexStream.
func (s *ScannerStream) Peek(ctx context.Context) (Tuple, bool, error) {
	if err := s.resolve(ctx); err != nil {
		return Tuple{}, false, err
	}
	if err := s.fill(ctx); err != nil {
		return Tuple{}, false, err
	}
	return s.head, s.hasHead, nil
}

// Next implements IndexStream.
func (s *ScannerStream) Next(ctx context.Context) (Tuple, bool, error) {
	t, ok, err := s.Peek(ctx)
	if ok {
		s.hasHead = false
	}
	return t, ok, err
}

func (s *ScannerStream) resolve(ctx context.Context) error {
	if s.context != Initialized {
		return nil
	}
	if s.failed != nil {
		return s.failed
	}
	if s.closed {
		return errors.New("stream: scanner stream closed")
	}
	src, err := s.open(ctx)
	if errors.Is(err, ErrValueThresholdExceeded) {
		return s.exceed()
	}
	if err != nil {
		return fmt.Errorf("stream: open scan for %s: %w", s.node, err)
	}
	s.src = src
	p, ok, err := src.Next(ctx)
	switch {
	case errors.Is(err, ErrValueThresholdExceeded):
		return s.exceed()
	case err != nil:
		return fmt.Errorf("stream: scan %s: %w", s.node, err)
	case !ok:
		s.context = Absent
		s.finish()
	default:
		s.context = Present
		s.head, s.hasHead = s.tuple(p), true
	}
	return nil
}

func (s *ScannerStream) exceed() error {
	s.finish()
	if s.rejectExceed {
		s.failed = fmt.Errorf("stream: scan %s: %w", s.node, ErrValueThresholdUnsupported)
		return s.failed
	}
	s.done = false
	if !expr.IsMarked(s.node, expr.ExceededValueThreshold) {
		s.node = expr.Mark(expr.ExceededValueThreshold, s.node)
	}
	s.context = ExceededValueThreshold
	s.tuples = DayTuples(s.days, s.node)
	return nil
}

func (s *ScannerStream) fill(ctx context.Context) error {
	if s.hasHead || s.done {
		return nil
	}
	if s.src == nil {
		if s.pos < len(s.tuples) {
			s.head, s.hasHead = s.tuples[s.pos], true
			s.pos++
		} else {
			s.done = true
		}
		return nil
	}
	p, ok, err := s.src.Next(ctx)
	if err != nil {
		return fmt.Errorf("stream: scan %s: %w", s.node, err)
	}
	if !ok {
		s.finish()
		return nil
	}
	s.head, s.hasHead = s.tuple(p), true
	return nil
}

func (s *ScannerStream) tuple(p Posting) Tuple {
	if p.UIDs != nil {
		return Tuple{Key: p.Key, Info: NewIndexInfo(p.UIDs, s.node)}
	}
	return Tuple{Key: p.Key, Info: CountInfo(p.Count, s.node)}
}

// finish closes the scan once it is exhausted.
func (s *ScannerStream) finish() {
	s.done = true
	if s.src != nil {
		s.closeErr = errors.Join(s.closeErr, s.src.Close())
		s.src = nil
	}
}

// ContextDebug implements IndexStream.
func (s *ScannerStream) ContextDebug() string {
	return fmt.Sprintf("%s: %s %s", s.label, s.context, s.node)
}

// Close implements IndexStream.
func (s *ScannerStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.done = true
	s.hasHead = false
	if s.src != nil {
		s.closeErr = errors.Join(s.closeErr, s.src.Close())
		s.src = nil
	}
	return s.closeErr
}
