package stream

import (
	"context"
	"errors"
	"strings"

	"github.com/hupe1980/rangestream/expr"
)

// Intersection is the conjunction of its children. A key survives when every
// merging child has it, or has the day containing it.
//
// Children that cannot constrain the index (ignored, unindexed or unknown
// subtrees) do not take part in the merge; their nodes are appended to the
// residual node of every emitted tuple instead.
type Intersection struct {
	context     Context
	node        *expr.Node
	children    []IndexStream
	merged      []IndexStream
	residual    []*expr.Node
	intersector UIDIntersector

	head    Tuple
	hasHead bool
	done    bool
	closed  bool
}

var _ IndexStream = (*Intersection)(nil)

func newIntersection(children []IndexStream, ui UIDIntersector) *Intersection {
	if ui == nil {
		ui = DefaultIntersector
	}
	s := &Intersection{
		context:     intersectionContext(children),
		children:    children,
		intersector: ui,
	}
	nodes := make([]*expr.Node, 0, len(children))
	for _, c := range children {
		nodes = append(nodes, c.CurrentNode())
		if constrains(c) {
			s.merged = append(s.merged, c)
		} else if n := c.CurrentNode(); n != nil {
			s.residual = append(s.residual, n)
		}
	}
	s.node = expr.Conjoin(nodes...)
	s.done = s.context == Absent || len(s.merged) == 0
	return s
}

// intersectionContext applies the precedence
// ABSENT > EXCEEDED_TERM > EXCEEDED_VALUE > IGNORED > PRESENT > UNINDEXED >
// UNKNOWN_FIELD. Children that are all ignored or unindexed yield UNINDEXED.
func intersectionContext(children []IndexStream) Context {
	var seen [len(contextNames)]bool
	unconstrained := len(children) > 0
	for _, c := range children {
		ctx := c.Context()
		seen[ctx] = true
		if constrains(c) || (ctx != Ignored && ctx != Unindexed) {
			unconstrained = false
		}
	}
	switch {
	case seen[Absent]:
		return Absent
	case seen[ExceededTermThreshold]:
		return ExceededTermThreshold
	case seen[ExceededValueThreshold]:
		return ExceededValueThreshold
	case unconstrained:
		return Unindexed
	case seen[Ignored]:
		return Ignored
	case seen[Present], seen[Variable]:
		return Present
	case seen[Unindexed]:
		return Unindexed
	case seen[UnknownField]:
		return UnknownField
	}
	return Initialized
}

// constrains reports whether s takes part in merges. An intersection ranked
// IGNORED still constrains when it has merging children of its own.
func constrains(s IndexStream) bool {
	if s.Context().Mergeable() {
		return true
	}
	in, ok := s.(*Intersection)
	return ok && in.context == Ignored && len(in.merged) > 0
}

// prime pulls the first tuple. A merging intersection without any tuple is
// ABSENT.
func (s *Intersection) prime(ctx context.Context) error {
	if len(s.merged) == 0 || s.context == Absent {
		return nil
	}
	_, ok, err := s.Peek(ctx)
	if err != nil {
		return err
	}
	if !ok {
		s.context = Absent
	}
	return nil
}

// Context implements IndexStream.
func (s *Intersection) Context() Context { return s.context }

// CurrentNode implements IndexStream.
func (s *Intersection) CurrentNode() *expr.Node { return s.node }

// Children returns every child, merging or not.
func (s *Intersection) Children() []IndexStream { return s.children }

// Peek implements IndexStream.
func (s *Intersection) Peek(ctx context.Context) (Tuple, bool, error) {
	if !s.hasHead && !s.done {
		if err := s.advance(ctx); err != nil {
			return Tuple{}, false, err
		}
	}
	return s.head, s.hasHead, nil
}

// Next implements IndexStream.
func (s *Intersection) Next(ctx context.Context) (Tuple, bool, error) {
	t, ok, err := s.Peek(ctx)
	if ok {
		s.hasHead = false
	}
	return t, ok, err
}

func (s *Intersection) advance(ctx context.Context) error {
	heads := make([]Tuple, len(s.merged))
	for {
		for i, c := range s.merged {
			t, ok, err := c.Peek(ctx)
			if err != nil {
				return err
			}
			if !ok {
				s.done = true
				return nil
			}
			heads[i] = t
		}

		target := heads[0].Key
		for _, h := range heads[1:] {
			if h.Key > target {
				target = h.Key
			}
		}

		behind := false
		for i, h := range heads {
			if Covers(h.Key, target) {
				continue
			}
			if _, _, err := s.merged[i].Next(ctx); err != nil {
				return err
			}
			behind = true
		}
		if behind {
			continue
		}

		info := heads[0].Info
		for _, h := range heads[1:] {
			info = info.Intersect(h.Info, s.intersector)
		}
		for i, h := range heads {
			if h.Key != target {
				continue
			}
			if _, _, err := s.merged[i].Next(ctx); err != nil {
				return err
			}
		}
		if info.Empty() {
			continue
		}
		if len(s.residual) > 0 {
			info = &IndexInfo{
				count: info.count,
				uids:  info.uids,
				node:  expr.Conjoin(append([]*expr.Node{info.node}, s.residual...)...),
			}
		}
		s.head, s.hasHead = Tuple{Key: target, Info: info}, true
		return nil
	}
}

// ContextDebug implements IndexStream.
func (s *Intersection) ContextDebug() string {
	return debugTree("intersection", s.context, s.children)
}

// Close implements IndexStream.
func (s *Intersection) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.done = true
	s.hasHead = false
	return closeAll(s.children)
}

func closeAll(streams []IndexStream) error {
	var errs []error
	for _, c := range streams {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func debugTree(label string, c Context, children []IndexStream) string {
	var b strings.Builder
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(c.String())
	for _, child := range children {
		for _, line := range strings.Split(child.ContextDebug(), "\n") {
			b.WriteString("\n  ")
			b.WriteString(line)
		}
	}
	return b.String()
}

// IntersectionBuilder collects the children of consecutive conjunctions.
type IntersectionBuilder struct {
	children    []IndexStream
	intersector UIDIntersector
}

// NewIntersectionBuilder returns a builder using ui to combine record-id
// sets. A nil ui selects DefaultIntersector.
func NewIntersectionBuilder(ui UIDIntersector) *IntersectionBuilder {
	return &IntersectionBuilder{intersector: ui}
}

// Add appends a child.
func (b *IntersectionBuilder) Add(s IndexStream) { b.children = append(b.children, s) }

// Consume moves every child of o into b.
func (b *IntersectionBuilder) Consume(o *IntersectionBuilder) {
	b.children = append(b.children, o.children...)
	o.children = nil
}

// Size returns the number of children.
func (b *IntersectionBuilder) Size() int { return len(b.children) }

// Build resolves uninitialized children on sched and returns their
// intersection. A builder without children yields an UNINDEXED leaf and a
// builder with one child yields the child itself.
func (b *IntersectionBuilder) Build(ctx context.Context, sched Scheduler) (IndexStream, error) {
	if len(b.children) == 0 {
		return NotIndexed(nil), nil
	}
	children, err := Initialize(ctx, sched, b.children)
	if err != nil {
		return nil, err
	}
	if len(children) == 1 {
		return children[0], nil
	}
	s := newIntersection(children, b.intersector)
	if err := s.prime(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
