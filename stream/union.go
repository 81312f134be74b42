package stream

import (
	"context"

	"github.com/hupe1980/rangestream/expr"
)

// Union is the disjunction of its children. A key survives when any child
// has it; a day absorbs the shards of that day.
//
// ABSENT children are dropped. A union with a child that cannot constrain the
// index cannot constrain it either and emits nothing.
type Union struct {
	context  Context
	node     *expr.Node
	children []IndexStream
	live     []IndexStream

	head    Tuple
	hasHead bool
	done    bool
	closed  bool
}

var _ IndexStream = (*Union)(nil)

func newUnion(children []IndexStream) *Union {
	s := &Union{children: children}
	var nodes []*expr.Node
	for _, c := range children {
		if c.Context() == Absent {
			continue
		}
		s.live = append(s.live, c)
		nodes = append(nodes, c.CurrentNode())
	}
	if len(s.live) == 0 {
		for _, c := range children {
			nodes = append(nodes, c.CurrentNode())
		}
	}
	s.node = expr.Disjoin(nodes...)
	s.context = unionContext(s.live)
	s.done = !s.context.Mergeable()
	return s
}

// unionContext applies the precedence
// UNINDEXED > UNKNOWN_FIELD > IGNORED > EXCEEDED_TERM > EXCEEDED_VALUE >
// PRESENT over the children that are not ABSENT.
func unionContext(live []IndexStream) Context {
	if len(live) == 0 {
		return Absent
	}
	var seen [len(contextNames)]bool
	for _, c := range live {
		ctx := c.Context()
		if constrains(c) && ctx == Ignored {
			ctx = Present
		}
		seen[ctx] = true
	}
	switch {
	case seen[Unindexed]:
		return Unindexed
	case seen[UnknownField]:
		return UnknownField
	case seen[Ignored]:
		return Ignored
	case seen[Initialized]:
		return Initialized
	case seen[ExceededTermThreshold]:
		return ExceededTermThreshold
	case seen[ExceededValueThreshold]:
		return ExceededValueThreshold
	}
	return Present
}

// Context implements IndexStream.
func (s *Union) Context() Context { return s.context }

// CurrentNode implements IndexStream.
func (s *Union) CurrentNode() *expr.Node { return s.node }

// Children returns every child, including dropped ABSENT ones.
func (s *Union) Children() []IndexStream { return s.children }

// Peek implements IndexStream.
func (s *Union) Peek(ctx context.Context) (Tuple, bool, error) {
	if !s.hasHead && !s.done {
		if err := s.advance(ctx); err != nil {
			return Tuple{}, false, err
		}
	}
	return s.head, s.hasHead, nil
}

// Next implements IndexStream.
func (s *Union) Next(ctx context.Context) (Tuple, bool, error) {
	t, ok, err := s.Peek(ctx)
	if ok {
		s.hasHead = false
	}
	return t, ok, err
}

func (s *Union) advance(ctx context.Context) error {
	for {
		var (
			target string
			found  bool
		)
		for _, c := range s.live {
			t, ok, err := c.Peek(ctx)
			if err != nil {
				return err
			}
			if ok && (!found || t.Key < target) {
				target, found = t.Key, true
			}
		}
		if !found {
			s.done = true
			return nil
		}

		var info *IndexInfo
		for _, c := range s.live {
			for {
				t, ok, err := c.Peek(ctx)
				if err != nil {
					return err
				}
				if !ok || !Covers(target, t.Key) {
					break
				}
				if info == nil {
					info = t.Info
				} else {
					info = info.Union(t.Info)
				}
				if _, _, err := c.Next(ctx); err != nil {
					return err
				}
			}
		}
		if info == nil || info.Empty() {
			continue
		}
		s.head, s.hasHead = Tuple{Key: target, Info: info}, true
		return nil
	}
}

// ContextDebug implements IndexStream.
func (s *Union) ContextDebug() string {
	return debugTree("union", s.context, s.children)
}

// Close implements IndexStream.
func (s *Union) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.done = true
	s.hasHead = false
	return closeAll(s.children)
}

// UnionBuilder collects the children of consecutive disjunctions.
type UnionBuilder struct {
	children []IndexStream
}

// NewUnionBuilder returns an empty builder.
func NewUnionBuilder() *UnionBuilder { return &UnionBuilder{} }

// Add appends a child.
func (b *UnionBuilder) Add(s IndexStream) { b.children = append(b.children, s) }

// Consume moves every child of o into b.
func (b *UnionBuilder) Consume(o *UnionBuilder) {
	b.children = append(b.children, o.children...)
	o.children = nil
}

// Size returns the number of children.
func (b *UnionBuilder) Size() int { return len(b.children) }

// Build resolves uninitialized children on sched and returns their union. A
// builder without children yields an UNINDEXED leaf and a builder with one
// child yields the child itself.
func (b *UnionBuilder) Build(ctx context.Context, sched Scheduler) (IndexStream, error) {
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
	return newUnion(children), nil
}
