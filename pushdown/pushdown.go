// Package pushdown marks the parts of a predicate tree that the index cannot
// answer because of known index holes.
//
// Rewrite runs once, before planning. Equality and regex terms on indexed
// fields whose literal (or leading-literal range) falls into a hole for the
// query's date window are wrapped in an IndexHole marker. Lower and upper
// bounds of one indexed field inside a conjunction are paired into a
// BoundedRange marker, which is wrapped again when the range overlaps a hole.
// Every other marker is left alone, which makes the pass idempotent.
package pushdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hupe1980/rangestream/config"
	"github.com/hupe1980/rangestream/expr"
	"github.com/hupe1980/rangestream/metadata"
)

// RegexError reports a regex whose leading literal cannot be determined.
type RegexError struct {
	Node *expr.Node
	Err  error
}

func (e *RegexError) Error() string {
	return fmt.Sprintf("unable to parse regex %q: %v", e.Node.Value(), e.Err)
}

func (e *RegexError) Unwrap() error { return e.Err }

type rewriter struct {
	ctx     context.Context
	cfg     *config.Query
	helper  metadata.Helper
	logger  *slog.Logger
	holes   []config.IndexHole
	indexed map[string]bool
	err     error
}

// Rewrite returns tree with index-hole and bounded-range markers added. The
// input is never modified; unchanged subtrees are shared with the result.
func Rewrite(ctx context.Context, tree *expr.Node, cfg *config.Query, helper metadata.Helper, logger *slog.Logger) (*expr.Node, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &rewriter{
		ctx:     ctx,
		cfg:     cfg,
		helper:  helper,
		logger:  logger,
		holes:   slices.Clone(cfg.IndexHoles),
		indexed: map[string]bool{},
	}
	config.SortHoles(r.holes)
	out := r.visit(tree)
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

func (r *rewriter) visit(n *expr.Node) *expr.Node {
	if r.err != nil {
		return n
	}
	switch n.Kind() {
	case expr.KindMarker:
		if n.Marker() != expr.BoundedRange {
			return n
		}
		if rng, ok := expr.RangeOf(n); ok && r.isIndexed(rng.Field) && r.rangeInHole(rng) {
			return r.mark(n)
		}
		return n
	case expr.KindAnd:
		return r.visitAnd(n)
	case expr.KindEq:
		if !n.IsNull() && r.isIndexed(n.Field()) && r.valueInHole(n.Field(), n.Value()) {
			return r.mark(n)
		}
		return n
	case expr.KindRegex:
		if r.isIndexed(n.Field()) && r.regexInHole(n) {
			return r.mark(n)
		}
		return n
	}
	return r.visitChildren(n)
}

func (r *rewriter) visitChildren(n *expr.Node) *expr.Node {
	var out []*expr.Node
	for i, c := range n.Children() {
		vc := r.visit(c)
		if vc != c && out == nil {
			out = append(make([]*expr.Node, 0, n.NumChildren()), n.Children()[:i]...)
		}
		if out != nil {
			out = append(out, vc)
		}
	}
	if out == nil {
		return n
	}
	return n.WithChildren(out...)
}

func (r *rewriter) visitAnd(n *expr.Node) *expr.Node {
	ranges, others := expr.BoundedRanges(n, r.isIndexed)
	if len(ranges) == 0 {
		return r.visitChildren(n)
	}
	children := make([]*expr.Node, 0, len(others)+len(ranges))
	for _, c := range others {
		children = append(children, r.visit(c))
	}
	for _, rng := range ranges {
		m := rng.Node()
		if r.rangeInHole(rng) {
			m = r.mark(m)
		}
		children = append(children, m)
	}
	if len(children) == 1 {
		return children[0]
	}
	return n.WithChildren(children...)
}

func (r *rewriter) mark(n *expr.Node) *expr.Node {
	r.logger.DebugContext(r.ctx, "index hole pushed down", "node", n.String())
	return expr.Mark(expr.IndexHole, n)
}

func (r *rewriter) isIndexed(field string) bool {
	if field == "" || r.err != nil {
		return false
	}
	if v, ok := r.indexed[field]; ok {
		return v
	}
	ok, err := r.helper.IsIndexed(r.ctx, field, r.cfg.Datatypes)
	if err != nil {
		if !errors.Is(err, metadata.ErrTableNotFound) {
			r.err = fmt.Errorf("pushdown: indexed lookup for %s: %w", field, err)
			return false
		}
		r.logger.DebugContext(r.ctx, "metadata table missing, treating field as unindexed", "field", field)
		ok = false
	}
	r.indexed[field] = ok
	return ok
}

func (r *rewriter) valueInHole(field, value string) bool {
	for _, h := range r.holes {
		if h.AppliesTo(field) && h.Overlaps(r.cfg.BeginDate, r.cfg.EndDate, value) {
			return true
		}
		if h.After(value) {
			return false
		}
	}
	return false
}

func (r *rewriter) regexInHole(n *expr.Node) bool {
	prefix, err := expr.LeadingLiteral(n.Value())
	if err != nil {
		r.err = &RegexError{Node: n, Err: err}
		return false
	}
	if prefix == "" {
		return false
	}
	upper := expr.PrefixUpperBound(prefix)
	for _, h := range r.holes {
		hi := upper
		if hi == "" {
			hi = h.Upper
		} else if h.Lower >= hi {
			return false
		}
		if h.AppliesTo(n.Field()) && h.OverlapsRange(r.cfg.BeginDate, r.cfg.EndDate, prefix, hi) {
			return true
		}
	}
	return false
}

func (r *rewriter) rangeInHole(rng expr.Range) bool {
	for _, h := range r.holes {
		if h.After(rng.Upper) {
			return false
		}
		if h.AppliesTo(rng.Field) && h.OverlapsRange(r.cfg.BeginDate, r.cfg.EndDate, rng.Lower, rng.Upper) {
			return true
		}
	}
	return false
}
