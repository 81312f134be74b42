package rangestream

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/hupe1980/rangestream/expr"
	"github.com/hupe1980/rangestream/metadata"
	"github.com/hupe1980/rangestream/stream"
)

type fieldStatus uint8

const (
	fieldUnknown fieldStatus = iota
	fieldUnindexed
	fieldIndexed
)

// visitor turns a predicate tree into index streams, bottom up.
type visitor struct {
	ctx    context.Context
	rs     *RangeStream
	days   []string
	status map[string]fieldStatus
	all    []string
	hasAll bool
}

func newVisitor(ctx context.Context, rs *RangeStream) *visitor {
	return &visitor{
		ctx:    ctx,
		rs:     rs,
		days:   rs.cfg.Days(),
		status: make(map[string]fieldStatus),
	}
}

// visit returns the stream for n. builder is the builder of the enclosing
// conjunction or disjunction, parent the enclosing node. A nil stream means n
// contributes nothing of its own: its children moved into builder, or it is
// an assignment that is not a shard/day hint.
func (v *visitor) visit(n, parent *expr.Node, builder any) (stream.IndexStream, error) {
	switch n.Kind() {
	case expr.KindAnd:
		return v.visitAnd(n, builder)
	case expr.KindOr:
		return v.visitOr(n, builder)
	case expr.KindRef:
		return v.visit(n.Child(0), parent, builder)
	case expr.KindEq:
		return v.visitEq(n)
	case expr.KindRegex:
		return v.visitRegex(n)
	case expr.KindLt, expr.KindLe, expr.KindGt, expr.KindGe:
		return v.visitBound(n, parent)
	case expr.KindNe, expr.KindNotRegex, expr.KindNot, expr.KindFunction, expr.KindTrue:
		return stream.DelayedExpression(n), nil
	case expr.KindAssign:
		return v.visitAssign(n), nil
	case expr.KindMarker:
		return v.visitMarker(n)
	}
	return nil, planError("visit", n, &expr.ShapeError{Node: n, Reason: "unsupported node"})
}

func (v *visitor) visitAnd(n *expr.Node, builder any) (stream.IndexStream, error) {
	b := stream.NewIntersectionBuilder(v.rs.opts.uidIntersector)
	for _, c := range n.Children() {
		s, err := v.visit(c, n, b)
		if err != nil {
			return nil, err
		}
		if s != nil {
			b.Add(s)
		}
	}

	if parent, ok := builder.(*stream.IntersectionBuilder); ok {
		v.rs.logger.DebugContext(v.ctx, "propagating children up to parent conjunction")
		parent.Consume(b)
		return nil, nil
	}
	if b.Size() == 0 {
		return stream.NotIndexed(n), nil
	}
	s, err := b.Build(v.ctx, v.rs.lookups)
	if err != nil {
		return nil, planError("initialize", n, err)
	}
	return v.settle(s), nil
}

func (v *visitor) visitOr(n *expr.Node, builder any) (stream.IndexStream, error) {
	b := stream.NewUnionBuilder()
	for _, c := range n.Children() {
		s, err := v.visit(c, n, b)
		if err != nil {
			return nil, err
		}
		if s != nil {
			b.Add(s)
		}
	}

	if parent, ok := builder.(*stream.UnionBuilder); ok {
		v.rs.logger.DebugContext(v.ctx, "propagating children up to parent disjunction")
		parent.Consume(b)
		return nil, nil
	}
	if b.Size() == 0 {
		return stream.NotIndexed(n), nil
	}
	s, err := b.Build(v.ctx, v.rs.lookups)
	if err != nil {
		return nil, planError("initialize", n, err)
	}
	return v.settle(s), nil
}

// settle replaces a combination that is still INITIALIZED after its
// children were resolved with an UNKNOWN_FIELD leaf.
func (v *visitor) settle(s stream.IndexStream) stream.IndexStream {
	if s.Context() != stream.Initialized {
		return s
	}
	node := s.CurrentNode()
	if err := s.Close(); err != nil {
		v.rs.closeFailed(v.ctx, "stream", err)
	}
	return stream.Unknown(node)
}

func (v *visitor) visitEq(n *expr.Node) (stream.IndexStream, error) {
	if unOrNotFielded(n) {
		return stream.NoData(n), nil
	}
	if n.IsNull() || n.Field() == expr.DatatypeField {
		return stream.NotIndexed(n), nil
	}

	st, err := v.fieldStatus(n.Field())
	if err != nil {
		return nil, planError("metadata", n, err)
	}
	switch st {
	case fieldUnindexed:
		v.rs.logger.DebugContext(v.ctx, "field is not indexed", "field", n.Field(), "value", n.Value())
		return stream.NotIndexed(n), nil
	case fieldUnknown:
		v.rs.logger.DebugContext(v.ctx, "field is not an observed field", "field", n.Field(), "value", n.Value())
		return stream.Unknown(n), nil
	}

	req := v.request(n.Field())
	req.Kind = stream.LookupTerm
	req.Value = n.Value()
	return v.scan(req, n), nil
}

func (v *visitor) visitRegex(n *expr.Node) (stream.IndexStream, error) {
	if n.Field() == expr.DatatypeField {
		return stream.NotIndexed(n), nil
	}
	if unOrNotFielded(n) {
		return stream.NoData(n), nil
	}

	st, err := v.fieldStatus(n.Field())
	if err != nil {
		return nil, planError("metadata", n, err)
	}
	switch st {
	case fieldUnindexed:
		return stream.NotIndexed(n), nil
	case fieldUnknown:
		return stream.Unknown(n), nil
	}

	prefix, err := expr.LeadingLiteral(n.Value())
	if err != nil {
		return nil, planError("regex", n, err)
	}
	if prefix == "" {
		v.rs.logger.DebugContext(v.ctx, "regex has no leading literal, requires a full field index scan",
			"field", n.Field(), "pattern", n.Value())
		return v.exceededValue(expr.Mark(expr.ExceededValueThreshold, n))
	}

	req := v.request(n.Field())
	req.Kind = stream.LookupPattern
	req.Value = n.Value()
	req.Lower = prefix
	req.Upper = expr.PrefixUpperBound(prefix)
	req.Aggregation.MaxValues = v.rs.cfg.MaxValueExpansion
	if req.RejectExceeded, err = v.rejectExceeded(n); err != nil {
		return nil, planError("metadata", n, err)
	}
	return v.scan(req, n), nil
}

// visitBound handles a lower or upper bound that was not paired into a
// bounded range.
func (v *visitor) visitBound(n, parent *expr.Node) (stream.IndexStream, error) {
	if unOrNotFielded(n) {
		return stream.NoData(n), nil
	}
	unindexed, err := v.anyUnindexed(n)
	if err != nil {
		return nil, planError("metadata", n, err)
	}
	if unindexed {
		return stream.NotIndexed(n), nil
	}
	if withinBoundedRange(parent) {
		return stream.NoData(n), nil
	}
	return stream.DelayedExpression(n), nil
}

func (v *visitor) visitAssign(n *expr.Node) stream.IndexStream {
	if n.Field() != expr.ShardDayHint {
		return nil
	}
	var keys []string
	for k := range strings.SplitSeq(n.Value(), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return stream.NoData(n)
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	tuples := make([]stream.Tuple, len(keys))
	for i, k := range keys {
		tuples[i] = stream.Tuple{Key: k, Info: stream.UnknownInfo(expr.Assign(expr.ShardDayHint, k))}
	}
	return stream.WithData(tuples, n)
}

func (v *visitor) visitMarker(n *expr.Node) (stream.IndexStream, error) {
	switch n.Marker() {
	case expr.ExceededTermThreshold:
		return stream.ExceededTerm(n, v.days), nil
	case expr.ExceededValueThreshold, expr.ExceededOrThreshold:
		return v.exceededValue(n)
	case expr.Delayed, expr.EvaluationOnly, expr.IndexHole:
		return stream.Marked(n), nil
	case expr.BoundedRange:
		return v.visitRange(n)
	}
	return nil, planError("visit", n, &expr.ShapeError{Node: n, Reason: "unknown marker"})
}

func (v *visitor) visitRange(n *expr.Node) (stream.IndexStream, error) {
	rng, ok := expr.RangeOf(n)
	if !ok {
		return nil, planError("visit", n, &expr.ShapeError{Node: n, Reason: "bounded range without exactly one lower and one upper bound"})
	}
	if rng.Field == expr.AnyField || rng.Field == expr.NoField {
		return stream.NoData(n), nil
	}

	st, err := v.fieldStatus(rng.Field)
	if err != nil {
		return nil, planError("metadata", n, err)
	}
	switch st {
	case fieldUnindexed:
		return stream.NotIndexed(n), nil
	case fieldUnknown:
		return stream.Unknown(n), nil
	}

	req := v.request(rng.Field)
	req.Kind = stream.LookupRange
	req.Lower, req.Upper = rng.Lower, rng.Upper
	req.LowerInclusive, req.UpperInclusive = rng.LowerInclusive, rng.UpperInclusive
	req.Aggregation.MaxValues = v.rs.cfg.MaxValueExpansion
	if req.RejectExceeded, err = v.rejectExceeded(n); err != nil {
		return nil, planError("metadata", n, err)
	}
	return v.scan(req, n), nil
}

// exceededValue returns the per-day full scan stream for n, unless n covers
// an index-only field that cannot be scanned that way.
func (v *visitor) exceededValue(n *expr.Node) (stream.IndexStream, error) {
	reject, err := v.rejectExceeded(n)
	if err != nil {
		return nil, planError("metadata", n, err)
	}
	if reject {
		return nil, planError("visit", n, ErrValueThresholdUnsupported)
	}
	v.rs.logger.DebugContext(v.ctx, "subtree requires a full field index scan", "node", n.String())
	return stream.ExceededValue(n, v.days), nil
}

func (v *visitor) request(field string) stream.ScanRequest {
	cfg := v.rs.cfg
	return stream.ScanRequest{
		QueryID:        cfg.ID.String(),
		Table:          cfg.IndexTable,
		Field:          field,
		BeginDay:       cfg.BeginDate,
		EndDay:         cfg.EndDate,
		Datatypes:      cfg.Datatypes,
		Authorizations: cfg.Authorizations,
		Aggregation: stream.Aggregation{
			CollapseUIDs: cfg.CollapseUIDs,
			Condense:     cfg.CondenseUIDs,
			ShardsPerDay: cfg.ShardsPerDayThreshold,
			MaxUIDs:      cfg.MaxUIDsPerShard,
		},
		BatchSize: cfg.ScanBatchSize,
		Prefetch:  v.rs.prefetch,
	}
}

func (v *visitor) scan(req stream.ScanRequest, n *expr.Node) stream.IndexStream {
	v.rs.logger.DebugContext(v.ctx, "building delayed scanner", "field", req.Field, "node", n.String())
	return stream.Scan(v.rs.sessions, req, n, v.days)
}

// fieldStatus classifies field for the configured datatypes. A missing
// metadata table makes every field unknown.
func (v *visitor) fieldStatus(field string) (fieldStatus, error) {
	if st, ok := v.status[field]; ok {
		return st, nil
	}
	st, err := v.lookupStatus(field)
	if errors.Is(err, metadata.ErrTableNotFound) {
		v.rs.logger.DebugContext(v.ctx, "metadata table not found", "field", field)
		st, err = fieldUnknown, nil
	}
	if err != nil {
		return fieldUnknown, err
	}
	v.status[field] = st
	return st, nil
}

func (v *visitor) lookupStatus(field string) (fieldStatus, error) {
	indexed, err := v.rs.helper.IsIndexed(v.ctx, field, v.rs.cfg.Datatypes)
	if err != nil {
		return fieldUnknown, err
	}
	if indexed {
		return fieldIndexed, nil
	}
	if !v.hasAll {
		all, err := v.rs.helper.AllFields(v.ctx, v.rs.cfg.Datatypes)
		if err != nil {
			return fieldUnknown, err
		}
		v.all, v.hasAll = all, true
	}
	if slices.Contains(v.all, field) {
		return fieldUnindexed, nil
	}
	return fieldUnknown, nil
}

// anyUnindexed reports whether n references a field that is not indexed.
func (v *visitor) anyUnindexed(n *expr.Node) (bool, error) {
	for _, f := range expr.Identifiers(n) {
		if f == expr.AnyField || f == expr.NoField {
			continue
		}
		st, err := v.fieldStatus(f)
		if err != nil {
			return false, err
		}
		if st != fieldIndexed {
			return true, nil
		}
	}
	return false, nil
}

// rejectExceeded reports whether n may not fall back to per-day scans when
// it expands to too many values.
func (v *visitor) rejectExceeded(n *expr.Node) (bool, error) {
	if v.rs.cfg.CanHandleExceededValueThreshold {
		return false, nil
	}
	return v.containsIndexOnly(n)
}

func (v *visitor) containsIndexOnly(n *expr.Node) (bool, error) {
	for _, f := range expr.Identifiers(n) {
		ok, err := v.rs.helper.IsIndexOnly(v.ctx, f, v.rs.cfg.Datatypes)
		if errors.Is(err, metadata.ErrTableNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func unOrNotFielded(n *expr.Node) bool {
	for _, f := range expr.Identifiers(n) {
		if f == expr.AnyField || f == expr.NoField {
			return true
		}
	}
	return false
}

// withinBoundedRange reports whether parent is a conjunction made of exactly
// one lower and one upper bound on the same field.
func withinBoundedRange(parent *expr.Node) bool {
	if parent == nil || parent.Kind() != expr.KindAnd {
		return false
	}
	ranges, others := expr.BoundedRanges(parent, nil)
	return len(ranges) == 1 && len(others) == 0
}
