package rangestream

import (
	"context"
	"iter"
	"strconv"

	"github.com/hupe1980/rangestream/expr"
	"github.com/hupe1980/rangestream/kv"
	"github.com/hupe1980/rangestream/stream"
)

// QueryPlan is one unit of work for the record evaluator: the ranges of the
// shard table to scan and the residual predicate records found there must
// satisfy.
type QueryPlan struct {
	Ranges []kv.Range `json:"ranges"`
	Tree   *expr.Node `json:"-" msgpack:"-"`
	Query  string     `json:"query"`
}

// Plans returns the scan plans of the planned tree, in ascending shard order.
//
// The sequence can be consumed once; later calls yield nothing. Iteration
// stops at the first error, which is yielded once. An INITIALIZED root is
// resolved first. Roots the index cannot constrain yield a single plan over
// the whole date range when full table scans are enabled and
// ErrFullTableScanRequired otherwise.
func (rs *RangeStream) Plans(ctx context.Context) iter.Seq2[QueryPlan, error] {
	return func(yield func(QueryPlan, error) bool) {
		if rs.consumed || rs.root == nil {
			return
		}
		rs.consumed = true
		if rs.closed {
			yield(QueryPlan{}, ErrClosed)
			return
		}

		emitted, pruned, err := rs.plans(ctx, func(p QueryPlan) bool {
			return yield(p, nil)
		})
		rs.logger.LogPlans(ctx, emitted, pruned, err)
		if err != nil {
			yield(QueryPlan{}, err)
		}
	}
}

func (rs *RangeStream) plans(ctx context.Context, yield func(QueryPlan) bool) (emitted, pruned int, err error) {
	if err := rs.resolveRoot(ctx); err != nil {
		return 0, 0, err
	}

	switch rs.context {
	case stream.Absent:
		return 0, 0, nil
	case stream.Unindexed, stream.UnknownField, stream.Initialized:
		return rs.fullTableScan(ctx, yield)
	case stream.Ignored:
		if _, ok, err := rs.root.Peek(ctx); err != nil {
			return 0, 0, planError("plans", nil, err)
		} else if !ok {
			return rs.fullTableScan(ctx, yield)
		}
	}

	minimize := rs.context.Exceeded()
	root := rs.root.CurrentNode()
	for {
		t, ok, err := rs.root.Next(ctx)
		if err != nil {
			return emitted, pruned, planError("plans", nil, err)
		}
		if !ok {
			return emitted, pruned, nil
		}

		p := tupleToPlan(t, root)
		if minimize {
			p.Ranges = minimizeRanges(p.Ranges)
		}
		if len(p.Ranges) == 0 {
			pruned++
			rs.opts.metricsCollector.RecordPlanPruned()
			continue
		}
		emitted++
		rs.opts.metricsCollector.RecordPlan(len(p.Ranges))
		if !yield(p) {
			return emitted, pruned, nil
		}
	}
}

// resolveRoot initializes a root that was never pulled, releases the lookup
// pool and records the final context.
func (rs *RangeStream) resolveRoot(ctx context.Context) error {
	defer rs.lookups.Close()

	if rs.root.Context() == stream.Initialized {
		if _, err := stream.Initialize(ctx, rs.lookups, []stream.IndexStream{rs.root}); err != nil {
			return planError("initialize", rs.root.CurrentNode(), err)
		}
	}
	rs.context = rs.root.Context()
	if rs.context == stream.Variable {
		rs.context = stream.Present
	}
	rs.logger.LogStreamPlans(ctx, rs.context, rs.root.ContextDebug(), nil)
	return nil
}

func (rs *RangeStream) fullTableScan(ctx context.Context, yield func(QueryPlan) bool) (int, int, error) {
	if !rs.cfg.FullTableScanEnabled {
		return 0, 0, planError("plans", rs.root.CurrentNode(), ErrFullTableScanRequired)
	}
	rs.logger.LogFullTableScan(ctx, rs.context, rs.cfg.BeginDate, rs.cfg.EndDate)

	tree := rs.root.CurrentNode()
	p := QueryPlan{
		Ranges: []kv.Range{{
			Start: kv.Key{Row: rs.cfg.BeginDate + "_"},
			End:   kv.Key{Row: rs.cfg.EndDate + "`"},
		}},
		Tree:  tree,
		Query: tree.String(),
	}
	rs.opts.metricsCollector.RecordPlan(1)
	yield(p)
	return 1, 0, nil
}

// tupleToPlan converts one stream tuple into a plan. A day becomes a range
// over all of its shards, a shard without record ids a range over the shard
// and a shard with record ids one range per record.
func tupleToPlan(t stream.Tuple, root *expr.Node) QueryPlan {
	tree := root
	if n := t.Info.Node(); n != nil {
		tree = n
	}
	p := QueryPlan{Tree: tree, Query: tree.String()}

	switch uids := t.Info.UIDs(); {
	case stream.IsDay(t.Key):
		p.Ranges = []kv.Range{dayRange(t.Key)}
	case uids == nil:
		p.Ranges = []kv.Range{shardRange(t.Key)}
	default:
		p.Ranges = make([]kv.Range, 0, uids.GetCardinality())
		it := uids.Iterator()
		for it.HasNext() {
			p.Ranges = append(p.Ranges, documentRange(t.Key, it.Next()))
		}
	}
	return p
}

func dayRange(day string) kv.Range {
	return kv.Range{Start: kv.Key{Row: day + "_"}, End: kv.Key{Row: day + "`"}}
}

func shardRange(shard string) kv.Range {
	return kv.Range{Start: kv.Key{Row: shard}, End: kv.Key{Row: shard + "\x00"}}
}

func documentRange(shard string, uid uint64) kv.Range {
	id := strconv.FormatUint(uid, 10)
	return kv.Range{
		Start: kv.Key{Row: shard, Family: id},
		End:   kv.Key{Row: shard, Family: id + "\x00"},
	}
}

// isDocumentRange reports whether r addresses a single record.
func isDocumentRange(r kv.Range) bool {
	return r.Start.Family != ""
}

// minimizeRanges widens record ranges to their shard, dropping duplicates.
func minimizeRanges(ranges []kv.Range) []kv.Range {
	out := make([]kv.Range, 0, len(ranges))
	seen := make(map[kv.Range]struct{}, len(ranges))
	for _, r := range ranges {
		if isDocumentRange(r) {
			r = shardRange(r.Start.Row)
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
