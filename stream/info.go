package stream

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/rangestream/expr"
)

// UIDIntersector combines two concrete record-id sets.
type UIDIntersector interface {
	Intersect(a, b *roaring64.Bitmap) *roaring64.Bitmap
}

// UIDIntersectorFunc adapts a function to UIDIntersector.
type UIDIntersectorFunc func(a, b *roaring64.Bitmap) *roaring64.Bitmap

// Intersect implements UIDIntersector.
func (f UIDIntersectorFunc) Intersect(a, b *roaring64.Bitmap) *roaring64.Bitmap { return f(a, b) }

// DefaultIntersector intersects the sets exactly.
var DefaultIntersector UIDIntersector = UIDIntersectorFunc(roaring64.And)

// IndexInfo summarizes the matches of one subtree within one shard or day.
//
// A summary either enumerates its record ids, or only knows a count. A count
// of -1 means the cardinality is unknown and the whole shard or day must be
// scanned.
type IndexInfo struct {
	count int64
	uids  *roaring64.Bitmap
	node  *expr.Node
}

// NewIndexInfo returns a summary enumerating uids.
func NewIndexInfo(uids *roaring64.Bitmap, node *expr.Node) *IndexInfo {
	return &IndexInfo{count: int64(uids.GetCardinality()), uids: uids, node: node}
}

// CountInfo returns a summary knowing only a count.
func CountInfo(count int64, node *expr.Node) *IndexInfo {
	return &IndexInfo{count: count, node: node}
}

// UnknownInfo returns a summary of unknown cardinality.
func UnknownInfo(node *expr.Node) *IndexInfo {
	return CountInfo(-1, node)
}

// Count returns the number of matches, or -1 when unknown.
func (i *IndexInfo) Count() int64 { return i.count }

// UIDs returns the enumerated record ids, or nil.
func (i *IndexInfo) UIDs() *roaring64.Bitmap { return i.uids }

// Node returns the subtree the summary was computed for.
func (i *IndexInfo) Node() *expr.Node { return i.node }

// Unknown reports whether the cardinality is unknown.
func (i *IndexInfo) Unknown() bool { return i.count < 0 }

// Empty reports whether the summary provably matches nothing.
func (i *IndexInfo) Empty() bool { return i.count == 0 }

// Intersect combines i and o for a conjunction. An enumerated side wins over
// a side that only knows a count, which is treated as matching everything.
func (i *IndexInfo) Intersect(o *IndexInfo, ui UIDIntersector) *IndexInfo {
	if ui == nil {
		ui = DefaultIntersector
	}
	node := expr.Conjoin(i.node, o.node)
	switch {
	case i.uids != nil && o.uids != nil:
		return NewIndexInfo(ui.Intersect(i.uids, o.uids), node)
	case i.uids != nil:
		return &IndexInfo{count: i.count, uids: i.uids, node: node}
	case o.uids != nil:
		return &IndexInfo{count: o.count, uids: o.uids, node: node}
	case i.Unknown() || o.Unknown():
		return &IndexInfo{count: max(i.count, o.count), node: node}
	}
	return &IndexInfo{count: min(i.count, o.count), node: node}
}

// Union combines i and o for a disjunction. Unknown cardinality dominates.
func (i *IndexInfo) Union(o *IndexInfo) *IndexInfo {
	node := expr.Disjoin(i.node, o.node)
	switch {
	case i.Unknown() || o.Unknown():
		return UnknownInfo(node)
	case i.uids != nil && o.uids != nil:
		return NewIndexInfo(roaring64.Or(i.uids, o.uids), node)
	}
	return CountInfo(i.count+o.count, node)
}

func (i *IndexInfo) String() string {
	if i.uids != nil {
		return fmt.Sprintf("{uids:%v}", i.uids.ToArray())
	}
	return fmt.Sprintf("{count:%d}", i.count)
}
