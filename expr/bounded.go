package expr

// Range is a bounded range over a single field, built from one lower and one
// upper comparison that appear side by side in a conjunction.
type Range struct {
	Field          string
	Lower, Upper   string
	LowerInclusive bool
	UpperInclusive bool
	LowerNode      *Node
	UpperNode      *Node
}

// Node returns the bounded-range marker for r.
func (r Range) Node() *Node {
	return Mark(BoundedRange, And(r.LowerNode, r.UpperNode))
}

// Contains reports whether v lies within r.
func (r Range) Contains(v string) bool {
	if v < r.Lower || (v == r.Lower && !r.LowerInclusive) {
		return false
	}
	return v < r.Upper || (v == r.Upper && r.UpperInclusive)
}

func isLowerBound(n *Node) bool {
	return !n.null && (n.kind == KindGe || n.kind == KindGt)
}

func isUpperBound(n *Node) bool {
	return !n.null && (n.kind == KindLe || n.kind == KindLt)
}

// BoundedRanges pairs the lower and upper bound comparisons among the direct
// children of and, per field. Fields are offered to accept first; comparisons
// on rejected fields and bounds without a partner are returned in others
// together with every remaining child, in their original order.
func BoundedRanges(and *Node, accept func(field string) bool) (ranges []Range, others []*Node) {
	type bounds struct{ lower, upper []*Node }
	var (
		fields []string
		byName = map[string]*bounds{}
		paired = map[*Node]bool{}
	)
	for _, c := range and.children {
		u := Unwrap(c)
		if !isLowerBound(u) && !isUpperBound(u) {
			continue
		}
		if accept != nil && !accept(u.field) {
			continue
		}
		b, ok := byName[u.field]
		if !ok {
			b = &bounds{}
			byName[u.field] = b
			fields = append(fields, u.field)
		}
		if isLowerBound(u) {
			b.lower = append(b.lower, c)
		} else {
			b.upper = append(b.upper, c)
		}
	}
	for _, f := range fields {
		b := byName[f]
		for i := 0; i < len(b.lower) && i < len(b.upper); i++ {
			lo, hi := Unwrap(b.lower[i]), Unwrap(b.upper[i])
			ranges = append(ranges, Range{
				Field:          f,
				Lower:          lo.value,
				Upper:          hi.value,
				LowerInclusive: lo.kind == KindGe,
				UpperInclusive: hi.kind == KindLe,
				LowerNode:      b.lower[i],
				UpperNode:      b.upper[i],
			})
			paired[b.lower[i]] = true
			paired[b.upper[i]] = true
		}
	}
	for _, c := range and.children {
		if !paired[c] {
			others = append(others, c)
		}
	}
	return ranges, others
}

// RangeOf extracts the range wrapped by a bounded-range marker.
func RangeOf(n *Node) (Range, bool) {
	n = Unwrap(n)
	if n == nil || n.kind != KindMarker || n.marker != BoundedRange {
		return Range{}, false
	}
	src := Unwrap(n.Source())
	if src == nil || src.kind != KindAnd {
		return Range{}, false
	}
	ranges, others := BoundedRanges(src, nil)
	if len(ranges) != 1 || len(others) != 0 {
		return Range{}, false
	}
	return ranges[0], true
}
