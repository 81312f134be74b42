package expr

import (
	"fmt"
	"sort"
)

// Depth returns the depth of the tree rooted at n, counting the root as 1.
// Descent stops as soon as the depth exceeds limit, so the result is at most
// limit+1 for deep trees.
func Depth(n *Node, limit int) int {
	return depth(n, 1, limit)
}

func depth(n *Node, d, limit int) int {
	if d > limit {
		return d
	}
	deepest := d
	for _, c := range n.children {
		if cd := depth(c, d+1, limit); cd > deepest {
			deepest = cd
			if deepest > limit {
				break
			}
		}
	}
	return deepest
}

// Validate checks the arity of every node in the tree.
func Validate(n *Node) error {
	if n == nil {
		return &ShapeError{Node: &Node{kind: KindTrue}, Reason: "nil node"}
	}
	switch n.kind {
	case KindNot, KindRef, KindMarker:
		if len(n.children) != 1 {
			return &ShapeError{Node: n, Reason: fmt.Sprintf("expected exactly one child, got %d", len(n.children))}
		}
		if n.kind == KindMarker && n.marker == MarkerNone {
			return &ShapeError{Node: n, Reason: "marker without type"}
		}
	case KindAnd, KindOr:
		if len(n.children) == 0 {
			return &ShapeError{Node: n, Reason: "expected at least one child"}
		}
	default:
		if len(n.children) != 0 {
			return &ShapeError{Node: n, Reason: fmt.Sprintf("expected no children, got %d", len(n.children))}
		}
		if (n.kind.IsComparison() || n.kind == KindAssign) && n.field == "" {
			return &ShapeError{Node: n, Reason: "missing identifier"}
		}
	}
	for _, c := range n.children {
		if c == nil {
			return &ShapeError{Node: n, Reason: "nil child"}
		}
		if err := Validate(c); err != nil {
			return err
		}
	}
	return nil
}

// Flatten merges nested conjunctions into their parent conjunction, and
// likewise for disjunctions, looking through parentheses. Subtrees that need
// no change are shared with the input.
func Flatten(n *Node) *Node {
	if len(n.children) == 0 {
		return n
	}
	merge := n.kind == KindAnd || n.kind == KindOr
	out := make([]*Node, 0, len(n.children))
	changed := false
	for _, c := range n.children {
		fc := Flatten(c)
		if fc != c {
			changed = true
		}
		if inner := Unwrap(fc); merge && inner.kind == n.kind {
			out = append(out, inner.children...)
			changed = true
			continue
		}
		out = append(out, fc)
	}
	if !changed {
		return n
	}
	return n.WithChildren(out...)
}

// Conjoin returns the conjunction of the non-nil nodes, flattening nested
// conjunctions and dropping repeated terms. It returns nil for no nodes and
// the node itself for one.
func Conjoin(nodes ...*Node) *Node { return join(KindAnd, nodes) }

// Disjoin is the disjunctive counterpart of Conjoin.
func Disjoin(nodes ...*Node) *Node { return join(KindOr, nodes) }

// join drops terms equal to an earlier one.
func join(kind Kind, nodes []*Node) *Node {
	var terms []*Node
	add := func(n *Node) {
		for _, t := range terms {
			if Equal(t, n) {
				return
			}
		}
		terms = append(terms, n)
	}
	for _, n := range nodes {
		switch {
		case n == nil:
		case n.kind == kind:
			for _, c := range n.children {
				add(c)
			}
		default:
			add(n)
		}
	}
	switch len(terms) {
	case 0:
		return nil
	case 1:
		return terms[0]
	}
	return newNode(kind, terms)
}

// Identifiers returns the sorted, distinct field names referenced by n.
func Identifiers(n *Node) []string {
	seen := map[string]struct{}{}
	collectIdentifiers(n, seen)
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func collectIdentifiers(n *Node, seen map[string]struct{}) {
	switch {
	case n.kind == KindFunction:
		for _, f := range n.FunctionFields() {
			seen[f] = struct{}{}
		}
	case n.field != "":
		seen[n.field] = struct{}{}
	}
	for _, c := range n.children {
		collectIdentifiers(c, seen)
	}
}

// Leaves returns every node without children, in tree order.
func Leaves(n *Node) []*Node {
	if len(n.children) == 0 {
		return []*Node{n}
	}
	var out []*Node
	for _, c := range n.children {
		out = append(out, Leaves(c)...)
	}
	return out
}
