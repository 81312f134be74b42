package expr

import (
	"fmt"
	"slices"
)

// Kind identifies the type of a node. The set is closed.
type Kind uint8

const (
	KindAnd Kind = iota
	KindOr
	KindNot
	KindEq
	KindNe
	KindLt
	KindLe
	KindGt
	KindGe
	KindRegex
	KindNotRegex
	KindFunction
	KindTrue
	KindRef
	KindMarker
	KindAssign
)

var kindNames = [...]string{
	KindAnd:      "and",
	KindOr:       "or",
	KindNot:      "not",
	KindEq:       "eq",
	KindNe:       "ne",
	KindLt:       "lt",
	KindLe:       "le",
	KindGt:       "gt",
	KindGe:       "ge",
	KindRegex:    "regex",
	KindNotRegex: "not_regex",
	KindFunction: "function",
	KindTrue:     "true",
	KindRef:      "ref",
	KindMarker:   "marker",
	KindAssign:   "assign",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind returns the kind with the given name.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("expr: unknown node kind %q", s)
}

// IsComparison reports whether the kind compares a field against a literal.
func (k Kind) IsComparison() bool {
	switch k {
	case KindEq, KindNe, KindLt, KindLe, KindGt, KindGe, KindRegex, KindNotRegex:
		return true
	}
	return false
}

// Well-known identifiers and hints.
const (
	// AnyField matches a literal against every indexed field.
	AnyField = "_ANYFIELD_"
	// NoField is produced when an any-field expansion found nothing.
	NoField = "_NOFIELD_"
	// ShardDayHint is the assignment field carrying an explicit shard/day list.
	ShardDayHint = "SHARDS_AND_DAYS"
	// DatatypeField is the pseudo field holding the record type.
	DatatypeField = "EVENT_DATATYPE"
)

// Node is an immutable predicate tree node.
//
// The zero value is not a valid node; use the constructors.
type Node struct {
	kind     Kind
	marker   MarkerType
	field    string
	value    string
	null     bool
	name     string
	args     []string
	nfields  int
	children []*Node
}

func newNode(kind Kind, children []*Node) *Node {
	return &Node{kind: kind, children: children}
}

// And returns the conjunction of the given children.
func And(children ...*Node) *Node { return newNode(KindAnd, slices.Clone(children)) }

// Or returns the disjunction of the given children.
func Or(children ...*Node) *Node { return newNode(KindOr, slices.Clone(children)) }

// Not negates child.
func Not(child *Node) *Node { return newNode(KindNot, []*Node{child}) }

// Ref wraps child in parentheses.
func Ref(child *Node) *Node { return newNode(KindRef, []*Node{child}) }

// Mark wraps source in a query-property marker.
func Mark(m MarkerType, source *Node) *Node {
	n := newNode(KindMarker, []*Node{source})
	n.marker = m
	return n
}

// True is the constant true predicate.
func True() *Node { return &Node{kind: KindTrue} }

func compare(kind Kind, field, value string) *Node {
	return &Node{kind: kind, field: field, value: value}
}

// Eq returns field == value.
func Eq(field, value string) *Node { return compare(KindEq, field, value) }

// EqNull returns field == null.
func EqNull(field string) *Node { return &Node{kind: KindEq, field: field, null: true} }

// Ne returns field != value.
func Ne(field, value string) *Node { return compare(KindNe, field, value) }

// Lt returns field < value.
func Lt(field, value string) *Node { return compare(KindLt, field, value) }

// Le returns field <= value.
func Le(field, value string) *Node { return compare(KindLe, field, value) }

// Gt returns field > value.
func Gt(field, value string) *Node { return compare(KindGt, field, value) }

// Ge returns field >= value.
func Ge(field, value string) *Node { return compare(KindGe, field, value) }

// Regex returns field =~ pattern.
func Regex(field, pattern string) *Node { return compare(KindRegex, field, pattern) }

// NotRegex returns field !~ pattern.
func NotRegex(field, pattern string) *Node { return compare(KindNotRegex, field, pattern) }

// Assign returns the assignment hint field = value.
func Assign(field, value string) *Node { return compare(KindAssign, field, value) }

// Function returns a call to the named function. Arguments are kept verbatim;
// fields lists the identifiers the function reads.
func Function(name string, fields []string, args ...string) *Node {
	return &Node{
		kind: KindFunction,
		name: name,
		args:    append(slices.Clone(fields), args...),
		nfields: len(fields),
	}
}

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Marker returns the marker type of a KindMarker node, MarkerNone otherwise.
func (n *Node) Marker() MarkerType { return n.marker }

// Field returns the identifier of a comparison or assignment.
func (n *Node) Field() string { return n.field }

// Value returns the literal of a comparison or assignment.
func (n *Node) Value() string { return n.value }

// IsNull reports whether the literal is null.
func (n *Node) IsNull() bool { return n.null }

// Name returns the function name.
func (n *Node) Name() string { return n.name }

// Args returns the function arguments. The slice must not be modified.
func (n *Node) Args() []string { return n.args }

// FunctionFields returns the identifiers read by a function call.
func (n *Node) FunctionFields() []string {
	return n.args[:n.nfields]
}

// Children returns the child nodes. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// NumChildren returns the number of children.
func (n *Node) NumChildren() int { return len(n.children) }

// Child returns the i-th child.
func (n *Node) Child(i int) *Node { return n.children[i] }

// Source returns the only child of a Ref, Not or Marker node.
func (n *Node) Source() *Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.children[0]
}

// WithChildren returns a copy of n with the given children. n is unchanged.
func (n *Node) WithChildren(children ...*Node) *Node {
	c := *n
	c.children = slices.Clone(children)
	return &c
}

// IsMarked reports whether n, ignoring Ref wrappers, is a marker of type m.
func IsMarked(n *Node, m MarkerType) bool {
	n = Unwrap(n)
	return n != nil && n.kind == KindMarker && n.marker == m
}

// Unwrap strips any Ref wrappers around n.
func Unwrap(n *Node) *Node {
	for n != nil && n.kind == KindRef && len(n.children) == 1 {
		n = n.children[0]
	}
	return n
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b *Node) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.kind != b.kind || a.marker != b.marker || a.field != b.field ||
		a.value != b.value || a.null != b.null || a.name != b.name || a.nfields != b.nfields ||
		!slices.Equal(a.args, b.args) || len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if !Equal(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}
