package expr

import "strings"

var operators = map[Kind]string{
	KindEq:       "==",
	KindNe:       "!=",
	KindLt:       "<",
	KindLe:       "<=",
	KindGt:       ">",
	KindGe:       ">=",
	KindRegex:    "=~",
	KindNotRegex: "!~",
	KindAssign:   "=",
}

// String renders n as a residual predicate for the record evaluator.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	switch n.kind {
	case KindAnd, KindOr:
		sep := " && "
		if n.kind == KindOr {
			sep = " || "
		}
		for i, c := range n.children {
			if i > 0 {
				b.WriteString(sep)
			}
			if c.kind == KindAnd || c.kind == KindOr {
				b.WriteByte('(')
				c.write(b)
				b.WriteByte(')')
			} else {
				c.write(b)
			}
		}
	case KindNot:
		b.WriteString("!(")
		n.writeSource(b)
		b.WriteByte(')')
	case KindRef:
		b.WriteByte('(')
		n.writeSource(b)
		b.WriteByte(')')
	case KindMarker:
		b.WriteString("((")
		b.WriteString(n.marker.Label())
		b.WriteString(" = true) && (")
		n.writeSource(b)
		b.WriteString("))")
	case KindTrue:
		b.WriteString("true")
	case KindFunction:
		b.WriteString(n.name)
		b.WriteByte('(')
		for i, a := range n.args {
			if i > 0 {
				b.WriteString(", ")
			}
			if i < n.nfields {
				b.WriteString(a)
			} else {
				writeLiteral(b, a)
			}
		}
		b.WriteByte(')')
	default:
		b.WriteString(n.field)
		b.WriteByte(' ')
		b.WriteString(operators[n.kind])
		b.WriteByte(' ')
		if n.null {
			b.WriteString("null")
		} else {
			writeLiteral(b, n.value)
		}
	}
}

func (n *Node) writeSource(b *strings.Builder) {
	if src := n.Source(); src != nil {
		src.write(b)
	}
}

func writeLiteral(b *strings.Builder, s string) {
	b.WriteByte('\'')
	for _, r := range s {
		if r == '\'' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
}
