package expr

import "fmt"

// ShapeError reports a node whose structure does not match its kind.
type ShapeError struct {
	Node   *Node
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("expr: invalid %s node %q: %s", e.Node.kind, e.Node.String(), e.Reason)
}
