// Package expr models the boolean predicate trees the planner consumes.
//
// Trees are built from immutable *Node values. A node never points at its
// parent, so any rewrite produces new nodes along the changed path and shares
// every untouched subtree with the input (copy-on-write):
//
//	tree := expr.And(
//	    expr.Eq("COLOR", "red"),
//	    expr.Ref(expr.Or(expr.Eq("SHAPE", "round"), expr.Eq("SHAPE", "square"))),
//	)
//	flat := expr.Flatten(tree)
//	fmt.Println(flat) // COLOR == 'red' && (SHAPE == 'round' || SHAPE == 'square')
//
// Query-property markers such as Delayed or IndexHole wrap exactly one source
// subtree and render the way the downstream evaluator expects them:
//
//	((_Hole_ = true) && (COLOR == 'red'))
package expr
