package xpath

// Inspect traverses expr depth first, calling fn for each node. Children of
// a node are skipped when fn returns false.
func Inspect(expr Expr, fn func(Expr) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	switch e := expr.(type) {
	case *Call:
		for _, a := range e.Args {
			Inspect(a, fn)
		}
	case negate:
		Inspect(e.expr, fn)
	case binary:
		Inspect(e.left, fn)
		Inspect(e.right, fn)
	case union:
		Inspect(e.left, fn)
		Inspect(e.right, fn)
	case filter:
		Inspect(e.expr, fn)
		for _, p := range e.preds {
			Inspect(p, fn)
		}
	case path:
		Inspect(e.base, fn)
		for _, s := range e.steps {
			for _, p := range s.preds {
				Inspect(p, fn)
			}
		}
	}
}

// Variables returns every variable reference found in the given
// expressions.
func Variables(exprs ...Expr) []*VarRef {
	var list []*VarRef
	for _, e := range exprs {
		Inspect(e, func(e Expr) bool {
			if v, ok := e.(*VarRef); ok {
				list = append(list, v)
			}
			return true
		})
	}
	return list
}

// Calls returns every function call found in the given expressions.
func Calls(exprs ...Expr) []*Call {
	var list []*Call
	for _, e := range exprs {
		Inspect(e, func(e Expr) bool {
			if c, ok := e.(*Call); ok {
				list = append(list, c)
			}
			return true
		})
	}
	return list
}
