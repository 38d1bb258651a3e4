package ast

// WalkExpr calls visit on e and every expression nested inside it,
// depth-first. visit may mutate the node in place (e.g. to bind a
// Placeholder) but must not replace it structurally.
func WalkExpr(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *BinaryOp:
		WalkExpr(n.Left, visit)
		WalkExpr(n.Right, visit)
	case *UnaryOp:
		WalkExpr(n.Operand, visit)
	case *FuncCall:
		for _, a := range n.Args {
			WalkExpr(a, visit)
		}
	case *WindowFunc:
		WalkExpr(n.Func, visit)
		for _, p := range n.PartitionBy {
			WalkExpr(p, visit)
		}
		for _, o := range n.OrderBy {
			WalkExpr(o.Expr, visit)
		}
	case *InExpr:
		WalkExpr(n.Target, visit)
		for _, v := range n.List {
			WalkExpr(v, visit)
		}
	case *IsNullExpr:
		WalkExpr(n.Target, visit)
	case *LikeExpr:
		WalkExpr(n.Target, visit)
		WalkExpr(n.Pattern, visit)
	case *BetweenExpr:
		WalkExpr(n.Target, visit)
		WalkExpr(n.Low, visit)
		WalkExpr(n.High, visit)
	case *QuantifiedExpr:
		WalkExpr(n.Target, visit)
	case *CaseExpr:
		if n.Operand != nil {
			WalkExpr(n.Operand, visit)
		}
		for _, w := range n.Whens {
			WalkExpr(w.Cond, visit)
			WalkExpr(w.Then, visit)
		}
		if n.Else != nil {
			WalkExpr(n.Else, visit)
		}
	}
}

// WalkStatementExprs visits every top-level expression reachable from a
// statement without descending into nested subqueries' own WalkStatementExprs
// (callers that need full recursion call it again on nested Statements).
func WalkStatementExprs(s Statement, visit func(Expr)) {
	switch n := s.(type) {
	case *SelectStatement:
		for _, c := range n.Columns {
			WalkExpr(c.Expr, visit)
		}
		for _, j := range n.Joins {
			if j.On != nil {
				WalkExpr(j.On, visit)
			}
		}
		if n.Where != nil {
			WalkExpr(n.Where, visit)
		}
		for _, g := range n.GroupBy {
			WalkExpr(g, visit)
		}
		if n.Having != nil {
			WalkExpr(n.Having, visit)
		}
		for _, o := range n.OrderBy {
			if o.Expr != nil {
				WalkExpr(o.Expr, visit)
			}
		}
		if n.Limit != nil {
			WalkExpr(n.Limit, visit)
		}
		if n.Offset != nil {
			WalkExpr(n.Offset, visit)
		}
	case *WithStatement:
		WalkStatementExprs(n.Query, visit)
	case *UnionNode:
		WalkStatementExprs(n.Left, visit)
		WalkStatementExprs(n.Right, visit)
	case *InsertStatement:
		for _, row := range n.Rows {
			for _, e := range row {
				WalkExpr(e, visit)
			}
		}
		if n.Select != nil {
			WalkStatementExprs(n.Select, visit)
		}
	case *UpdateStatement:
		for _, a := range n.Set {
			WalkExpr(a.Value, visit)
		}
		if n.Where != nil {
			WalkExpr(n.Where, visit)
		}
	case *DeleteStatement:
		if n.Where != nil {
			WalkExpr(n.Where, visit)
		}
	}
}

// CollectPlaceholders returns the Placeholder nodes among the expressions
// WalkStatementExprs visits in s, in the order a left-to-right scan finds
// them (positional binding order). Placeholders inside nested subqueries,
// derived tables in FROM and CTE bodies are not collected.
func CollectPlaceholders(s Statement) []*Placeholder {
	var out []*Placeholder
	WalkStatementExprs(s, func(e Expr) {
		if p, ok := e.(*Placeholder); ok {
			out = append(out, p)
		}
	})
	return out
}
