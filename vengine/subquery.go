package vengine

import (
	"context"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/table"
)

// evalSelectLike dispatches any SELECT-shaped statement (plain SELECT, WITH,
// or a set-operation node) to its evaluator, returning a Table plus the
// column order of its projection.
func (e *Engine) evalSelectLike(ctx context.Context, stmt ast.Statement) (table.Table, []string, error) {
	switch n := stmt.(type) {
	case *ast.SelectStatement:
		return e.evalSelect(ctx, n)
	case *ast.WithStatement:
		return e.evalWith(ctx, n)
	case *ast.UnionNode:
		return e.evalUnion(ctx, n)
	}
	return nil, nil, errs.New(errs.UnsupportedFeature, "", "expected a SELECT-like statement, got %T", stmt)
}

// innerAliases collects the table names/aliases visible within sel's own
// FROM/JOIN clauses, used to tell an outer reference apart from a local one
// (spec §4.3.2 EXISTS "finding identifiers ... whose qualifier does not
// match the subquery's table name/alias").
func innerAliases(sel *ast.SelectStatement) map[string]bool {
	out := map[string]bool{}
	add := func(f ast.FromItem) {
		switch t := f.(type) {
		case *ast.TableRef:
			if t.Alias != "" {
				out[t.Alias] = true
			} else {
				out[t.Name] = true
			}
		case *ast.SubqueryRef:
			if t.Alias != "" {
				out[t.Alias] = true
			}
		}
	}
	if sel.From != nil {
		add(sel.From)
	}
	for _, j := range sel.Joins {
		add(j.Right)
	}
	return out
}

// hasOuterRefs reports whether any qualified identifier reachable from sel
// refers outside sel's own FROM scope.
func hasOuterRefs(sel *ast.SelectStatement) bool {
	inner := innerAliases(sel)
	found := false
	ast.WalkStatementExprs(sel, func(e ast.Expr) {
		if found {
			return
		}
		if id, ok := e.(*ast.Identifier); ok {
			if q := id.Qualifier(); q != "" && !inner[q] {
				found = true
			}
		}
	})
	return found
}

// substituteSelect clones sel and replaces every outer-qualified identifier
// with a Literal carrying its value from row (spec §4.3.7 "execute with
// outer-context substitution").
func substituteSelect(sel *ast.SelectStatement, inner map[string]bool, row table.Row) *ast.SelectStatement {
	c := sel.Clone().(*ast.SelectStatement)
	for i := range c.Columns {
		c.Columns[i].Expr = rewriteOuterRefs(c.Columns[i].Expr, inner, row)
	}
	if c.Where != nil {
		c.Where = rewriteOuterRefs(c.Where, inner, row)
	}
	if c.Having != nil {
		c.Having = rewriteOuterRefs(c.Having, inner, row)
	}
	for i := range c.GroupBy {
		c.GroupBy[i] = rewriteOuterRefs(c.GroupBy[i], inner, row)
	}
	for i := range c.Joins {
		if c.Joins[i].On != nil {
			c.Joins[i].On = rewriteOuterRefs(c.Joins[i].On, inner, row)
		}
	}
	for i := range c.OrderBy {
		if c.OrderBy[i].Expr != nil {
			c.OrderBy[i].Expr = rewriteOuterRefs(c.OrderBy[i].Expr, inner, row)
		}
	}
	return c
}

// rewriteOuterRefs walks e, replacing identifiers qualified outside inner
// with literal values pulled from row. Nested subqueries (InExpr.Subquery,
// ExistsExpr.Subquery, SubqueryExpr.Query) keep their own scope and are left
// untouched; a subquery nested inside a correlated one is resolved again,
// independently, the next time it is evaluated.
func rewriteOuterRefs(e ast.Expr, inner map[string]bool, row table.Row) ast.Expr {
	switch n := e.(type) {
	case *ast.Identifier:
		if q := n.Qualifier(); q != "" && !inner[q] {
			if v, ok := lookup(row, nil, n); ok {
				return &ast.Literal{Value: v}
			}
		}
		return n.Clone()
	case *ast.BinaryOp:
		return &ast.BinaryOp{Op: n.Op, Left: rewriteOuterRefs(n.Left, inner, row), Right: rewriteOuterRefs(n.Right, inner, row)}
	case *ast.UnaryOp:
		return &ast.UnaryOp{Op: n.Op, Operand: rewriteOuterRefs(n.Operand, inner, row)}
	case *ast.FuncCall:
		args := make([]ast.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = rewriteOuterRefs(a, inner, row)
		}
		return &ast.FuncCall{Name: n.Name, Distinct: n.Distinct, Args: args}
	case *ast.InExpr:
		c := &ast.InExpr{Target: rewriteOuterRefs(n.Target, inner, row), Not: n.Not, Subquery: n.Subquery}
		for _, v := range n.List {
			c.List = append(c.List, rewriteOuterRefs(v, inner, row))
		}
		return c
	case *ast.IsNullExpr:
		return &ast.IsNullExpr{Target: rewriteOuterRefs(n.Target, inner, row), Not: n.Not}
	case *ast.LikeExpr:
		return &ast.LikeExpr{Target: rewriteOuterRefs(n.Target, inner, row), Pattern: rewriteOuterRefs(n.Pattern, inner, row), Not: n.Not}
	case *ast.BetweenExpr:
		return &ast.BetweenExpr{
			Target: rewriteOuterRefs(n.Target, inner, row),
			Low:    rewriteOuterRefs(n.Low, inner, row),
			High:   rewriteOuterRefs(n.High, inner, row),
			Not:    n.Not,
		}
	case *ast.CaseExpr:
		c := &ast.CaseExpr{}
		if n.Operand != nil {
			c.Operand = rewriteOuterRefs(n.Operand, inner, row)
		}
		if n.Else != nil {
			c.Else = rewriteOuterRefs(n.Else, inner, row)
		}
		for _, w := range n.Whens {
			c.Whens = append(c.Whens, ast.WhenClause{Cond: rewriteOuterRefs(w.Cond, inner, row), Then: rewriteOuterRefs(w.Then, inner, row)})
		}
		return c
	case *ast.QuantifiedExpr:
		return &ast.QuantifiedExpr{Op: n.Op, Target: rewriteOuterRefs(n.Target, inner, row), Quantifier: n.Quantifier, Subquery: n.Subquery}
	default:
		return e.Clone()
	}
}

// evalExists handles correlated and non-correlated EXISTS (spec §4.3.2
// "EXISTS (subquery)"). Each call substitutes outer refs from c.row and
// executes the subquery once; in a WHERE clause the generic row filter
// calls it once per outer row.
func (c *evalCtx) evalExists(n *ast.ExistsExpr) (ast.Value, error) {
	sel, ok := n.Subquery.(*ast.SelectStatement)
	var tbl table.Table
	var err error
	if ok && hasOuterRefs(sel) {
		substituted := substituteSelect(sel, innerAliases(sel), c.row)
		tbl, _, err = c.eng.evalSelect(c.ctx, substituted)
	} else {
		tbl, _, err = c.eng.evalSelectLike(c.ctx, n.Subquery)
	}
	if err != nil {
		return ast.Value{}, err
	}
	_, rows, err := tbl.Rows()
	if err != nil {
		return ast.Value{}, err
	}
	exists := len(rows) > 0
	if n.Not {
		exists = !exists
	}
	return boolVal(exists), nil
}

// evalScalarSubquery executes a scalar subquery in SELECT/WHERE expression
// position, taking the first row's first column (spec §4.3.7).
func (c *evalCtx) evalScalarSubquery(stmt ast.Statement) (ast.Value, error) {
	var tbl table.Table
	var cols []string
	var err error
	if sel, ok := stmt.(*ast.SelectStatement); ok && hasOuterRefs(sel) {
		substituted := substituteSelect(sel, innerAliases(sel), c.row)
		tbl, cols, err = c.eng.evalSelect(c.ctx, substituted)
	} else {
		tbl, cols, err = c.eng.evalSelectLike(c.ctx, stmt)
	}
	if err != nil {
		return ast.Value{}, err
	}
	_, rows, err := tbl.Rows()
	if err != nil {
		return ast.Value{}, err
	}
	if len(rows) == 0 {
		return ast.Null(), nil
	}
	return rows[0][firstOf(cols)], nil
}

// evalQuantified handles `expr op ALL|ANY (subquery)` (spec §3.1
// Quantified).
func (c *evalCtx) evalQuantified(n *ast.QuantifiedExpr) (ast.Value, error) {
	target, err := c.eval(n.Target)
	if err != nil {
		return ast.Value{}, err
	}
	tbl, cols, err := c.eng.evalSelectLike(c.ctx, n.Subquery)
	if err != nil {
		return ast.Value{}, err
	}
	_, rows, err := tbl.Rows()
	if err != nil {
		return ast.Value{}, err
	}
	col := firstOf(cols)
	switch n.Quantifier {
	case "ALL":
		for _, r := range rows {
			res, err := compare(n.Op, target, r[col])
			if err != nil {
				return ast.Value{}, err
			}
			if !truthy(res) {
				return boolVal(false), nil
			}
		}
		return boolVal(true), nil
	case "ANY":
		for _, r := range rows {
			res, err := compare(n.Op, target, r[col])
			if err != nil {
				return ast.Value{}, err
			}
			if truthy(res) {
				return boolVal(true), nil
			}
		}
		return boolVal(false), nil
	}
	return ast.Value{}, errs.New(errs.UnsupportedFeature, n.Quantifier, "unknown quantifier %q", n.Quantifier)
}
