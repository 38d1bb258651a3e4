package query

import (
	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/parser"
)

func col(name string) *ast.Identifier {
	return &ast.Identifier{Parts: []string{name}}
}

func and(left, right ast.Expr) ast.Expr {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	return &ast.BinaryOp{Op: "AND", Left: left, Right: right}
}

// applyWhere mutates stmt's WHERE with f, first wrapping in a barrier if
// stmt is paginated (spec §4.2 pagination-as-barrier rule). Returns the
// (possibly wrapped) SelectStatement whose WHERE was mutated.
func applyWhere(stmt ast.Statement, build func() ast.Expr) ast.Statement {
	wrapped := barrier(stmt)
	s := wrapped.(*ast.SelectStatement)
	s.Where = and(s.Where, build())
	return wrapped
}

// Where parses fragment as an expression, binds params into its
// placeholders, and ANDs it onto the current WHERE (spec §4.2 `where`).
func (q *Query) Where(fragment string, params []ast.Value) (*Query, error) {
	c, stmt, err := q.ensureMutable()
	if err != nil {
		return nil, err
	}
	expr, err := parser.ParseExpressionFragment(fragment)
	if err != nil {
		return nil, err
	}
	if err := bindExprParams(expr, params); err != nil {
		return nil, err
	}
	c.stmt = applyWhere(stmt, func() ast.Expr { return expr })
	return c, nil
}

func bindExprParams(e ast.Expr, params []ast.Value) error {
	pos := 0
	var err error
	ast.WalkExpr(e, func(n ast.Expr) {
		if err != nil {
			return
		}
		p, ok := n.(*ast.Placeholder)
		if !ok || p.Name != "" {
			return
		}
		if pos >= len(params) {
			err = errs.New(errs.NotEnoughParameters, "", "fragment requires more positional parameters than %d supplied", len(params))
			return
		}
		p.Value = params[pos]
		p.Bound = true
		pos++
	})
	return err
}

func cmp(op, column string, v ast.Value) ast.Expr {
	if op == "=" && v.IsNull() {
		return &ast.IsNullExpr{Target: col(column)}
	}
	return &ast.BinaryOp{Op: op, Left: col(column), Right: &ast.Literal{Value: v}}
}

func (q *Query) predicate(build func() ast.Expr) (*Query, error) {
	c, stmt, err := q.ensureMutable()
	if err != nil {
		return nil, err
	}
	c.stmt = applyWhere(stmt, build)
	return c, nil
}

func (q *Query) Eq(column string, v ast.Value) (*Query, error) {
	return q.predicate(func() ast.Expr { return cmp("=", column, v) })
}

func (q *Query) Lt(column string, v ast.Value) (*Query, error) {
	return q.predicate(func() ast.Expr { return cmp("<", column, v) })
}

func (q *Query) Lte(column string, v ast.Value) (*Query, error) {
	return q.predicate(func() ast.Expr { return cmp("<=", column, v) })
}

func (q *Query) Gt(column string, v ast.Value) (*Query, error) {
	return q.predicate(func() ast.Expr { return cmp(">", column, v) })
}

func (q *Query) Gte(column string, v ast.Value) (*Query, error) {
	return q.predicate(func() ast.Expr { return cmp(">=", column, v) })
}

func (q *Query) Like(column, pattern string) (*Query, error) {
	return q.predicate(func() ast.Expr {
		return &ast.LikeExpr{Target: col(column), Pattern: &ast.Literal{Value: ast.Str(pattern)}}
	})
}

// In accepts a value list (spec §4.2 `in`); an empty list becomes a
// predicate matching nothing (`1 = 0`), per "empty ⇒ query that matches
// nothing".
func (q *Query) In(column string, values []ast.Value) (*Query, error) {
	return q.predicate(func() ast.Expr {
		if len(values) == 0 {
			return &ast.BinaryOp{Op: "=", Left: &ast.Literal{Value: ast.Int(1)}, Right: &ast.Literal{Value: ast.Int(0)}}
		}
		lits := make([]ast.Expr, len(values))
		for i, v := range values {
			lits[i] = &ast.Literal{Value: v}
		}
		return &ast.InExpr{Target: col(column), List: lits}
	})
}

// InSubquery embeds other's statement as the IN's subquery (spec §4.2 `in`
// against "another builder... same backend ⇒ embedded subquery"). Marks
// other as shared since its AST is now referenced from two places.
func (q *Query) InSubquery(column string, other *Query) (*Query, error) {
	otherStmt, err := other.resolved()
	if err != nil {
		return nil, err
	}
	other.markShared()
	return q.predicate(func() ast.Expr {
		return &ast.InExpr{Target: col(column), Subquery: otherStmt}
	})
}

// Or requires at least two predicates; each predicate's conjuncts are ANDed
// internally, predicates themselves ORed, the disjunction ANDed into WHERE
// (spec §4.2 `or`).
func (q *Query) Or(predicates ...ast.Expr) (*Query, error) {
	if len(predicates) < 2 {
		return nil, errs.New(errs.UnsupportedFeature, "", "or() requires at least two predicates, got %d", len(predicates))
	}
	return q.predicate(func() ast.Expr {
		disj := predicates[0]
		for _, p := range predicates[1:] {
			disj = &ast.BinaryOp{Op: "OR", Left: disj, Right: p}
		}
		return disj
	})
}

// Order replaces ORDER BY; passing nil items clears it. Barrier applied if
// paginated (spec §4.2 `order`).
func (q *Query) Order(items []ast.OrderByItem) (*Query, error) {
	c, stmt, err := q.ensureMutable()
	if err != nil {
		return nil, err
	}
	wrapped := barrier(stmt)
	s := wrapped.(*ast.SelectStatement)
	s.OrderBy = items
	c.stmt = wrapped
	return c, nil
}

// Limit only narrows: if a limit already exists the new limit is
// min(n, current) (spec §4.2 `limit`).
func (q *Query) Limit(n int64) (*Query, error) {
	c, stmt, err := q.ensureMutable()
	if err != nil {
		return nil, err
	}
	s, ok := selectOf(stmt)
	if !ok {
		return nil, errs.New(errs.UnsupportedFeature, "", "limit() requires a SELECT statement")
	}
	if cur, ok := literalInt(s.Limit); ok && cur < n {
		n = cur
	}
	s.Limit = &ast.Literal{Value: ast.Int(n)}
	c.stmt = stmt
	return c, nil
}

// Offset is additive; if a limit exists it is decreased by n, floored at 0,
// to keep the visible window inside the original (spec §4.2 `offset`).
func (q *Query) Offset(n int64) (*Query, error) {
	c, stmt, err := q.ensureMutable()
	if err != nil {
		return nil, err
	}
	s, ok := selectOf(stmt)
	if !ok {
		return nil, errs.New(errs.UnsupportedFeature, "", "offset() requires a SELECT statement")
	}
	cur, _ := literalInt(s.Offset)
	s.Offset = &ast.Literal{Value: ast.Int(cur + n)}
	if lim, ok := literalInt(s.Limit); ok {
		newLim := lim - n
		if newLim < 0 {
			newLim = 0
		}
		s.Limit = &ast.Literal{Value: ast.Int(newLim)}
	}
	c.stmt = stmt
	return c, nil
}

// Distinct wraps as a DISTINCT projection; barrier applied if paginated
// (spec §4.2 `distinct`).
func (q *Query) Distinct() (*Query, error) {
	c, stmt, err := q.ensureMutable()
	if err != nil {
		return nil, err
	}
	wrapped := barrier(stmt)
	s, ok := selectOf(wrapped)
	if !ok {
		return nil, errs.New(errs.UnsupportedFeature, "", "distinct() requires a SELECT statement")
	}
	s.Distinct = true
	c.stmt = wrapped
	return c, nil
}

func literalInt(e ast.Expr) (int64, bool) {
	lit, ok := e.(*ast.Literal)
	if !ok || lit.Value.Kind != ast.KindInt {
		return 0, false
	}
	return lit.Value.Int, true
}
