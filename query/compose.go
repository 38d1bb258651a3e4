package query

import (
	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
)

// unwrapCTE strips a leading WithStatement, returning its CTEs (nil if none)
// and the inner query, per "unwrapping CTEs" in spec §4.2 `union`/`except`.
func unwrapCTE(stmt ast.Statement) ([]ast.CTE, ast.Statement) {
	if w, ok := stmt.(*ast.WithStatement); ok {
		return w.CTEs, w.Query
	}
	return nil, stmt
}

func mergeCTEs(a, b []ast.CTE) ([]ast.CTE, error) {
	out := append([]ast.CTE(nil), a...)
	seen := make(map[string]ast.CTE, len(a))
	for _, c := range a {
		seen[c.Name] = c
	}
	for _, c := range b {
		if prev, ok := seen[c.Name]; ok {
			if !sameCTE(prev, c) {
				return nil, errs.New(errs.ConflictingCTE, c.Name, "conflicting definitions for CTE %q", c.Name)
			}
			continue
		}
		seen[c.Name] = c
		out = append(out, c)
	}
	return out, nil
}

// sameCTE does not compare CTEs structurally: since Statement equality has
// no cheap structural comparator here, two same-named CTEs are only
// considered compatible when they're literally the same node
// (the common case: both unioned queries reference one shared CTE builder).
func sameCTE(a, b ast.CTE) bool {
	return a.Query == b.Query
}

func rewrap(ctes []ast.CTE, recursive bool, inner ast.Statement) ast.Statement {
	if len(ctes) == 0 {
		return inner
	}
	return &ast.WithStatement{CTEs: ctes, Recursive: recursive, Query: inner}
}

func (q *Query) setOp(other *Query, op ast.SetOp, all bool) (*Query, error) {
	leftStmt, err := q.resolved()
	if err != nil {
		return nil, err
	}
	rightStmt, err := other.resolved()
	if err != nil {
		return nil, err
	}
	q.markShared()
	other.markShared()

	leftCTEs, leftInner := unwrapCTE(leftStmt)
	rightCTEs, rightInner := unwrapCTE(rightStmt)
	merged, err := mergeCTEs(leftCTEs, rightCTEs)
	if err != nil {
		return nil, err
	}

	union := &ast.UnionNode{Op: op, All: all, Left: leftInner, Right: rightInner}
	c := q.clone()
	c.stmt = rewrap(merged, false, union)
	c.sql, c.params, c.named = "", nil, nil
	return c, nil
}

// Union requires the same backend as q; CTEs from both sides merge,
// conflicting same-name definitions raise ConflictingCTE (spec §4.2 `union`).
func (q *Query) Union(other *Query, all bool) (*Query, error) {
	return q.setOp(other, ast.SetUnion, all)
}

func (q *Query) Except(other *Query, all bool) (*Query, error) {
	return q.setOp(other, ast.SetExcept, all)
}

func (q *Query) Intersect(other *Query, all bool) (*Query, error) {
	return q.setOp(other, ast.SetIntersect, all)
}

// WithCTE adds a CTE wrapping the current AST; shadowing an existing name
// is an error (spec §4.2 `withCTE`).
func (q *Query) WithCTE(name string, columns []string, cte *Query) (*Query, error) {
	stmt, err := q.resolved()
	if err != nil {
		return nil, err
	}
	cteStmt, err := cte.resolved()
	if err != nil {
		return nil, err
	}
	cte.markShared()

	existing, inner := unwrapCTE(stmt)
	for _, c := range existing {
		if c.Name == name {
			return nil, errs.New(errs.CTEShadowing, name, "CTE %q already defined on this query", name)
		}
	}
	newCTEs := append(append([]ast.CTE(nil), existing...), ast.CTE{Name: name, Columns: columns, Query: cteStmt})

	c := q.clone()
	c.stmt = rewrap(newCTEs, false, inner)
	c.sql, c.params, c.named = "", nil, nil
	return c, nil
}

// Select wraps as `SELECT expr FROM (current) AS _q` (spec §4.2 `select`).
func (q *Query) Select(expr ast.Expr) (*Query, error) {
	c, stmt, err := q.ensureMutable()
	if err != nil {
		return nil, err
	}
	c.stmt = &ast.SelectStatement{
		Columns: []ast.ColumnNode{{Expr: expr}},
		From:    &ast.SubqueryRef{Query: stmt, Alias: "_q"},
	}
	return c, nil
}

// Columns enforces narrowing relative to the previously allowed set (spec
// §3.2 "available-columns, once set, only narrows"; §4.2 `columns`).
func (q *Query) Columns(names ...string) (*Query, error) {
	c, stmt, err := q.ensureMutable()
	if err != nil {
		return nil, err
	}
	requested := make(map[string]bool, len(names))
	for _, n := range names {
		if q.availableColumns != nil && !q.availableColumns[n] {
			return nil, errs.New(errs.UnsupportedFeature, n, "column %q is not in the previously narrowed set", n)
		}
		requested[n] = true
	}
	s, ok := selectOf(stmt)
	if !ok {
		return nil, errs.New(errs.UnsupportedFeature, "", "columns() requires a SELECT statement")
	}
	cols := make([]ast.ColumnNode, len(names))
	for i, n := range names {
		cols[i] = ast.ColumnNode{Expr: col(n)}
	}
	s.Columns = cols
	c.stmt = stmt
	c.availableColumns = requested
	return c, nil
}

func (q *Query) WithEntityClass(class any) *Query {
	c := q.clone()
	c.entity.EntityClass = class
	return c
}

func (q *Query) WithHydrator(h func(Rows) (any, error)) *Query {
	c := q.clone()
	c.entity.Hydrator = h
	return c
}

func (q *Query) WithLoadCallback(cb func(any)) *Query {
	c := q.clone()
	c.entity.LoadCallback = cb
	return c
}
