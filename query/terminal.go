package query

import (
	"context"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
)

// Run executes the query: fast path (original sql/params) when unmutated
// and positional, slow path (render the AST, with named parameters bound)
// otherwise (spec §4.2 "two operational modes").
func (q *Query) Run(ctx context.Context) (Rows, error) {
	if q.stmt == nil && q.named == nil {
		return q.executor(ctx, q.sql, append([]ast.Value(nil), q.params...), nil)
	}
	stmt, err := q.resolved()
	if err != nil {
		return nil, err
	}
	return q.executor(ctx, "", nil, stmt)
}

// One applies LIMIT 1 and returns the first row, or nil if there were none
// (spec §4.2 `one`).
func (q *Query) One(ctx context.Context) (Rows, error) {
	limited, err := q.Limit(1)
	if err != nil {
		return nil, err
	}
	rows, err := limited.Run(ctx)
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		_ = rows.Close()
		return nil, nil
	}
	return rows, nil
}

// Column streams the first field of each row (spec §4.2 `column`).
func (q *Query) Column(ctx context.Context) ([]ast.Value, error) {
	rows, err := q.Run(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ast.Value
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, toValue(v))
	}
	return out, rows.Err()
}

// Field returns the first field of the first row (spec §4.2 `field`).
func (q *Query) Field(ctx context.Context) (ast.Value, error) {
	rows, err := q.One(ctx)
	if err != nil {
		return ast.Value{}, err
	}
	if rows == nil {
		return ast.Null(), nil
	}
	defer rows.Close()
	var v any
	if err := rows.Scan(&v); err != nil {
		return ast.Value{}, err
	}
	return toValue(v), nil
}

// Count wraps the AST as `SELECT COUNT(*) FROM (…) AS _count` after
// stripping ORDER BY (spec §4.2 `count`).
func (q *Query) Count(ctx context.Context) (int64, error) {
	stmt, err := q.resolved()
	if err != nil {
		return 0, err
	}
	inner := stmt.Clone()
	if s, ok := selectOf(inner); ok {
		s.OrderBy = nil
	}
	wrapped := &ast.SelectStatement{
		Columns: []ast.ColumnNode{{Expr: &ast.FuncCall{Name: "COUNT", Args: []ast.Expr{&ast.Identifier{Wildcard: true}}}}},
		From:    &ast.SubqueryRef{Query: inner, Alias: "_count"},
	}
	rows, err := q.executor(ctx, "", nil, wrapped)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, errs.New(errs.UnsupportedFeature, "", "count() produced no rows")
	}
	var n int64
	if err := rows.Scan(&n); err != nil {
		return 0, err
	}
	return n, rows.Err()
}

// All runs the query and feeds every row through the attached hydrator,
// invoking LoadCallback (if any) once per hydrated instance (spec §4.4
// "Iteration protocol"). Callers that never called WithHydrator should use
// Run instead.
func (q *Query) All(ctx context.Context) (any, error) {
	rows, err := q.Run(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if q.entity.Hydrator == nil {
		return nil, errs.New(errs.UnsupportedFeature, "", "all() requires WithHydrator to be set")
	}
	result, err := q.entity.Hydrator(rows)
	if err != nil {
		return nil, err
	}
	if q.entity.LoadCallback != nil {
		if items, ok := result.([]any); ok {
			for _, item := range items {
				q.entity.LoadCallback(item)
			}
		} else {
			q.entity.LoadCallback(result)
		}
	}
	return result, rows.Err()
}

// Exists uses LIMIT 1 (spec §4.2 `exists`).
func (q *Query) Exists(ctx context.Context) (bool, error) {
	rows, err := q.One(ctx)
	if err != nil {
		return false, err
	}
	if rows == nil {
		return false, nil
	}
	defer rows.Close()
	return true, nil
}

func toValue(v any) ast.Value {
	switch t := v.(type) {
	case nil:
		return ast.Null()
	case int64:
		return ast.Int(t)
	case float64:
		return ast.Float(t)
	case bool:
		return ast.Bool(t)
	case string:
		return ast.Str(t)
	case []byte:
		return ast.Binary(t)
	default:
		return ast.Value{}
	}
}
