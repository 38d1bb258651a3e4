package vengine

import (
	"context"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/table"
)

// resolveFrom resolves a FROM target: a registered table or a derived
// subquery, each optionally aliased (spec §4.3.2 step 1).
func (e *Engine) resolveFrom(ctx context.Context, f ast.FromItem) (table.Table, string, error) {
	switch n := f.(type) {
	case *ast.TableRef:
		t, ok := e.lookupTable(n.Name)
		if !ok {
			return nil, "", errs.New(errs.MissingTable, n.Name, "no table registered named %q", n.Name)
		}
		alias := n.Alias
		if alias == "" {
			alias = n.Name
		}
		return t, alias, nil
	case *ast.SubqueryRef:
		tbl, _, err := e.evalSelectLike(ctx, n.Query)
		if err != nil {
			return nil, "", err
		}
		_, rows, err := tbl.Rows()
		if err != nil {
			return nil, "", err
		}
		return table.FromRows(rows), n.Alias, nil
	}
	return nil, "", errs.New(errs.UnsupportedFeature, "", "unknown FROM item %T", f)
}

func mergeForMatch(left table.Row, leftAlias string, right table.Row, rightAlias string) table.Row {
	out := table.Row{}
	for k, v := range left {
		out[k] = v
		if leftAlias != "" {
			out[leftAlias+"."+k] = v
		}
	}
	for k, v := range right {
		out[k] = v
		if rightAlias != "" {
			out[rightAlias+"."+k] = v
		}
	}
	return out
}

// buildMatcher compiles a JOIN's ON expression into a table.Matcher closure
// the join wrapper calls for every candidate (left, right) pair (spec
// §4.3.5).
func (e *Engine) buildMatcher(ctx context.Context, on ast.Expr, leftAlias, rightAlias string) table.Matcher {
	return func(l, r table.Row) (bool, error) {
		merged := mergeForMatch(l, leftAlias, r, rightAlias)
		v, err := (&evalCtx{ctx: ctx, eng: e, row: merged}).eval(on)
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	}
}

// resolveJoins applies every JOIN clause in order, wrapping left
// progressively (spec §4.3.2 step 2, §4.3.5).
func (e *Engine) resolveJoins(ctx context.Context, left table.Table, leftAlias string, joins []ast.JoinNode) (table.Table, error) {
	for _, j := range joins {
		right, rightAlias, err := e.resolveFrom(ctx, j.Right)
		if err != nil {
			return nil, err
		}
		if j.Kind == ast.JoinCross || j.On == nil {
			left = table.NewJoin(left, leftAlias, right, rightAlias, ast.JoinCross, nil)
			continue
		}
		matcher := e.buildMatcher(ctx, j.On, leftAlias, rightAlias)
		left = table.NewJoin(left, leftAlias, right, rightAlias, j.Kind, matcher)
	}
	return left, nil
}
