package vengine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/table"
)

// evalSelect implements the seven-step SELECT evaluation order (spec
// §4.3.2): resolve FROM, apply JOINs, push down WHERE, branch to the
// aggregate or window path when the projection calls for one, apply ORDER
// BY, apply OFFSET/LIMIT, then project.
func (e *Engine) evalSelect(ctx context.Context, sel *ast.SelectStatement) (table.Table, []string, error) {
	var tbl table.Table
	var leftAlias string
	var err error
	if sel.From != nil {
		tbl, leftAlias, err = e.resolveFrom(ctx, sel.From)
		if err != nil {
			return nil, nil, err
		}
	} else {
		tbl = table.FromRows([]table.Row{{}})
	}

	if len(sel.Joins) > 0 {
		tbl, err = e.resolveJoins(ctx, tbl, leftAlias, sel.Joins)
		if err != nil {
			return nil, nil, err
		}
	}

	if sel.Where != nil {
		tbl, err = e.pushDown(ctx, tbl, sel.Where)
		if err != nil {
			return nil, nil, err
		}
	}

	if sel.HasAggregates() || len(sel.GroupBy) > 0 {
		return e.evalAggregate(ctx, sel, tbl)
	}
	if sel.HasWindowFuncs() {
		return e.evalWindowSelect(ctx, sel, tbl)
	}

	if len(sel.OrderBy) > 0 {
		tbl, err = e.applyOrderBy(ctx, tbl, sel, nil)
		if err != nil {
			return nil, nil, err
		}
	}

	if sel.Offset != nil {
		n, err := e.evalIntExpr(ctx, sel.Offset)
		if err != nil {
			return nil, nil, err
		}
		tbl = tbl.Offset(n)
	}
	if sel.Limit != nil {
		n, err := e.evalIntExpr(ctx, sel.Limit)
		if err != nil {
			return nil, nil, err
		}
		tbl = tbl.Limit(n)
	}

	return e.project(ctx, tbl, sel, nil)
}

// aggValsFromRow rebuilds a row-scoped pointer-keyed aggregate lookup from
// the synthetic keys evalAggregate stored on row, so ORDER BY can evaluate
// an ordinal or repeated aggregate expression against its group's result
// (spec §4.3.3).
func aggValsFromRow(row table.Row, aggCalls []*ast.FuncCall) map[*ast.FuncCall]ast.Value {
	if len(aggCalls) == 0 {
		return nil
	}
	out := make(map[*ast.FuncCall]ast.Value, len(aggCalls))
	for _, fc := range aggCalls {
		if v, ok := row[aggRowKey(fc)]; ok {
			out[fc] = v
		}
	}
	return out
}

func (e *Engine) evalIntExpr(ctx context.Context, expr ast.Expr) (int, error) {
	v, err := (&evalCtx{ctx: ctx, eng: e}).eval(expr)
	if err != nil {
		return 0, err
	}
	switch v.Kind {
	case ast.KindInt:
		return int(v.Int), nil
	case ast.KindFloat:
		return int(v.Float), nil
	default:
		return 0, errs.New(errs.UnsupportedFeature, "", "LIMIT/OFFSET must evaluate to a number")
	}
}

// orderExpr resolves an ORDER BY item to the expression it sorts on,
// following an ordinal reference (`ORDER BY 1`) back to the corresponding
// projected column.
func orderExpr(sel *ast.SelectStatement, item ast.OrderByItem) ast.Expr {
	if item.Index > 0 && item.Index <= len(sel.Columns) {
		return sel.Columns[item.Index-1].Expr
	}
	return item.Expr
}

// applyOrderBy pushes a plain column-reference ORDER BY into the table
// layer; anything else (ordinals, computed expressions) is sorted in
// memory (spec §4.3.2 step 4). aggCalls is non-nil only when ordering the
// result of an aggregate query, so an ordinal/aggregate ORDER BY item can
// read the group's precomputed value back out (spec §4.3.3).
func (e *Engine) applyOrderBy(ctx context.Context, tbl table.Table, sel *ast.SelectStatement, aggCalls []*ast.FuncCall) (table.Table, error) {
	var specs []table.OrderSpec
	simple := true
	for _, item := range sel.OrderBy {
		if item.Index > 0 {
			simple = false
			break
		}
		id, ok := item.Expr.(*ast.Identifier)
		if !ok || id.Wildcard {
			simple = false
			break
		}
		specs = append(specs, table.OrderSpec{Column: id.Name(), Desc: item.Desc})
	}
	if simple {
		return tbl.Order(specs), nil
	}
	return e.sortInMemory(ctx, tbl, sel, aggCalls)
}

func (e *Engine) sortInMemory(ctx context.Context, tbl table.Table, sel *ast.SelectStatement, aggCalls []*ast.FuncCall) (table.Table, error) {
	_, rows, err := tbl.Rows()
	if err != nil {
		return nil, err
	}
	keys := make([][]ast.Value, len(rows))
	for i, r := range rows {
		if err := checkDeadline(ctx, i); err != nil {
			return nil, err
		}
		gc := &evalCtx{ctx: ctx, eng: e, row: r, aggVals: aggValsFromRow(r, aggCalls)}
		k := make([]ast.Value, len(sel.OrderBy))
		for j, item := range sel.OrderBy {
			v, err := gc.eval(orderExpr(sel, item))
			if err != nil {
				return nil, err
			}
			k[j] = v
		}
		keys[i] = k
	}
	idxs := make([]int, len(rows))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		ia, ib := idxs[a], idxs[b]
		for j, item := range sel.OrderBy {
			c := compareAny(keys[ia][j], keys[ib][j])
			if c == 0 {
				continue
			}
			if item.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	out := make([]table.Row, len(rows))
	for i, idx := range idxs {
		out[i] = rows[idx]
	}
	return table.FromRows(out), nil
}

// expandWildcard resolves `*` / `alias.*` against a sample row, since the
// table layer carries no declared column order for derived tables. Bare
// `*` yields the row's unqualified keys (identifiers never contain `.`, so
// any key with a dot is a join-merge qualifier entry and is skipped);
// `alias.*` yields the keys under that alias's prefix.
func expandWildcard(qualifier string, sample table.Row) []string {
	var keys []string
	if qualifier == "" {
		for k := range sample {
			if !strings.Contains(k, ".") {
				keys = append(keys, k)
			}
		}
	} else {
		prefix := qualifier + "."
		for k := range sample {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, strings.TrimPrefix(k, prefix))
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// colName derives a projected column's output name: its explicit alias,
// the bare identifier name, a lower-cased function name, or a positional
// fallback (spec §4.3.2 step 7 "projection").
func colName(c ast.ColumnNode, idx int) string {
	if c.Alias != "" {
		return c.Alias
	}
	switch n := c.Expr.(type) {
	case *ast.Identifier:
		if !n.Wildcard {
			return n.Name()
		}
	case *ast.FuncCall:
		return strings.ToLower(n.Name)
	case *ast.WindowFunc:
		return strings.ToLower(n.Func.Name)
	}
	return fmt.Sprintf("col%d", idx+1)
}

type projSpec struct {
	names     []string // len > 1 only for a wildcard expansion
	qualifier string   // wildcard qualifier, "" for bare `*` or a non-wildcard column
	wildcard  bool
	winKey    string // set when this column's value comes from a precomputed window result
	expr      ast.Expr
}

// project builds the final output table and column list from sel.Columns.
// winKeys, when non-nil, maps a column index to the synthetic row key
// evalWindowSelect stored its computed value under, so a window function
// column is read back rather than re-evaluated (spec §4.3.4).
func (e *Engine) project(ctx context.Context, tbl table.Table, sel *ast.SelectStatement, winKeys map[int]string) (table.Table, []string, error) {
	_, rows, err := tbl.Rows()
	if err != nil {
		return nil, nil, err
	}
	var sample table.Row
	if len(rows) > 0 {
		sample = rows[0]
	}

	specs := make([]projSpec, len(sel.Columns))
	var cols []string
	for idx, c := range sel.Columns {
		if id, ok := c.Expr.(*ast.Identifier); ok && id.Wildcard {
			names := expandWildcard(id.Qualifier(), sample)
			specs[idx] = projSpec{names: names, qualifier: id.Qualifier(), wildcard: true}
			cols = append(cols, names...)
			continue
		}
		name := colName(c, idx)
		cols = append(cols, name)
		if winKeys != nil {
			if k, ok := winKeys[idx]; ok {
				specs[idx] = projSpec{names: []string{name}, winKey: k}
				continue
			}
		}
		specs[idx] = projSpec{names: []string{name}, expr: c.Expr}
	}

	outRows := make([]table.Row, len(rows))
	for i, r := range rows {
		if err := checkDeadline(ctx, i); err != nil {
			return nil, nil, err
		}
		out := table.Row{}
		for _, s := range specs {
			switch {
			case s.wildcard:
				for _, n := range s.names {
					v := r[n]
					if s.qualifier != "" {
						if vv, ok := r[s.qualifier+"."+n]; ok {
							v = vv
						}
					}
					out[n] = v
				}
			case s.winKey != "":
				out[s.names[0]] = r[s.winKey]
			default:
				v, err := (&evalCtx{ctx: ctx, eng: e, row: r}).eval(s.expr)
				if err != nil {
					return nil, nil, err
				}
				out[s.names[0]] = v
			}
		}
		outRows[i] = out
	}

	var result table.Table = table.FromRows(outRows)
	if sel.Distinct {
		result = result.Distinct()
	}
	return result, cols, nil
}
