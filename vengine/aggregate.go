package vengine

import (
	"context"
	"fmt"
	"strings"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/table"
)

func aggRowKey(fc *ast.FuncCall) string { return fmt.Sprintf("__agg%p", fc) }

func isAggregateCall(eng *Engine, fc *ast.FuncCall) bool {
	if fc.IsAggregate() {
		return true
	}
	_, ok := eng.lookupAggregate(fc.Name)
	return ok
}

// collectAggregateCalls walks e looking for aggregate function calls,
// stopping at each one found (its arguments are evaluated internally by
// computeAggregate, not by the surrounding row-by-row evaluator).
func collectAggregateCalls(eng *Engine, e ast.Expr, out *[]*ast.FuncCall) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.FuncCall:
		if isAggregateCall(eng, n) {
			*out = append(*out, n)
			return
		}
		for _, a := range n.Args {
			collectAggregateCalls(eng, a, out)
		}
	case *ast.BinaryOp:
		collectAggregateCalls(eng, n.Left, out)
		collectAggregateCalls(eng, n.Right, out)
	case *ast.UnaryOp:
		collectAggregateCalls(eng, n.Operand, out)
	case *ast.CaseExpr:
		if n.Operand != nil {
			collectAggregateCalls(eng, n.Operand, out)
		}
		for _, w := range n.Whens {
			collectAggregateCalls(eng, w.Cond, out)
			collectAggregateCalls(eng, w.Then, out)
		}
		if n.Else != nil {
			collectAggregateCalls(eng, n.Else, out)
		}
	}
}

// collectAggregateExprs gathers every distinct aggregate call reachable
// from the projection, HAVING and ORDER BY, so each can be computed once
// per group (spec §4.3.3).
func collectAggregateExprs(eng *Engine, sel *ast.SelectStatement) []*ast.FuncCall {
	var out []*ast.FuncCall
	for _, c := range sel.Columns {
		collectAggregateCalls(eng, c.Expr, &out)
	}
	if sel.Having != nil {
		collectAggregateCalls(eng, sel.Having, &out)
	}
	for _, item := range sel.OrderBy {
		collectAggregateCalls(eng, orderExpr(sel, item), &out)
	}
	return out
}

func projectedNamesOnly(sel *ast.SelectStatement) []string {
	var cols []string
	for idx, c := range sel.Columns {
		if id, ok := c.Expr.(*ast.Identifier); ok && id.Wildcard {
			continue
		}
		cols = append(cols, colName(c, idx))
	}
	return cols
}

// computeAggregate folds fc over the rows at idxs (a single group, or every
// row when there is no GROUP BY), dispatching to a user-registered
// aggregate when one is registered under fc.Name (spec §6.5
// createAggregate), else a built-in (spec §4.3.3).
func (e *Engine) computeAggregate(ctx context.Context, fc *ast.FuncCall, rows []table.Row, idxs []int) (ast.Value, error) {
	if fn, ok := e.lookupAggregate(fc.Name); ok {
		var state any
		for _, i := range idxs {
			if err := checkDeadline(ctx, i); err != nil {
				return ast.Value{}, err
			}
			args := make([]ast.Value, len(fc.Args))
			for k, a := range fc.Args {
				v, err := (&evalCtx{ctx: ctx, eng: e, row: rows[i]}).eval(a)
				if err != nil {
					return ast.Value{}, err
				}
				args[k] = v
			}
			var err error
			state, err = fn.Step(state, args)
			if err != nil {
				return ast.Value{}, err
			}
		}
		return fn.Finalise(state)
	}

	name := strings.ToUpper(fc.Name)
	switch name {
	case "COUNT":
		if len(fc.Args) == 1 {
			if id, ok := fc.Args[0].(*ast.Identifier); ok && id.Wildcard {
				return ast.Int(int64(len(idxs))), nil
			}
		}
		seen := map[string]bool{}
		var count int64
		for _, i := range idxs {
			v, err := (&evalCtx{ctx: ctx, eng: e, row: rows[i]}).eval(fc.Args[0])
			if err != nil {
				return ast.Value{}, err
			}
			if v.Kind == ast.KindNull {
				continue
			}
			if fc.Distinct {
				k := valueDedupKey(v)
				if seen[k] {
					continue
				}
				seen[k] = true
			}
			count++
		}
		return ast.Int(count), nil
	case "SUM", "AVG":
		seen := map[string]bool{}
		var sum float64
		var n int64
		allInt := true
		for _, i := range idxs {
			v, err := (&evalCtx{ctx: ctx, eng: e, row: rows[i]}).eval(fc.Args[0])
			if err != nil {
				return ast.Value{}, err
			}
			if v.Kind == ast.KindNull {
				continue
			}
			if fc.Distinct {
				k := valueDedupKey(v)
				if seen[k] {
					continue
				}
				seen[k] = true
			}
			if v.Kind != ast.KindInt {
				allInt = false
			}
			sum += asFloat(v)
			n++
		}
		if n == 0 {
			return ast.Null(), nil
		}
		if name == "AVG" {
			return ast.Float(sum / float64(n)), nil
		}
		if allInt {
			return ast.Int(int64(sum)), nil
		}
		return ast.Float(sum), nil
	case "MIN", "MAX":
		var best *ast.Value
		for _, i := range idxs {
			v, err := (&evalCtx{ctx: ctx, eng: e, row: rows[i]}).eval(fc.Args[0])
			if err != nil {
				return ast.Value{}, err
			}
			if v.Kind == ast.KindNull {
				continue
			}
			if best == nil {
				vv := v
				best = &vv
				continue
			}
			c := compareAny(v, *best)
			if (name == "MIN" && c < 0) || (name == "MAX" && c > 0) {
				vv := v
				best = &vv
			}
		}
		if best == nil {
			return ast.Null(), nil
		}
		return *best, nil
	}
	return ast.Value{}, errs.New(errs.UnsupportedFeature, fc.Name, "unknown aggregate function %q", fc.Name)
}

// evalAggregate implements GROUP BY/HAVING evaluation (spec §4.3.3): rows
// are partitioned by the GROUP BY key (or collapsed into a single implicit
// group when absent), every aggregate call in the projection/HAVING/ORDER
// BY is computed per group, HAVING filters groups, and the remaining
// ORDER BY/OFFSET/LIMIT/projection pipeline runs exactly as it does for a
// plain SELECT.
func (e *Engine) evalAggregate(ctx context.Context, sel *ast.SelectStatement, tbl table.Table) (table.Table, []string, error) {
	_, rows, err := tbl.Rows()
	if err != nil {
		return nil, nil, err
	}

	groups := map[string][]int{}
	var order []string
	for i, r := range rows {
		if err := checkDeadline(ctx, i); err != nil {
			return nil, nil, err
		}
		key, err := partitionKey(ctx, e, sel.GroupBy, r)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	if len(order) == 0 {
		if len(sel.GroupBy) > 0 {
			// No input rows and an explicit GROUP BY: zero groups, zero
			// result rows (ordinary SQL grouping semantics).
			return table.FromRows(nil), projectedNamesOnly(sel), nil
		}
		// No input rows and no GROUP BY: one row of finalised aggregates
		// (e.g. COUNT(*) = 0, SUM(x) = NULL) — the open question is
		// resolved this way to match standard SQL aggregate behaviour.
		order = append(order, "")
		groups[""] = nil
	}

	aggCalls := collectAggregateExprs(e, sel)

	var resultRows []table.Row
	for _, key := range order {
		idxs := groups[key]
		var base table.Row
		if len(idxs) > 0 {
			base = cloneRow(rows[idxs[0]])
		} else {
			base = table.Row{}
		}

		aggVals := make(map[*ast.FuncCall]ast.Value, len(aggCalls))
		for _, fc := range aggCalls {
			v, err := e.computeAggregate(ctx, fc, rows, idxs)
			if err != nil {
				return nil, nil, err
			}
			aggVals[fc] = v
			base[aggRowKey(fc)] = v
		}
		for idx, c := range sel.Columns {
			if fc, ok := c.Expr.(*ast.FuncCall); ok && isAggregateCall(e, fc) {
				base[colName(c, idx)] = aggVals[fc]
			}
		}

		gc := &evalCtx{ctx: ctx, eng: e, row: base, aggVals: aggVals}
		if sel.Having != nil {
			hv, err := gc.eval(sel.Having)
			if err != nil {
				return nil, nil, err
			}
			if !truthy(hv) {
				continue
			}
		}
		resultRows = append(resultRows, base)
	}

	var resultTbl table.Table = table.FromRows(resultRows)
	if len(sel.OrderBy) > 0 {
		resultTbl, err = e.applyOrderBy(ctx, resultTbl, sel, aggCalls)
		if err != nil {
			return nil, nil, err
		}
	}
	if sel.Offset != nil {
		n, err := e.evalIntExpr(ctx, sel.Offset)
		if err != nil {
			return nil, nil, err
		}
		resultTbl = resultTbl.Offset(n)
	}
	if sel.Limit != nil {
		n, err := e.evalIntExpr(ctx, sel.Limit)
		if err != nil {
			return nil, nil, err
		}
		resultTbl = resultTbl.Limit(n)
	}

	aggKeys := make(map[int]string)
	for idx, c := range sel.Columns {
		if fc, ok := c.Expr.(*ast.FuncCall); ok && isAggregateCall(e, fc) {
			aggKeys[idx] = aggRowKey(fc)
		}
	}
	return e.project(ctx, resultTbl, sel, aggKeys)
}
