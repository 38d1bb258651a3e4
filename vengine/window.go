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

func winKey(idx int) string { return fmt.Sprintf("__win%d", idx) }

func cloneRow(r table.Row) table.Row {
	out := make(table.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func equalKeys(a, b []ast.Value) bool {
	for i := range a {
		if compareAny(a[i], b[i]) != 0 {
			return false
		}
	}
	return true
}

func partitionKey(ctx context.Context, eng *Engine, exprs []ast.Expr, row table.Row) (string, error) {
	var sb strings.Builder
	for _, e := range exprs {
		v, err := (&evalCtx{ctx: ctx, eng: eng, row: row}).eval(e)
		if err != nil {
			return "", err
		}
		sb.WriteString(valueDedupKey(v))
		sb.WriteByte(0)
	}
	return sb.String(), nil
}

// evalWindowSelect computes every window-function column over its own
// PARTITION BY/ORDER BY, storing each result under a synthetic row key,
// then applies the statement's own ORDER BY/OFFSET/LIMIT and projects
// (spec §4.3.4).
func (e *Engine) evalWindowSelect(ctx context.Context, sel *ast.SelectStatement, tbl table.Table) (table.Table, []string, error) {
	_, rows, err := tbl.Rows()
	if err != nil {
		return nil, nil, err
	}
	decorated := make([]table.Row, len(rows))
	for i, r := range rows {
		decorated[i] = cloneRow(r)
	}

	winKeys := make(map[int]string)
	for idx, c := range sel.Columns {
		wf, ok := c.Expr.(*ast.WindowFunc)
		if !ok {
			continue
		}
		key := winKey(idx)
		winKeys[idx] = key
		if err := e.computeWindow(ctx, wf, rows, decorated, key); err != nil {
			return nil, nil, err
		}
		// Also store under the column's output name, so a bare-identifier
		// ORDER BY referencing the window column's alias (the common case)
		// can push down instead of forcing an in-memory sort.
		name := colName(c, idx)
		for i := range decorated {
			decorated[i][name] = decorated[i][key]
		}
	}

	var winTbl table.Table = table.FromRows(decorated)

	if len(sel.OrderBy) > 0 {
		winTbl, err = e.applyOrderBy(ctx, winTbl, sel, nil)
		if err != nil {
			return nil, nil, err
		}
	}
	if sel.Offset != nil {
		n, err := e.evalIntExpr(ctx, sel.Offset)
		if err != nil {
			return nil, nil, err
		}
		winTbl = winTbl.Offset(n)
	}
	if sel.Limit != nil {
		n, err := e.evalIntExpr(ctx, sel.Limit)
		if err != nil {
			return nil, nil, err
		}
		winTbl = winTbl.Limit(n)
	}

	return e.project(ctx, winTbl, sel, winKeys)
}

// computeWindow partitions rows by wf.PartitionBy, sorts each partition by
// wf.OrderBy, and assigns ROW_NUMBER/RANK/DENSE_RANK into decorated[i][key]
// (spec §4.3.4). rows and decorated are parallel slices so row identity is
// tracked by index rather than by any table.RowID.
func (e *Engine) computeWindow(ctx context.Context, wf *ast.WindowFunc, rows []table.Row, decorated []table.Row, key string) error {
	partitions := map[string][]int{}
	var order []string
	for i, r := range rows {
		if err := checkDeadline(ctx, i); err != nil {
			return err
		}
		pk, err := partitionKey(ctx, e, wf.PartitionBy, r)
		if err != nil {
			return err
		}
		if _, ok := partitions[pk]; !ok {
			order = append(order, pk)
		}
		partitions[pk] = append(partitions[pk], i)
	}

	fn := strings.ToUpper(wf.Func.Name)
	switch fn {
	case "ROW_NUMBER", "RANK", "DENSE_RANK":
	default:
		return errs.New(errs.UnsupportedFeature, wf.Func.Name, "unsupported window function %q", wf.Func.Name)
	}

	for _, pk := range order {
		idxs := partitions[pk]
		keys := make([][]ast.Value, len(idxs))
		for j, i := range idxs {
			k := make([]ast.Value, len(wf.OrderBy))
			for o, item := range wf.OrderBy {
				v, err := (&evalCtx{ctx: ctx, eng: e, row: rows[i]}).eval(item.Expr)
				if err != nil {
					return err
				}
				k[o] = v
			}
			keys[j] = k
		}
		perm := make([]int, len(idxs))
		for i := range perm {
			perm[i] = i
		}
		sort.SliceStable(perm, func(a, b int) bool {
			pa, pb := perm[a], perm[b]
			for o, item := range wf.OrderBy {
				c := compareAny(keys[pa][o], keys[pb][o])
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

		rank, denseRank := 0, 0
		var lastKeys []ast.Value
		for pos, p := range perm {
			rowNum := pos + 1
			if lastKeys == nil || !equalKeys(keys[p], lastKeys) {
				rank = pos + 1
				denseRank++
				lastKeys = keys[p]
			}
			var val ast.Value
			switch fn {
			case "ROW_NUMBER":
				val = ast.Int(int64(rowNum))
			case "RANK":
				val = ast.Int(int64(rank))
			case "DENSE_RANK":
				val = ast.Int(int64(denseRank))
			}
			decorated[idxs[p]][key] = val
		}
	}
	return nil
}
