package vengine

import (
	"context"
	"strconv"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/table"
)

func (e *Engine) mutableTable(name string) (table.MutableTable, error) {
	t, ok := e.lookupTable(name)
	if !ok {
		return nil, errs.New(errs.MissingTable, name, "no table registered named %q", name)
	}
	mt, ok := t.(table.MutableTable)
	if !ok {
		return nil, errs.New(errs.UnsupportedFeature, name, "table %q does not accept writes", name)
	}
	return mt, nil
}

func (e *Engine) setLastInsert(id table.RowID) {
	s := string(id)
	if len(s) > 2 && s[:2] == "i:" {
		s = s[2:]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return
	}
	e.mu.Lock()
	e.lastInsert = n
	e.mu.Unlock()
}

// evalInsert implements INSERT ... VALUES and INSERT ... SELECT (spec
// §4.3.6).
func (e *Engine) evalInsert(ctx context.Context, n *ast.InsertStatement) (int64, error) {
	mt, err := e.mutableTable(n.Table)
	if err != nil {
		return 0, err
	}

	if n.Select != nil {
		srcTbl, srcCols, err := e.evalSelectLike(ctx, n.Select)
		if err != nil {
			return 0, err
		}
		_, rows, err := srcTbl.Rows()
		if err != nil {
			return 0, err
		}
		targetCols := n.Columns
		if len(targetCols) == 0 {
			targetCols = srcCols
		}
		var count int64
		for i, r := range rows {
			if err := checkDeadline(ctx, i); err != nil {
				return count, err
			}
			row := table.Row{}
			for j, col := range targetCols {
				if j < len(srcCols) {
					row[col] = r[srcCols[j]]
				}
			}
			id, err := mt.Insert(row)
			if err != nil {
				return count, err
			}
			e.setLastInsert(id)
			count++
		}
		return count, nil
	}

	var count int64
	for i, values := range n.Rows {
		if err := checkDeadline(ctx, i); err != nil {
			return count, err
		}
		row := table.Row{}
		for j, col := range n.Columns {
			if j >= len(values) {
				continue
			}
			v, err := (&evalCtx{ctx: ctx, eng: e}).eval(values[j])
			if err != nil {
				return count, err
			}
			row[col] = v
		}
		id, err := mt.Insert(row)
		if err != nil {
			return count, err
		}
		e.setLastInsert(id)
		count++
	}
	return count, nil
}

// evalUpdate pushes WHERE down against the target table, then evaluates
// each SET assignment per matched row (an assignment can reference that
// row's current values, e.g. `SET balance = balance - 100`), spec §4.3.6.
func (e *Engine) evalUpdate(ctx context.Context, n *ast.UpdateStatement) (int64, error) {
	mt, err := e.mutableTable(n.Table)
	if err != nil {
		return 0, err
	}
	var filtered table.Table = mt
	if n.Where != nil {
		filtered, err = e.pushDown(ctx, filtered, n.Where)
		if err != nil {
			return 0, err
		}
	}
	ids, rows, err := filtered.Rows()
	if err != nil {
		return 0, err
	}
	var total int64
	for i, id := range ids {
		if err := checkDeadline(ctx, i); err != nil {
			return total, err
		}
		changes := make(map[string]ast.Value, len(n.Set))
		for _, a := range n.Set {
			v, err := (&evalCtx{ctx: ctx, eng: e, row: rows[i]}).eval(a.Value)
			if err != nil {
				return total, err
			}
			changes[a.Column] = v
		}
		n2, err := mt.Update([]table.RowID{id}, changes)
		if err != nil {
			return total, err
		}
		total += n2
	}
	return total, nil
}

func (e *Engine) evalDelete(ctx context.Context, n *ast.DeleteStatement) (int64, error) {
	mt, err := e.mutableTable(n.Table)
	if err != nil {
		return 0, err
	}
	var filtered table.Table = mt
	if n.Where != nil {
		filtered, err = e.pushDown(ctx, filtered, n.Where)
		if err != nil {
			return 0, err
		}
	}
	ids, _, err := filtered.Rows()
	if err != nil {
		return 0, err
	}
	return mt.Delete(ids)
}
