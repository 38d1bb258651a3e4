package vengine

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/table"
)

func renameColumnsPositional(rows []table.Row, fromCols, toCols []string) []table.Row {
	n := len(fromCols)
	if len(toCols) < n {
		n = len(toCols)
	}
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		nr := table.Row{}
		for j := 0; j < n; j++ {
			nr[toCols[j]] = r[fromCols[j]]
		}
		out[i] = nr
	}
	return out
}

// rowSignature is a stable, order-independent dedup key for a full row,
// used by UNION/INTERSECT/EXCEPT (without ALL) and by recursive CTE
// iteration to detect previously-seen rows.
func rowSignature(row table.Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(valueDedupKey(row[k]))
		sb.WriteByte(0)
	}
	return sb.String()
}

func dedupRows(rows []table.Row) []table.Row {
	seen := map[string]bool{}
	var out []table.Row
	for _, r := range rows {
		sig := rowSignature(r)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, r)
	}
	return out
}

func fromItemReferences(f ast.FromItem, name string) bool {
	t, ok := f.(*ast.TableRef)
	return ok && strings.EqualFold(t.Name, name)
}

// selectReferencesTable reports whether sel's own FROM/JOIN clauses name
// table directly; used to tell a recursive CTE's self-referencing branch
// apart from its anchor (spec §4.3.1).
func selectReferencesTable(sel *ast.SelectStatement, name string) bool {
	if sel.From != nil && fromItemReferences(sel.From, name) {
		return true
	}
	for _, j := range sel.Joins {
		if fromItemReferences(j.Right, name) {
			return true
		}
	}
	return false
}

// evalWith evaluates every CTE in declaration order, transiently
// registering each as a table so later CTEs and the main query can
// reference it, then evaluates the main query (spec §4.3.1).
func (e *Engine) evalWith(ctx context.Context, w *ast.WithStatement) (table.Table, []string, error) {
	var registered []string
	defer func() {
		for _, n := range registered {
			e.unregisterTable(n)
		}
	}()
	for _, cte := range w.CTEs {
		tbl, cols, err := e.evalCTE(ctx, w.Recursive, cte)
		if err != nil {
			return nil, nil, err
		}
		if cte.Columns != nil {
			_, rows, err := tbl.Rows()
			if err != nil {
				return nil, nil, err
			}
			tbl = table.FromRows(renameColumnsPositional(rows, cols, cte.Columns))
		}
		e.RegisterTable(cte.Name, tbl)
		registered = append(registered, cte.Name)
	}
	return e.evalSelectLike(ctx, w.Query)
}

func (e *Engine) evalCTE(ctx context.Context, recursive bool, cte ast.CTE) (table.Table, []string, error) {
	if recursive {
		if union, ok := cte.Query.(*ast.UnionNode); ok {
			if sel, ok := union.Right.(*ast.SelectStatement); ok && selectReferencesTable(sel, cte.Name) {
				return e.evalRecursiveCTE(ctx, cte.Name, cte.Columns, union)
			}
		}
	}
	return e.evalSelectLike(ctx, cte.Query)
}

// evalRecursiveCTE runs the anchor once, then repeatedly evaluates the
// recursive branch against only the previous iteration's new rows,
// stopping when an iteration produces nothing new; going past RecursionCap
// iterations returns a RecursionLimit error (spec §4.3.1). A declared
// column list names the anchor's columns before the first iteration.
func (e *Engine) evalRecursiveCTE(ctx context.Context, name string, columns []string, union *ast.UnionNode) (table.Table, []string, error) {
	anchorTbl, cols, err := e.evalSelectLike(ctx, union.Left)
	if err != nil {
		return nil, nil, err
	}
	_, anchorRows, err := anchorTbl.Rows()
	if err != nil {
		return nil, nil, err
	}
	if len(columns) > 0 {
		anchorRows = renameColumnsPositional(anchorRows, cols, columns)
		cols = columns
	}

	seen := map[string]bool{}
	if !union.All {
		for _, r := range anchorRows {
			seen[rowSignature(r)] = true
		}
	}

	allRows := append([]table.Row(nil), anchorRows...)
	working := anchorRows
	recursionCap := e.cfg.RecursionCap

	for iter := 0; len(working) > 0; iter++ {
		if iter >= recursionCap {
			return nil, nil, errs.New(errs.RecursionLimit, name, "recursive CTE %q exceeded its recursion cap (%d)", name, recursionCap)
		}
		if err := checkDeadline(ctx, iter); err != nil {
			return nil, nil, err
		}
		e.RegisterTable(name, table.FromRows(working))
		nextTbl, nextCols, err := e.evalSelectLike(ctx, union.Right)
		e.unregisterTable(name)
		if err != nil {
			return nil, nil, err
		}
		_, nextRows, err := nextTbl.Rows()
		if err != nil {
			return nil, nil, err
		}
		renamed := renameColumnsPositional(nextRows, nextCols, cols)
		if !union.All {
			var fresh []table.Row
			for _, r := range renamed {
				sig := rowSignature(r)
				if seen[sig] {
					continue
				}
				seen[sig] = true
				fresh = append(fresh, r)
			}
			renamed = fresh
		}
		if len(renamed) == 0 {
			break
		}
		allRows = append(allRows, renamed...)
		working = renamed
	}
	return table.FromRows(allRows), cols, nil
}

// evalUnion implements UNION [ALL]/INTERSECT/EXCEPT (spec §3.1 UnionNode).
// All three are computed here over the branches' materialised rows via
// row-signature matching, the same mechanism that backs DISTINCT-style
// dedup elsewhere in this package; the table layer's Union/Except
// operators are not used.
func (e *Engine) evalUnion(ctx context.Context, u *ast.UnionNode) (table.Table, []string, error) {
	var leftRows, rightRowsRaw []table.Row
	var leftCols, rightCols []string

	if e.cfg.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			_, leftRows, leftCols, err = e.evalUnionBranch(gctx, u.Left)
			return err
		})
		g.Go(func() error {
			var err error
			_, rightRowsRaw, rightCols, err = e.evalUnionBranch(gctx, u.Right)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
	} else {
		var err error
		_, leftRows, leftCols, err = e.evalUnionBranch(ctx, u.Left)
		if err != nil {
			return nil, nil, err
		}
		_, rightRowsRaw, rightCols, err = e.evalUnionBranch(ctx, u.Right)
		if err != nil {
			return nil, nil, err
		}
	}
	rightRows := renameColumnsPositional(rightRowsRaw, rightCols, leftCols)

	switch u.Op {
	case ast.SetUnion:
		combined := append(append([]table.Row(nil), leftRows...), rightRows...)
		if u.All {
			return table.FromRows(combined), leftCols, nil
		}
		return table.FromRows(dedupRows(combined)), leftCols, nil
	case ast.SetIntersect, ast.SetExcept:
		rightSigs := map[string]bool{}
		for _, r := range rightRows {
			rightSigs[rowSignature(r)] = true
		}
		want := u.Op == ast.SetIntersect
		seen := map[string]bool{}
		var out []table.Row
		for _, r := range leftRows {
			sig := rowSignature(r)
			if rightSigs[sig] != want {
				continue
			}
			if !u.All {
				if seen[sig] {
					continue
				}
				seen[sig] = true
			}
			out = append(out, r)
		}
		return table.FromRows(out), leftCols, nil
	}
	return nil, nil, errs.New(errs.UnsupportedFeature, "", "unknown set operation")
}

func (e *Engine) evalUnionBranch(ctx context.Context, stmt ast.Statement) (table.Table, []table.Row, []string, error) {
	tbl, cols, err := e.evalSelectLike(ctx, stmt)
	if err != nil {
		return nil, nil, nil, err
	}
	_, rows, err := tbl.Rows()
	if err != nil {
		return nil, nil, nil, err
	}
	return tbl, rows, cols, nil
}
