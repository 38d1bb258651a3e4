package vengine

import (
	"context"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/query"
	"github.com/omniql-engine/sqlcore/table"
)

// evalTop is the single dispatch point for every statement shape the engine
// accepts, entered from Execute (spec §4.3 "Entry points").
func (e *Engine) evalTop(ctx context.Context, stmt ast.Statement) (query.Rows, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	switch n := stmt.(type) {
	case *ast.WithStatement:
		tbl, cols, err := e.evalWith(ctx, n)
		if err != nil {
			return nil, err
		}
		return materialise(tbl, cols)
	case *ast.UnionNode:
		tbl, cols, err := e.evalUnion(ctx, n)
		if err != nil {
			return nil, err
		}
		return materialise(tbl, cols)
	case *ast.SelectStatement:
		tbl, cols, err := e.evalSelect(ctx, n)
		if err != nil {
			return nil, err
		}
		return materialise(tbl, cols)
	case *ast.InsertStatement:
		affected, err := e.evalInsert(ctx, n)
		return &execResult{affected: affected}, err
	case *ast.UpdateStatement:
		affected, err := e.evalUpdate(ctx, n)
		return &execResult{affected: affected}, err
	case *ast.DeleteStatement:
		affected, err := e.evalDelete(ctx, n)
		return &execResult{affected: affected}, err
	case *ast.CreateTableStatement:
		return &execResult{}, e.evalCreateTable(n)
	case *ast.DropTableStatement:
		return &execResult{}, e.evalDropTable(n)
	case *ast.CreateIndexStatement, *ast.DropIndexStatement:
		// No-ops for in-memory tables (spec §4.3.6).
		return &execResult{}, nil
	}
	return nil, errs.New(errs.UnsupportedFeature, "", "virtual engine cannot evaluate statement of type %T", stmt)
}

func materialise(tbl table.Table, cols []string) (*Rows, error) {
	_, rows, err := tbl.Rows()
	if err != nil {
		return nil, err
	}
	if cols == nil {
		cols = columnUnion(rows)
	}
	return newRows(cols, rows), nil
}

func columnUnion(rows []table.Row) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// checkDeadline is consulted every N rows during long-running evaluations
// (recursive CTE iteration, aggregate grouping, window partitioning), per
// spec §5 "check elapsed time every N rows (suggested N = 100)".
func checkDeadline(ctx context.Context, n int) error {
	if n%100 != 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return errs.New(errs.QueryTimeout, "", "query exceeded its deadline")
	default:
		return nil
	}
}
