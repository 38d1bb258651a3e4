package vengine

import (
	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/table"
)

// evalCreateTable registers a new in-memory table; column type/index
// mapping already happened in the parser (spec §4.3.6), so this just wires
// the declared columns into a fresh table.Base.
func (e *Engine) evalCreateTable(n *ast.CreateTableStatement) error {
	if _, ok := e.lookupTable(n.Table); ok {
		if n.IfNotExists {
			return nil
		}
		return errs.New(errs.ConstraintViolation, n.Table, "table %q already exists", n.Table)
	}
	e.RegisterTable(n.Table, table.NewBase(n.Table, n.Columns))
	return nil
}

func (e *Engine) evalDropTable(n *ast.DropTableStatement) error {
	if _, ok := e.lookupTable(n.Table); !ok {
		if n.IfExists {
			return nil
		}
		return errs.New(errs.MissingTable, n.Table, "no table registered named %q", n.Table)
	}
	e.unregisterTable(n.Table)
	return nil
}
