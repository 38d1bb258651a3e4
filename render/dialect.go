// Package render walks the ast package's tree and emits SQL text in a
// chosen dialect, binding positional/named parameters into a flat slice
// (spec §4.1). Structure follows the teacher's per-dialect builder split
// (engine/builders/{mysql,postgres,...}), generalised from a custom DSL to
// real SQL rendering, and its validator's per-database dispatch
// (engine/validator) for the unsupported() helper in this file, which the
// set-operation renderer calls for a dialect lacking INTERSECT/EXCEPT.
package render

import "github.com/omniql-engine/sqlcore/internal/errs"

type Dialect int

const (
	Generic Dialect = iota
	MySQL
	Postgres
	SQLite
	SQLServer
	Oracle
)

func (d Dialect) String() string {
	switch d {
	case MySQL:
		return "mysql"
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	case SQLServer:
		return "sqlserver"
	case Oracle:
		return "oracle"
	default:
		return "generic"
	}
}

func unsupported(dialect Dialect, feature string) error {
	return errs.New(errs.UnsupportedDialect, feature, "%s does not support %s", dialect, feature)
}
