// Package driverbackend adapts a database/sql connection into the
// query.Executor contract (spec §4.1, §6.4), the same wiring the teacher's
// Client.querySQL does by hand for its PostgreSQL/MySQL backends
// (client.go): translate/render to a SQL string plus positional params, run
// it through *sql.DB, and fold *sql.Rows back into the builder's row
// iterator surface. Unlike the teacher's client, which always renders from
// its own translator output, this backend honours the builder's fast/slow
// path split: it only calls into render when the caller hands it a mutated
// AST (spec §6.4 "must use the supplied AST").
package driverbackend

import (
	"context"
	"database/sql"
	"strings"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/query"
	"github.com/omniql-engine/sqlcore/render"
)

// Conn is the subset of *sql.DB (and *sql.Tx) this backend needs, so a
// Backend can run inside a transaction exactly as it does against a pool.
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Backend wires a Conn to a rendering Dialect.
type Backend struct {
	conn    Conn
	dialect render.Dialect
}

// New constructs a Backend. conn is typically a *sql.DB, or a *sql.Tx
// obtained from one while a query.Query runs inside a transaction.
func New(conn Conn, dialect render.Dialect) *Backend {
	return &Backend{conn: conn, dialect: dialect}
}

// Executor returns the query.Executor closure a query.Query is constructed
// with (spec §6.1 `fromSql`/`fromTable` take one of these).
func (b *Backend) Executor() query.Executor {
	return b.execute
}

func (b *Backend) execute(ctx context.Context, sqlText string, params []ast.Value, stmt ast.Statement) (query.Rows, error) {
	if stmt != nil {
		rendered, renderedParams, err := render.Render(stmt, b.dialect)
		if err != nil {
			return nil, err
		}
		sqlText, params = rendered, renderedParams
	}

	args := make([]any, len(params))
	for i, p := range params {
		args[i] = toDriverValue(p)
	}

	if isQueryShaped(stmt, sqlText) {
		rows, err := b.conn.QueryContext(ctx, sqlText, args...)
		if err != nil {
			return nil, errs.Wrap(errs.UnsupportedFeature, sqlText, err, "driver query failed")
		}
		return &driverRows{rows: rows}, nil
	}

	res, err := b.conn.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return nil, errs.Wrap(errs.UnsupportedFeature, sqlText, err, "driver exec failed")
	}
	affected, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	return &driverExecResult{affected: affected, lastInsertID: lastID}, nil
}

// isQueryShaped mirrors the teacher's prefix sniff (client.go querySQL) for
// the raw-SQL fast path, but prefers the AST's own shape whenever one is
// available since that's exact rather than textual.
func isQueryShaped(stmt ast.Statement, sqlText string) bool {
	switch stmt.(type) {
	case *ast.SelectStatement, *ast.WithStatement, *ast.UnionNode:
		return true
	case *ast.InsertStatement, *ast.UpdateStatement, *ast.DeleteStatement,
		*ast.CreateTableStatement, *ast.DropTableStatement,
		*ast.CreateIndexStatement, *ast.DropIndexStatement:
		return false
	}
	upper := strings.ToUpper(strings.TrimSpace(sqlText))
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}

// toDriverValue unwraps an ast.Value into whatever database/sql's driver
// expects, the inverse of vengine's rawValue.
func toDriverValue(v ast.Value) any {
	switch v.Kind {
	case ast.KindNull:
		return nil
	case ast.KindInt:
		return v.Int
	case ast.KindFloat:
		return v.Float
	case ast.KindDecimal:
		return v.Decimal
	case ast.KindString:
		return v.Str
	case ast.KindBinary:
		return v.Binary
	case ast.KindBool:
		return v.Bool
	case ast.KindDate, ast.KindTime, ast.KindDateTime:
		return v.Time
	default:
		return nil
	}
}
