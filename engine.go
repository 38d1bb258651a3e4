// Package sqlcore is the public façade over the query builder and whichever
// backend it is bound to, combining them into the single external surface
// spec §6 describes (`query`/`queryOne`/`queryField`/`queryColumn`/`exec`/
// `transaction`/`getDialect`/`quote`/`quoteIdentifier`, plus the builder
// constructors `fromSql`/`fromTable`). It stays backend-agnostic: an Engine
// wraps either vengine (in-memory) or driverbackend (a real connection)
// through the same Backend struct, the way the teacher's Client dispatches
// to whichever of sqlDB/mongoDB/redisDB it was constructed with (client.go
// WrapSQL/WrapMongo/WrapRedis) rather than hard-coding one.
package sqlcore // import "github.com/omniql-engine/sqlcore"

import (
	"context"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/query"
	"github.com/omniql-engine/sqlcore/render"
	"github.com/omniql-engine/sqlcore/table"
)

// Backend bundles everything an Engine needs from whatever is actually
// running queries: the executor closure itself, plus the handful of
// operations that can't be expressed generically over query.Rows
// (transaction semantics, dialect-specific quoting).
type Backend struct {
	Exec            query.Executor
	Dialect         render.Dialect
	Transact        func(ctx context.Context, task func(ctx context.Context) error) error
	Quote           func(ast.Value) string
	QuoteIdentifier func(string) string
	LastInsertID    func() int64
}

// Engine is the backend-agnostic façade a host application programs
// against (spec §6.1).
type Engine struct {
	backend Backend
}

// New builds an Engine over b. Hooks left nil get defaults: Transact runs
// the task directly, Quote and QuoteIdentifier render in b.Dialect, and
// LastInsertID returns 0, so a minimal Backend (just Exec and Dialect) is
// still usable.
func New(b Backend) *Engine {
	if b.Transact == nil {
		b.Transact = func(ctx context.Context, task func(ctx context.Context) error) error { return task(ctx) }
	}
	if b.Quote == nil {
		b.Quote = func(v ast.Value) string {
			s, _, err := render.Render(&ast.SelectStatement{Columns: []ast.ColumnNode{{Expr: &ast.Literal{Value: v}}}}, b.Dialect)
			if err != nil {
				return ""
			}
			if len(s) > 7 && s[:7] == "SELECT " {
				s = s[7:]
			}
			return s
		}
	}
	if b.QuoteIdentifier == nil {
		b.QuoteIdentifier = func(id string) string { return render.QuoteIdentifier(b.Dialect, id) }
	}
	if b.LastInsertID == nil {
		b.LastInsertID = func() int64 { return 0 }
	}
	return &Engine{backend: b}
}

// FromSQL builds a query.Query bound to this Engine's executor (spec §6.1
// `fromSql`).
func (e *Engine) FromSQL(sql string, params []ast.Value) *query.Query {
	return query.FromSQL(e.backend.Exec, sql, params)
}

// FromSQLNamed is FromSQL for `:name` placeholders.
func (e *Engine) FromSQLNamed(sql string, named map[string]ast.Value) *query.Query {
	return query.FromSQLNamed(e.backend.Exec, sql, named)
}

// FromTable builds a `SELECT * FROM name` base query (spec §6.1
// `fromTable`).
func (e *Engine) FromTable(name string) *query.Query {
	return query.FromTable(e.backend.Exec, name)
}

// Query runs sql/params through the bound backend and returns a row
// iterator (spec §6.1 `query`).
func (e *Engine) Query(ctx context.Context, sql string, params []ast.Value) (query.Rows, error) {
	return e.backend.Exec(ctx, sql, params, nil)
}

// QueryOne returns the first row as a table.Row, or nil when there were
// none (spec §6.1 `queryOne`).
func (e *Engine) QueryOne(ctx context.Context, sql string, params []ast.Value) (table.Row, error) {
	rows, err := e.Query(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanRow(rows)
}

// QueryField returns the first field of the first row (spec §6.1
// `queryField`).
func (e *Engine) QueryField(ctx context.Context, sql string, params []ast.Value) (ast.Value, error) {
	rows, err := e.Query(ctx, sql, params)
	if err != nil {
		return ast.Null(), err
	}
	defer rows.Close()
	if !rows.Next() {
		return ast.Null(), rows.Err()
	}
	var v any
	if err := rows.Scan(&v); err != nil {
		return ast.Value{}, err
	}
	return anyToValue(v), nil
}

// QueryColumn returns the first field of every row (spec §6.1
// `queryColumn`).
func (e *Engine) QueryColumn(ctx context.Context, sql string, params []ast.Value) ([]ast.Value, error) {
	rows, err := e.Query(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ast.Value
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, anyToValue(v))
	}
	return out, rows.Err()
}

// affecter is implemented by the non-row-shaped result every backend
// returns for a mutating statement (vengine's execResult, driverbackend's
// driverExecResult).
type affecter interface {
	Affected() int64
}

// Exec runs an INSERT/UPDATE/DELETE/DDL statement, returning the
// affected-row count (spec §6.1 `exec`).
func (e *Engine) Exec(ctx context.Context, sql string, params []ast.Value) (int64, error) {
	rows, err := e.backend.Exec(ctx, sql, params, nil)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if a, ok := rows.(affecter); ok {
		return a.Affected(), nil
	}
	return 0, nil
}

// Transaction delegates to the bound backend's transaction semantics (spec
// §6.1 `transaction`); the in-memory backend has no isolation to offer and
// simply runs task, while a driver-backed one would begin/commit/rollback a
// real transaction around it.
func (e *Engine) Transaction(ctx context.Context, task func(ctx context.Context) error) error {
	return e.backend.Transact(ctx, task)
}

func (e *Engine) GetDialect() render.Dialect       { return e.backend.Dialect }
func (e *Engine) Quote(v ast.Value) string         { return e.backend.Quote(v) }
func (e *Engine) QuoteIdentifier(id string) string { return e.backend.QuoteIdentifier(id) }
func (e *Engine) LastInsertID() int64              { return e.backend.LastInsertID() }

func scanRow(rows query.Rows) (table.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	dest := make([]*any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(any)
		ptrs[i] = dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := table.Row{}
	for i, c := range cols {
		row[c] = anyToValue(*dest[i])
	}
	return row, nil
}

func anyToValue(v any) ast.Value {
	switch t := v.(type) {
	case nil:
		return ast.Null()
	case int64:
		return ast.Int(t)
	case int:
		return ast.Int(int64(t))
	case float64:
		return ast.Float(t)
	case string:
		return ast.Str(t)
	case bool:
		return ast.Bool(t)
	case []byte:
		return ast.Binary(t)
	case ast.Value:
		return t
	default:
		return ast.Null()
	}
}
