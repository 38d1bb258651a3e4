// Package query implements the immutable, copy-on-write query builder
// (spec §3.2, §4.2). Every mutator clones the underlying AST when it is
// shared and returns a new Query; the receiver is never modified in place,
// mirroring the teacher's pattern of never mutating a models.Query that a
// caller might still hold (engine/translator and engine/builders always
// read their input Query, never write back into it).
package query

import (
	"context"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/parser"
)

// Executor runs a built query against whichever backend the Query was
// constructed over. When stmt is nil the executor runs sql/params directly
// (the fast path); when stmt is non-nil it must render/execute that AST
// instead (spec §6.4).
type Executor func(ctx context.Context, sql string, params []ast.Value, stmt ast.Statement) (Rows, error)

// Rows is the minimal row-iterator surface the builder consumes; concrete
// iterators (driver rows, virtual-engine rows) satisfy it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Err() error
	Close() error
}

// EntitySpec configures the hydration pipeline a terminal call feeds result
// rows through (spec §4.4); it is opaque to this package, which only carries
// it through to the executor/hydrator.
type EntitySpec struct {
	EntityClass  any
	Hydrator     func(Rows) (any, error)
	LoadCallback func(any)
}

// Query is the immutable builder value (spec §3.2). The zero value is not
// usable; construct with FromSQL or FromTable.
type Query struct {
	executor Executor

	sql    string
	params []ast.Value
	named  map[string]ast.Value

	stmt   ast.Statement // lazily parsed; nil until first mutation or read
	shared bool          // true once this AST may be referenced elsewhere

	availableColumns map[string]bool // nil = unrestricted; once set, only narrows
	entity           EntitySpec
}

// FromSQL stores raw SQL and positional params without parsing; parsing is
// deferred until the first operation that needs the AST (spec §4.2).
func FromSQL(exec Executor, sql string, params []ast.Value) *Query {
	return &Query{executor: exec, sql: sql, params: append([]ast.Value(nil), params...)}
}

// FromSQLNamed is FromSQL for a query whose placeholders are `:name` style.
func FromSQLNamed(exec Executor, sql string, named map[string]ast.Value) *Query {
	return &Query{executor: exec, sql: sql, named: named}
}

// FromTable builds a `SELECT * FROM <name>` base query over a registered
// virtual table.
func FromTable(exec Executor, name string) *Query {
	return FromSQL(exec, "SELECT * FROM "+name, nil)
}

// clone returns a private copy of q; resolved() on the clone always re-resolves
// against the clone's own stmt field so later mutation never touches q.
func (q *Query) clone() *Query {
	c := *q
	c.params = append([]ast.Value(nil), q.params...)
	if q.availableColumns != nil {
		c.availableColumns = make(map[string]bool, len(q.availableColumns))
		for k, v := range q.availableColumns {
			c.availableColumns[k] = v
		}
	}
	c.shared = false
	return &c
}

// resolved returns the query's AST, parsing lazily from sql/params if no
// AST has been built yet. Parsing goes through parser.ParseCached (spec §2
// "Parser (cached)"), so repeated resolution of the same source text across
// builder instances doesn't re-run the lexer/parser; since the cached
// statement is shared, it is cloned before placeholders are bound in place.
func (q *Query) resolved() (ast.Statement, error) {
	if q.stmt != nil {
		return q.stmt, nil
	}
	stmt, err := parser.ParseCached(q.sql)
	if err != nil {
		return nil, err
	}
	stmt = stmt.Clone()
	if err := bindParams(stmt, q.params, q.named); err != nil {
		return nil, err
	}
	return stmt, nil
}

// ensureMutable returns (clone, private-ast) such that mutating private-ast
// in place is safe: the clone owns it exclusively (copy-on-write, spec §4.2
// "Copy-on-write discipline").
func (q *Query) ensureMutable() (*Query, ast.Statement, error) {
	stmt, err := q.resolved()
	if err != nil {
		return nil, nil, err
	}
	c := q.clone()
	if q.shared || q.stmt != nil {
		stmt = stmt.Clone()
	}
	c.stmt = stmt
	c.sql = ""
	c.params = nil
	return c, stmt, nil
}

// markShared flags q's AST as referenced elsewhere (e.g. embedded as a
// subquery into another builder), forcing the next mutator on either side to
// clone before writing.
func (q *Query) markShared() *Query {
	q.shared = true
	return q
}

func selectOf(stmt ast.Statement) (*ast.SelectStatement, bool) {
	switch n := stmt.(type) {
	case *ast.SelectStatement:
		return n, true
	default:
		return nil, false
	}
}

// isPaginated reports whether stmt currently carries a LIMIT or OFFSET,
// used to decide whether the pagination-as-barrier rule applies (spec
// §4.2 "Pagination-as-barrier rule").
func isPaginated(stmt ast.Statement) bool {
	s, ok := selectOf(stmt)
	return ok && (s.Limit != nil || s.Offset != nil)
}

// barrier wraps stmt as `SELECT * FROM (stmt) AS _q` when it is paginated,
// so a subsequent row-membership-changing operation filters the paginated
// rows rather than the pre-paginated set.
func barrier(stmt ast.Statement) ast.Statement {
	if !isPaginated(stmt) {
		return stmt
	}
	return &ast.SelectStatement{
		Columns: []ast.ColumnNode{{Expr: &ast.Identifier{Wildcard: true}}},
		From:    &ast.SubqueryRef{Query: stmt, Alias: "_q"},
	}
}

// bindParams resolves, in place, every Placeholder that
// ast.CollectPlaceholders finds in stmt (placeholders inside nested
// subqueries, derived tables and CTE bodies are not reached):
// positional `?` consume params left-to-right, named `:name` look up named
// (spec §6.3). A short positional list raises NotEnoughParameters; a
// missing named key raises MissingParameter.
func bindParams(stmt ast.Statement, params []ast.Value, named map[string]ast.Value) error {
	placeholders := ast.CollectPlaceholders(stmt)
	pos := 0
	for _, p := range placeholders {
		if p.Bound {
			continue
		}
		if p.Name != "" {
			v, ok := named[p.Name]
			if !ok {
				return errs.New(errs.MissingParameter, p.Name, "missing value for named parameter :%s", p.Name)
			}
			p.Value = v
			p.Bound = true
			continue
		}
		if pos >= len(params) {
			return errs.New(errs.NotEnoughParameters, "", "query requires more positional parameters than %d supplied", len(params))
		}
		p.Value = params[pos]
		p.Bound = true
		pos++
	}
	return nil
}
