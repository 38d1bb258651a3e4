// Package table implements the lazy, composable row-source abstraction that
// the virtual engine evaluates queries against (spec §3.3). Each operator
// returns a new Table wrapping (or pushing into) the receiver, mirroring the
// teacher's builder pattern of returning a new value per call rather than
// mutating the receiver (engine/builders/*, where every With*/And* method
// on a statement builder returns a fresh copy).
package table

import (
	"sort"

	"github.com/google/uuid"
	"github.com/omniql-engine/sqlcore/ast"
)

// Row is a single record keyed by column name.
type Row map[string]ast.Value

// RowID identifies a row within its owning table; virtual tables without a
// declared primary key are keyed by a generated UUID (spec §6.5 / DOMAIN
// STACK: google/uuid row-id generation).
type RowID string

// Table is the read contract every row source satisfies (spec §3.3).
type Table interface {
	// Rows yields every (id, row) pair currently visible through this table.
	Rows() ([]RowID, []Row, error)
	// ColumnDefs returns this table's declared columns by name.
	ColumnDefs() map[string]ast.ColumnDef

	Eq(column string, v ast.Value) Table
	Lt(column string, v ast.Value) Table
	Lte(column string, v ast.Value) Table
	Gt(column string, v ast.Value) Table
	Gte(column string, v ast.Value) Table
	Like(column string, pattern string) Table
	In(column string, values []ast.Value) Table
	Except(other Table) Table
	Or(predicates ...Predicate) Table

	Order(items []OrderSpec) Table
	Limit(n int) Table
	Offset(n int) Table
	Project(columns []string) Table
	Distinct() Table
	WithAlias(alias string) Table
	Union(other Table, all bool) Table
}

// MutableTable additionally accepts writes; only the base in-memory table
// implements it (wrapper tables are read-only views, spec §3.3).
type MutableTable interface {
	Table
	Insert(row Row) (RowID, error)
	Update(ids []RowID, changes map[string]ast.Value) (int64, error)
	Delete(ids []RowID) (int64, error)
}

// Predicate is a conjunction of simple column comparisons, the unit Or()
// combines disjunctively (spec §4.3.2 "OR at top level").
type Predicate struct {
	Conjuncts []func(Row) bool
}

func (p Predicate) matches(r Row) bool {
	for _, c := range p.Conjuncts {
		if !c(r) {
			return false
		}
	}
	return true
}

type OrderSpec struct {
	Column string
	Desc   bool
}

// Base is the concrete in-memory mutable table: a flat slice of rows keyed
// by generated or declared-primary-key row ids.
type Base struct {
	name    string
	alias   string
	columns map[string]ast.ColumnDef
	order   []string // column declaration order
	ids     []RowID
	rows    []Row
	pk      string // declared primary-key column name, "" if none
}

// NewBase constructs an empty mutable table from a column list (spec
// §4.3.6 CREATE TABLE builds exactly this shape).
func NewBase(name string, cols []ast.ColumnDef) *Base {
	b := &Base{name: name, columns: make(map[string]ast.ColumnDef, len(cols))}
	for _, c := range cols {
		b.columns[c.Name] = c
		b.order = append(b.order, c.Name)
		if c.Index == ast.IndexPrimary {
			b.pk = c.Name
		}
	}
	return b
}

func (b *Base) ColumnDefs() map[string]ast.ColumnDef { return b.columns }

// FromRows builds a read-only Base over already-materialised rows, used by
// the virtual engine to wrap a derived subquery's or CTE's result set as a
// Table so further operators (filters, joins, ordering) compose over it
// exactly like a registered table (spec §4.3.1, §4.3.2 "derived subquery").
// It carries no declared columns, so index-aware IN (spec §4.3.2) never
// triggers against it — only base tables expose index hints.
func FromRows(rows []Row) *Base {
	b := &Base{columns: make(map[string]ast.ColumnDef)}
	for _, r := range rows {
		id := RowID(uuid.New().String())
		b.ids = append(b.ids, id)
		b.rows = append(b.rows, r)
	}
	return b
}

func (b *Base) Rows() ([]RowID, []Row, error) {
	return append([]RowID(nil), b.ids...), append([]Row(nil), b.rows...), nil
}

func (b *Base) Insert(row Row) (RowID, error) {
	var id RowID
	if b.pk != "" {
		if v, ok := row[b.pk]; ok {
			id = RowID(valueKey(v))
		}
	}
	if id == "" {
		id = RowID(uuid.New().String())
	}
	b.ids = append(b.ids, id)
	b.rows = append(b.rows, row)
	return id, nil
}

func (b *Base) indexOf(id RowID) int {
	for i, x := range b.ids {
		if x == id {
			return i
		}
	}
	return -1
}

func (b *Base) Update(ids []RowID, changes map[string]ast.Value) (int64, error) {
	var n int64
	for _, id := range ids {
		i := b.indexOf(id)
		if i < 0 {
			continue
		}
		row := Row{}
		for k, v := range b.rows[i] {
			row[k] = v
		}
		for k, v := range changes {
			row[k] = v
		}
		b.rows[i] = row
		n++
	}
	return n, nil
}

func (b *Base) Delete(ids []RowID) (int64, error) {
	remove := make(map[RowID]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	var newIDs []RowID
	var newRows []Row
	var n int64
	for i, id := range b.ids {
		if remove[id] {
			n++
			continue
		}
		newIDs = append(newIDs, id)
		newRows = append(newRows, b.rows[i])
	}
	b.ids, b.rows = newIDs, newRows
	return n, nil
}

func (b *Base) Eq(column string, v ast.Value) Table      { return &filterTable{Table: b, pred: eqPred(column, v)} }
func (b *Base) Lt(column string, v ast.Value) Table       { return &filterTable{Table: b, pred: cmpPred(column, v, less)} }
func (b *Base) Lte(column string, v ast.Value) Table      { return &filterTable{Table: b, pred: cmpPred(column, v, lessOrEqual)} }
func (b *Base) Gt(column string, v ast.Value) Table       { return &filterTable{Table: b, pred: cmpPred(column, v, greater)} }
func (b *Base) Gte(column string, v ast.Value) Table      { return &filterTable{Table: b, pred: cmpPred(column, v, greaterOrEqual)} }
func (b *Base) Like(column, pattern string) Table         { return &filterTable{Table: b, pred: likePred(column, pattern)} }
func (b *Base) In(column string, values []ast.Value) Table {
	return &filterTable{Table: b, pred: inPred(column, values)}
}
func (b *Base) Except(other Table) Table { return &exceptTable{left: b, right: other} }
func (b *Base) Or(predicates ...Predicate) Table {
	return &filterTable{Table: b, pred: orPred(predicates)}
}
func (b *Base) Order(items []OrderSpec) Table  { return &orderTable{Table: b, items: items} }
func (b *Base) Limit(n int) Table              { return &limitOffsetTable{Table: b, limit: n, hasLimit: true} }
func (b *Base) Offset(n int) Table             { return &limitOffsetTable{Table: b, offset: n} }
func (b *Base) Project(columns []string) Table { return &projectTable{Table: b, columns: columns} }
func (b *Base) Distinct() Table                { return &distinctTable{Table: b} }
func (b *Base) WithAlias(alias string) Table   { c := *b; c.alias = alias; return &c }
func (b *Base) Union(other Table, all bool) Table {
	return &unionTable{left: b, right: other, all: all}
}

func valueKey(v ast.Value) string {
	switch v.Kind {
	case ast.KindInt:
		return "i:" + itoa(v.Int)
	case ast.KindString:
		return "s:" + v.Str
	default:
		return "v"
	}
}

func itoa(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// sortRows reorders ids and rows in lockstep by items.
func sortRows(ids []RowID, rows []Row, items []OrderSpec) {
	perm := make([]int, len(rows))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		i, j := perm[a], perm[b]
		for _, it := range items {
			c := compareValues(rows[i][it.Column], rows[j][it.Column])
			if c == 0 {
				continue
			}
			if it.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	sortedIDs := make([]RowID, len(ids))
	sortedRows := make([]Row, len(rows))
	for newIdx, oldIdx := range perm {
		sortedIDs[newIdx] = ids[oldIdx]
		sortedRows[newIdx] = rows[oldIdx]
	}
	copy(ids, sortedIDs)
	copy(rows, sortedRows)
}
