package table

import (
	"encoding/json"

	"github.com/omniql-engine/sqlcore/ast"
)

// filterTable wraps an inner table, retaining only rows for which pred is
// true; it delegates every further operator back to itself (each operator
// returns a new wrapper per spec §3.3 "returns a new table that may
// push-down or wrap").
type filterTable struct {
	Table
	pred func(Row) bool
}

func (f *filterTable) Rows() ([]RowID, []Row, error) {
	ids, rows, err := f.Table.Rows()
	if err != nil {
		return nil, nil, err
	}
	var outIDs []RowID
	var outRows []Row
	for i, r := range rows {
		if f.pred(r) {
			outIDs = append(outIDs, ids[i])
			outRows = append(outRows, r)
		}
	}
	return outIDs, outRows, nil
}

func (f *filterTable) Eq(c string, v ast.Value) Table  { return &filterTable{Table: f, pred: eqPred(c, v)} }
func (f *filterTable) Lt(c string, v ast.Value) Table  { return &filterTable{Table: f, pred: cmpPred(c, v, less)} }
func (f *filterTable) Lte(c string, v ast.Value) Table { return &filterTable{Table: f, pred: cmpPred(c, v, lessOrEqual)} }
func (f *filterTable) Gt(c string, v ast.Value) Table  { return &filterTable{Table: f, pred: cmpPred(c, v, greater)} }
func (f *filterTable) Gte(c string, v ast.Value) Table { return &filterTable{Table: f, pred: cmpPred(c, v, greaterOrEqual)} }
func (f *filterTable) Like(c, p string) Table          { return &filterTable{Table: f, pred: likePred(c, p)} }
func (f *filterTable) In(c string, vs []ast.Value) Table {
	return &filterTable{Table: f, pred: inPred(c, vs)}
}
func (f *filterTable) Except(other Table) Table { return &exceptTable{left: f, right: other} }
func (f *filterTable) Or(ps ...Predicate) Table { return &filterTable{Table: f, pred: orPred(ps)} }
func (f *filterTable) Order(items []OrderSpec) Table { return &orderTable{Table: f, items: items} }
func (f *filterTable) Limit(n int) Table             { return &limitOffsetTable{Table: f, limit: n, hasLimit: true} }
func (f *filterTable) Offset(n int) Table            { return &limitOffsetTable{Table: f, offset: n} }
func (f *filterTable) Project(cols []string) Table   { return &projectTable{Table: f, columns: cols} }
func (f *filterTable) Distinct() Table               { return &distinctTable{Table: f} }
func (f *filterTable) WithAlias(a string) Table      { return f.Table.WithAlias(a) }
func (f *filterTable) Union(other Table, all bool) Table {
	return &unionTable{left: f, right: other, all: all}
}

// orderTable sorts the inner table's rows by items.
type orderTable struct {
	Table
	items []OrderSpec
}

func (o *orderTable) Rows() ([]RowID, []Row, error) {
	ids, rows, err := o.Table.Rows()
	if err != nil {
		return nil, nil, err
	}
	ids = append([]RowID(nil), ids...)
	rows = append([]Row(nil), rows...)
	sortRows(ids, rows, o.items)
	return ids, rows, nil
}

func (o *orderTable) Eq(c string, v ast.Value) Table  { return &filterTable{Table: o, pred: eqPred(c, v)} }
func (o *orderTable) Lt(c string, v ast.Value) Table  { return &filterTable{Table: o, pred: cmpPred(c, v, less)} }
func (o *orderTable) Lte(c string, v ast.Value) Table { return &filterTable{Table: o, pred: cmpPred(c, v, lessOrEqual)} }
func (o *orderTable) Gt(c string, v ast.Value) Table  { return &filterTable{Table: o, pred: cmpPred(c, v, greater)} }
func (o *orderTable) Gte(c string, v ast.Value) Table { return &filterTable{Table: o, pred: cmpPred(c, v, greaterOrEqual)} }
func (o *orderTable) Like(c, p string) Table          { return &filterTable{Table: o, pred: likePred(c, p)} }
func (o *orderTable) In(c string, vs []ast.Value) Table {
	return &filterTable{Table: o, pred: inPred(c, vs)}
}
func (o *orderTable) Except(other Table) Table { return &exceptTable{left: o, right: other} }
func (o *orderTable) Or(ps ...Predicate) Table { return &filterTable{Table: o, pred: orPred(ps)} }
func (o *orderTable) Order(items []OrderSpec) Table { return &orderTable{Table: o.Table, items: items} }
func (o *orderTable) Limit(n int) Table             { return &limitOffsetTable{Table: o, limit: n, hasLimit: true} }
func (o *orderTable) Offset(n int) Table            { return &limitOffsetTable{Table: o, offset: n} }
func (o *orderTable) Project(cols []string) Table   { return &projectTable{Table: o, columns: cols} }
func (o *orderTable) Distinct() Table               { return &distinctTable{Table: o} }
func (o *orderTable) WithAlias(a string) Table      { return o.Table.WithAlias(a) }
func (o *orderTable) Union(other Table, all bool) Table {
	return &unionTable{left: o, right: other, all: all}
}

// limitOffsetTable applies OFFSET then LIMIT (spec §4.3.2 step 6).
type limitOffsetTable struct {
	Table
	offset   int
	limit    int
	hasLimit bool
}

func (l *limitOffsetTable) Rows() ([]RowID, []Row, error) {
	ids, rows, err := l.Table.Rows()
	if err != nil {
		return nil, nil, err
	}
	if l.offset > 0 {
		if l.offset >= len(rows) {
			return nil, nil, nil
		}
		ids, rows = ids[l.offset:], rows[l.offset:]
	}
	if l.hasLimit && l.limit < len(rows) {
		if l.limit < 0 {
			l.limit = 0
		}
		ids, rows = ids[:l.limit], rows[:l.limit]
	}
	return ids, rows, nil
}

// Limit/Offset on an already-limited table compose the way spec §4.2's
// limit/offset narrowing expects when a table (not a query) is chained.
func (l *limitOffsetTable) Limit(n int) Table {
	if l.hasLimit && l.limit < n {
		n = l.limit
	}
	return &limitOffsetTable{Table: l.Table, offset: l.offset, limit: n, hasLimit: true}
}

func (l *limitOffsetTable) Offset(n int) Table {
	newOffset := l.offset + n
	newLimit := l.limit - n
	if newLimit < 0 {
		newLimit = 0
	}
	return &limitOffsetTable{Table: l.Table, offset: newOffset, limit: newLimit, hasLimit: l.hasLimit}
}

func (l *limitOffsetTable) Eq(c string, v ast.Value) Table  { return &filterTable{Table: l, pred: eqPred(c, v)} }
func (l *limitOffsetTable) Lt(c string, v ast.Value) Table  { return &filterTable{Table: l, pred: cmpPred(c, v, less)} }
func (l *limitOffsetTable) Lte(c string, v ast.Value) Table { return &filterTable{Table: l, pred: cmpPred(c, v, lessOrEqual)} }
func (l *limitOffsetTable) Gt(c string, v ast.Value) Table  { return &filterTable{Table: l, pred: cmpPred(c, v, greater)} }
func (l *limitOffsetTable) Gte(c string, v ast.Value) Table { return &filterTable{Table: l, pred: cmpPred(c, v, greaterOrEqual)} }
func (l *limitOffsetTable) Like(c, p string) Table          { return &filterTable{Table: l, pred: likePred(c, p)} }
func (l *limitOffsetTable) In(c string, vs []ast.Value) Table {
	return &filterTable{Table: l, pred: inPred(c, vs)}
}
func (l *limitOffsetTable) Except(other Table) Table { return &exceptTable{left: l, right: other} }
func (l *limitOffsetTable) Or(ps ...Predicate) Table { return &filterTable{Table: l, pred: orPred(ps)} }
func (l *limitOffsetTable) Order(items []OrderSpec) Table { return &orderTable{Table: l, items: items} }
func (l *limitOffsetTable) Project(cols []string) Table   { return &projectTable{Table: l, columns: cols} }
func (l *limitOffsetTable) Distinct() Table               { return &distinctTable{Table: l} }
func (l *limitOffsetTable) WithAlias(a string) Table      { return l.Table.WithAlias(a) }
func (l *limitOffsetTable) Union(other Table, all bool) Table {
	return &unionTable{left: l, right: other, all: all}
}

// projectTable narrows visible columns to the requested list, or copies
// `alias.*` wholesale when columns is nil (SELECT *).
type projectTable struct {
	Table
	columns []string
}

func (p *projectTable) Rows() ([]RowID, []Row, error) {
	ids, rows, err := p.Table.Rows()
	if err != nil {
		return nil, nil, err
	}
	if p.columns == nil {
		return ids, rows, nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		nr := Row{}
		for _, c := range p.columns {
			nr[c] = r[c]
		}
		out[i] = nr
	}
	return ids, out, nil
}

// distinctTable deduplicates rows by their serialised projection (spec
// §4.3.2 step 7 "DISTINCT deduplicates serialised projected rows").
type distinctTable struct {
	Table
}

func (d *distinctTable) Rows() ([]RowID, []Row, error) {
	ids, rows, err := d.Table.Rows()
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]bool, len(rows))
	var outIDs []RowID
	var outRows []Row
	for i, r := range rows {
		key := serializeRow(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		outIDs = append(outIDs, ids[i])
		outRows = append(outRows, r)
	}
	return outIDs, outRows, nil
}

func serializeRow(r Row) string {
	simplified := make(map[string]any, len(r))
	for k, v := range r {
		simplified[k] = v
	}
	b, _ := json.Marshal(simplified)
	return string(b)
}

// unionTable combines two tables via UNION/UNION ALL (the virtual engine
// uses it for index-aware IN push-down; UnionNode statements are evaluated
// over materialised rows in vengine instead).
type unionTable struct {
	left, right Table
	all         bool
}

func (u *unionTable) ColumnDefs() map[string]ast.ColumnDef { return u.left.ColumnDefs() }

func (u *unionTable) Rows() ([]RowID, []Row, error) {
	lids, lrows, err := u.left.Rows()
	if err != nil {
		return nil, nil, err
	}
	rids, rrows, err := u.right.Rows()
	if err != nil {
		return nil, nil, err
	}
	ids := append(append([]RowID(nil), lids...), rids...)
	rows := append(append([]Row(nil), lrows...), rrows...)
	if u.all {
		return ids, rows, nil
	}
	return dedupe(ids, rows)
}

func dedupe(ids []RowID, rows []Row) ([]RowID, []Row, error) {
	seen := make(map[string]bool, len(rows))
	var outIDs []RowID
	var outRows []Row
	for i, r := range rows {
		key := serializeRow(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		outIDs = append(outIDs, ids[i])
		outRows = append(outRows, r)
	}
	return outIDs, outRows, nil
}

func (u *unionTable) passthroughOps() {} // see methods below; kept for doc anchor

func (u *unionTable) Eq(c string, v ast.Value) Table  { return &filterTable{Table: u, pred: eqPred(c, v)} }
func (u *unionTable) Lt(c string, v ast.Value) Table  { return &filterTable{Table: u, pred: cmpPred(c, v, less)} }
func (u *unionTable) Lte(c string, v ast.Value) Table { return &filterTable{Table: u, pred: cmpPred(c, v, lessOrEqual)} }
func (u *unionTable) Gt(c string, v ast.Value) Table  { return &filterTable{Table: u, pred: cmpPred(c, v, greater)} }
func (u *unionTable) Gte(c string, v ast.Value) Table { return &filterTable{Table: u, pred: cmpPred(c, v, greaterOrEqual)} }
func (u *unionTable) Like(c, p string) Table          { return &filterTable{Table: u, pred: likePred(c, p)} }
func (u *unionTable) In(c string, vs []ast.Value) Table {
	return &filterTable{Table: u, pred: inPred(c, vs)}
}
func (u *unionTable) Except(other Table) Table { return &exceptTable{left: u, right: other} }
func (u *unionTable) Or(ps ...Predicate) Table { return &filterTable{Table: u, pred: orPred(ps)} }
func (u *unionTable) Order(items []OrderSpec) Table { return &orderTable{Table: u, items: items} }
func (u *unionTable) Limit(n int) Table             { return &limitOffsetTable{Table: u, limit: n, hasLimit: true} }
func (u *unionTable) Offset(n int) Table            { return &limitOffsetTable{Table: u, offset: n} }
func (u *unionTable) Project(cols []string) Table   { return &projectTable{Table: u, columns: cols} }
func (u *unionTable) Distinct() Table               { return &distinctTable{Table: u} }
func (u *unionTable) WithAlias(a string) Table      { return u }
func (u *unionTable) Union(other Table, all bool) Table {
	return &unionTable{left: u, right: other, all: all}
}

// exceptTable yields rows of left whose serialised projection does not
// appear in right (spec §3.3 `except`; also backs `NOT BETWEEN`/`IS NOT
// NULL` push-down in §4.3.2, which compute the positive table then except
// it).
type exceptTable struct {
	left, right Table
}

func (e *exceptTable) ColumnDefs() map[string]ast.ColumnDef { return e.left.ColumnDefs() }

func (e *exceptTable) Rows() ([]RowID, []Row, error) {
	lids, lrows, err := e.left.Rows()
	if err != nil {
		return nil, nil, err
	}
	_, rrows, err := e.right.Rows()
	if err != nil {
		return nil, nil, err
	}
	exclude := make(map[string]bool, len(rrows))
	for _, r := range rrows {
		exclude[serializeRow(r)] = true
	}
	var outIDs []RowID
	var outRows []Row
	for i, r := range lrows {
		if exclude[serializeRow(r)] {
			continue
		}
		outIDs = append(outIDs, lids[i])
		outRows = append(outRows, r)
	}
	return outIDs, outRows, nil
}

func (e *exceptTable) Eq(c string, v ast.Value) Table  { return &filterTable{Table: e, pred: eqPred(c, v)} }
func (e *exceptTable) Lt(c string, v ast.Value) Table  { return &filterTable{Table: e, pred: cmpPred(c, v, less)} }
func (e *exceptTable) Lte(c string, v ast.Value) Table { return &filterTable{Table: e, pred: cmpPred(c, v, lessOrEqual)} }
func (e *exceptTable) Gt(c string, v ast.Value) Table  { return &filterTable{Table: e, pred: cmpPred(c, v, greater)} }
func (e *exceptTable) Gte(c string, v ast.Value) Table { return &filterTable{Table: e, pred: cmpPred(c, v, greaterOrEqual)} }
func (e *exceptTable) Like(c, p string) Table          { return &filterTable{Table: e, pred: likePred(c, p)} }
func (e *exceptTable) In(c string, vs []ast.Value) Table {
	return &filterTable{Table: e, pred: inPred(c, vs)}
}
func (e *exceptTable) Except(other Table) Table { return &exceptTable{left: e, right: other} }
func (e *exceptTable) Or(ps ...Predicate) Table { return &filterTable{Table: e, pred: orPred(ps)} }
func (e *exceptTable) Order(items []OrderSpec) Table { return &orderTable{Table: e, items: items} }
func (e *exceptTable) Limit(n int) Table             { return &limitOffsetTable{Table: e, limit: n, hasLimit: true} }
func (e *exceptTable) Offset(n int) Table            { return &limitOffsetTable{Table: e, offset: n} }
func (e *exceptTable) Project(cols []string) Table   { return &projectTable{Table: e, columns: cols} }
func (e *exceptTable) Distinct() Table               { return &distinctTable{Table: e} }
func (e *exceptTable) WithAlias(a string) Table      { return e }
func (e *exceptTable) Union(other Table, all bool) Table {
	return &unionTable{left: e, right: other, all: all}
}
