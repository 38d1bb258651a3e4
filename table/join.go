package table

import "github.com/omniql-engine/sqlcore/ast"

// Matcher evaluates a JOIN's ON condition against a candidate (left, right)
// row pair; the virtual engine supplies it from the ON AST (spec §4.3.5).
type Matcher func(left, right Row) (bool, error)

// joinTable materialises the cartesian product of left and right, keeping
// only pairs Matcher accepts (or, for outer joins, null-extending rows that
// never matched). It implements Table like every other wrapper so further
// operators (order, limit, project, ...) compose the same way (spec §3.3).
type joinTable struct {
	left, right           Table
	leftAlias, rightAlias string
	kind                  ast.JoinKind
	matcher               Matcher
}

// NewJoin builds the wrapper table for one JOIN clause.
func NewJoin(left Table, leftAlias string, right Table, rightAlias string, kind ast.JoinKind, matcher Matcher) Table {
	return &joinTable{left: left, right: right, leftAlias: leftAlias, rightAlias: rightAlias, kind: kind, matcher: matcher}
}

func (j *joinTable) ColumnDefs() map[string]ast.ColumnDef {
	out := make(map[string]ast.ColumnDef)
	for k, v := range j.left.ColumnDefs() {
		out[k] = v
	}
	for k, v := range j.right.ColumnDefs() {
		out[k] = v
	}
	return out
}

func mergeRows(left Row, leftAlias string, right Row, rightAlias string) Row {
	out := Row{}
	for k, v := range left {
		out[k] = v
		if leftAlias != "" {
			out[leftAlias+"."+k] = v
		}
	}
	for k, v := range right {
		out[k] = v
		if rightAlias != "" {
			out[rightAlias+"."+k] = v
		}
	}
	return out
}

// nullRow returns a row with every column of cols set to NULL, used to
// null-extend the unmatched side of a LEFT/RIGHT/FULL join.
func nullRow(cols map[string]ast.ColumnDef) Row {
	r := Row{}
	for name := range cols {
		r[name] = ast.Null()
	}
	return r
}

func (j *joinTable) Rows() ([]RowID, []Row, error) {
	lids, lrows, err := j.left.Rows()
	if err != nil {
		return nil, nil, err
	}
	rids, rrows, err := j.right.Rows()
	if err != nil {
		return nil, nil, err
	}
	rightCols := j.right.ColumnDefs()
	leftCols := j.left.ColumnDefs()

	var outIDs []RowID
	var outRows []Row

	switch j.kind {
	case ast.JoinCross:
		for li, lr := range lrows {
			for ri, rr := range rrows {
				outIDs = append(outIDs, lids[li]+"|"+rids[ri])
				outRows = append(outRows, mergeRows(lr, j.leftAlias, rr, j.rightAlias))
			}
		}
		return outIDs, outRows, nil
	}

	rightMatched := make([]bool, len(rrows))
	for li, lr := range lrows {
		matchedAny := false
		for ri, rr := range rrows {
			ok, err := j.matcher(lr, rr)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
			matchedAny = true
			rightMatched[ri] = true
			outIDs = append(outIDs, lids[li]+"|"+rids[ri])
			outRows = append(outRows, mergeRows(lr, j.leftAlias, rr, j.rightAlias))
		}
		if !matchedAny && (j.kind == ast.JoinLeft || j.kind == ast.JoinFull) {
			outIDs = append(outIDs, lids[li]+"|_")
			outRows = append(outRows, mergeRows(lr, j.leftAlias, nullRow(rightCols), j.rightAlias))
		}
	}
	if j.kind == ast.JoinRight || j.kind == ast.JoinFull {
		for ri, rr := range rrows {
			if rightMatched[ri] {
				continue
			}
			outIDs = append(outIDs, "_|"+rids[ri])
			outRows = append(outRows, mergeRows(nullRow(leftCols), j.leftAlias, rr, j.rightAlias))
		}
	}
	return outIDs, outRows, nil
}

func (j *joinTable) Eq(c string, v ast.Value) Table  { return &filterTable{Table: j, pred: eqPred(c, v)} }
func (j *joinTable) Lt(c string, v ast.Value) Table  { return &filterTable{Table: j, pred: cmpPred(c, v, less)} }
func (j *joinTable) Lte(c string, v ast.Value) Table { return &filterTable{Table: j, pred: cmpPred(c, v, lessOrEqual)} }
func (j *joinTable) Gt(c string, v ast.Value) Table  { return &filterTable{Table: j, pred: cmpPred(c, v, greater)} }
func (j *joinTable) Gte(c string, v ast.Value) Table { return &filterTable{Table: j, pred: cmpPred(c, v, greaterOrEqual)} }
func (j *joinTable) Like(c, p string) Table          { return &filterTable{Table: j, pred: likePred(c, p)} }
func (j *joinTable) In(c string, vs []ast.Value) Table {
	return &filterTable{Table: j, pred: inPred(c, vs)}
}
func (j *joinTable) Except(other Table) Table { return &exceptTable{left: j, right: other} }
func (j *joinTable) Or(ps ...Predicate) Table { return &filterTable{Table: j, pred: orPred(ps)} }
func (j *joinTable) Order(items []OrderSpec) Table { return &orderTable{Table: j, items: items} }
func (j *joinTable) Limit(n int) Table             { return &limitOffsetTable{Table: j, limit: n, hasLimit: true} }
func (j *joinTable) Offset(n int) Table            { return &limitOffsetTable{Table: j, offset: n} }
func (j *joinTable) Project(cols []string) Table   { return &projectTable{Table: j, columns: cols} }
func (j *joinTable) Distinct() Table               { return &distinctTable{Table: j} }
func (j *joinTable) WithAlias(a string) Table      { return j }
func (j *joinTable) Union(other Table, all bool) Table {
	return &unionTable{left: j, right: other, all: all}
}
