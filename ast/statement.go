package ast

// Statement is implemented by every top-level parse result: SELECT-like
// statements (SelectStatement, WithStatement, UnionNode) and DML/DDL.
type Statement interface {
	stmtNode()
	Clone() Statement
}

// ColumnKind tags the mapped type of a declared column (spec §3.3, §4.3.6).
type ColumnKind int

const (
	ColInt ColumnKind = iota
	ColFloat
	ColDecimal
	ColText
	ColBinary
	ColDate
	ColTime
	ColDateTime
)

// IndexHint tags how a declared column participates in lookups.
type IndexHint int

const (
	IndexNone IndexHint = iota
	IndexUnique
	IndexPrimary
	IndexIndex
)

type ColumnDef struct {
	Name  string
	Kind  ColumnKind
	Index IndexHint
	Scale int // DECIMAL/NUMERIC scale, -1 when unspecified
}

type ColumnNode struct {
	Expr  Expr
	Alias string
}

func (c ColumnNode) Clone() ColumnNode {
	return ColumnNode{Expr: c.Expr.Clone(), Alias: c.Alias}
}

func cloneColumns(in []ColumnNode) []ColumnNode {
	if in == nil {
		return nil
	}
	out := make([]ColumnNode, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

// JoinKind enumerates the supported JOIN flavours (spec §4.3.5).
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

// FromItem is the FROM target of a SELECT: a named table or a derived
// subquery, each optionally aliased.
type FromItem interface {
	fromNode()
	Clone() FromItem
}

type TableRef struct {
	Name  string
	Alias string
}

func (*TableRef) fromNode() {}
func (t *TableRef) Clone() FromItem { c := *t; return &c }

type SubqueryRef struct {
	Query Statement
	Alias string
}

func (*SubqueryRef) fromNode() {}
func (s *SubqueryRef) Clone() FromItem { return &SubqueryRef{Query: s.Query.Clone(), Alias: s.Alias} }

type JoinNode struct {
	Kind JoinKind
	Right FromItem
	On    Expr // nil for CROSS JOIN
}

func (j JoinNode) Clone() JoinNode {
	c := JoinNode{Kind: j.Kind, Right: j.Right.Clone()}
	if j.On != nil {
		c.On = j.On.Clone()
	}
	return c
}

func cloneJoins(in []JoinNode) []JoinNode {
	if in == nil {
		return nil
	}
	out := make([]JoinNode, len(in))
	for i, j := range in {
		out[i] = j.Clone()
	}
	return out
}

// SelectStatement is the workhorse node (spec §3.1).
type SelectStatement struct {
	Distinct bool
	Columns  []ColumnNode
	From     FromItem // nil for `SELECT <expr>` with no FROM
	Joins    []JoinNode
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
}

func (*SelectStatement) stmtNode() {}
func (s *SelectStatement) Clone() Statement {
	c := &SelectStatement{
		Distinct: s.Distinct,
		Columns:  cloneColumns(s.Columns),
		Joins:    cloneJoins(s.Joins),
		GroupBy:  cloneExprs(s.GroupBy),
		OrderBy:  cloneOrderBy(s.OrderBy),
	}
	if s.From != nil {
		c.From = s.From.Clone()
	}
	if s.Where != nil {
		c.Where = s.Where.Clone()
	}
	if s.Having != nil {
		c.Having = s.Having.Clone()
	}
	if s.Limit != nil {
		c.Limit = s.Limit.Clone()
	}
	if s.Offset != nil {
		c.Offset = s.Offset.Clone()
	}
	return c
}

// HasAggregates reports whether any projected column (at top level, not
// inside a subquery) contains an aggregate function call.
func (s *SelectStatement) HasAggregates() bool {
	for _, c := range s.Columns {
		if containsAggregate(c.Expr) {
			return true
		}
	}
	return false
}

func containsAggregate(e Expr) bool {
	switch n := e.(type) {
	case *FuncCall:
		if n.IsAggregate() {
			return true
		}
		for _, a := range n.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case *BinaryOp:
		return containsAggregate(n.Left) || containsAggregate(n.Right)
	case *UnaryOp:
		return containsAggregate(n.Operand)
	case *CaseExpr:
		for _, w := range n.Whens {
			if containsAggregate(w.Cond) || containsAggregate(w.Then) {
				return true
			}
		}
		if n.Else != nil {
			return containsAggregate(n.Else)
		}
	}
	return false
}

// HasWindowFuncs reports whether any projected column contains a window
// function (spec §4.3.4).
func (s *SelectStatement) HasWindowFuncs() bool {
	for _, c := range s.Columns {
		if containsWindow(c.Expr) {
			return true
		}
	}
	return false
}

func containsWindow(e Expr) bool {
	switch n := e.(type) {
	case *WindowFunc:
		return true
	case *BinaryOp:
		return containsWindow(n.Left) || containsWindow(n.Right)
	case *UnaryOp:
		return containsWindow(n.Operand)
	}
	return false
}

type CTE struct {
	Name    string
	Columns []string // nil when not explicitly listed
	Query   Statement
}

func (c CTE) Clone() CTE {
	out := CTE{Name: c.Name, Query: c.Query.Clone()}
	out.Columns = append([]string(nil), c.Columns...)
	return out
}

// WithStatement never appears nested inside a subquery; CTEs bubble up to
// the statement's own WITH clause (spec §3.1 invariant).
type WithStatement struct {
	CTEs      []CTE
	Recursive bool
	Query     Statement // SelectStatement or UnionNode
}

func (*WithStatement) stmtNode() {}
func (w *WithStatement) Clone() Statement {
	c := &WithStatement{Recursive: w.Recursive, Query: w.Query.Clone()}
	c.CTEs = make([]CTE, len(w.CTEs))
	for i, cte := range w.CTEs {
		c.CTEs[i] = cte.Clone()
	}
	return c
}

type SetOp int

const (
	SetUnion SetOp = iota
	SetIntersect
	SetExcept
)

type UnionNode struct {
	Op    SetOp
	All   bool
	Left  Statement // SelectStatement or *UnionNode
	Right Statement
}

func (*UnionNode) stmtNode() {}
func (u *UnionNode) Clone() Statement {
	return &UnionNode{Op: u.Op, All: u.All, Left: u.Left.Clone(), Right: u.Right.Clone()}
}

type Assignment struct {
	Column string
	Value  Expr
}

func cloneAssignments(in []Assignment) []Assignment {
	out := make([]Assignment, len(in))
	for i, a := range in {
		out[i] = Assignment{Column: a.Column, Value: a.Value.Clone()}
	}
	return out
}

type InsertStatement struct {
	Table   string
	Columns []string
	Rows    [][]Expr        // literal/placeholder rows; nil when Select is set
	Select  *SelectStatement // INSERT ... SELECT
}

func (*InsertStatement) stmtNode() {}
func (i *InsertStatement) Clone() Statement {
	c := &InsertStatement{Table: i.Table, Columns: append([]string(nil), i.Columns...)}
	if i.Select != nil {
		c.Select = i.Select.Clone().(*SelectStatement)
	}
	if i.Rows != nil {
		c.Rows = make([][]Expr, len(i.Rows))
		for r, row := range i.Rows {
			c.Rows[r] = cloneExprs(row)
		}
	}
	return c
}

type UpdateStatement struct {
	Table string
	Set   []Assignment
	Where Expr
}

func (*UpdateStatement) stmtNode() {}
func (u *UpdateStatement) Clone() Statement {
	c := &UpdateStatement{Table: u.Table, Set: cloneAssignments(u.Set)}
	if u.Where != nil {
		c.Where = u.Where.Clone()
	}
	return c
}

type DeleteStatement struct {
	Table string
	Where Expr
}

func (*DeleteStatement) stmtNode() {}
func (d *DeleteStatement) Clone() Statement {
	c := &DeleteStatement{Table: d.Table}
	if d.Where != nil {
		c.Where = d.Where.Clone()
	}
	return c
}

type CreateTableStatement struct {
	Table       string
	IfNotExists bool
	Columns     []ColumnDef
}

func (*CreateTableStatement) stmtNode() {}
func (c *CreateTableStatement) Clone() Statement {
	out := &CreateTableStatement{Table: c.Table, IfNotExists: c.IfNotExists}
	out.Columns = append([]ColumnDef(nil), c.Columns...)
	return out
}

type DropTableStatement struct {
	Table    string
	IfExists bool
}

func (*DropTableStatement) stmtNode() {}
func (d *DropTableStatement) Clone() Statement { c := *d; return &c }

type CreateIndexStatement struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

func (*CreateIndexStatement) stmtNode() {}
func (c *CreateIndexStatement) Clone() Statement {
	out := *c
	out.Columns = append([]string(nil), c.Columns...)
	return &out
}

type DropIndexStatement struct {
	Name  string
	Table string
}

func (*DropIndexStatement) stmtNode() {}
func (d *DropIndexStatement) Clone() Statement { c := *d; return &c }
