package render

import (
	"strconv"
	"strings"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
)

// Render walks stmt and emits SQL text for dialect, returning the ordered
// parameter values bound into every Placeholder it encounters. Every
// Placeholder reached during rendering must already be Bound (the query
// builder and virtual engine bind placeholders before rendering); an
// unbound named one surfaces as MissingParameter and an unbound positional
// one as NotEnoughParameters.
func Render(stmt ast.Statement, dialect Dialect) (string, []ast.Value, error) {
	r := &renderer{dialect: dialect}
	if err := r.statement(stmt); err != nil {
		return "", nil, err
	}
	return r.sb.String(), r.params, nil
}

type renderer struct {
	sb      strings.Builder
	params  []ast.Value
	dialect Dialect
}

func (r *renderer) statement(s ast.Statement) error {
	switch n := s.(type) {
	case *ast.WithStatement:
		return r.with(n)
	case *ast.UnionNode:
		return r.union(n)
	case *ast.SelectStatement:
		return r.selectStmt(n)
	case *ast.InsertStatement:
		return r.insert(n)
	case *ast.UpdateStatement:
		return r.update(n)
	case *ast.DeleteStatement:
		return r.del(n)
	case *ast.CreateTableStatement:
		return r.createTable(n)
	case *ast.DropTableStatement:
		r.sb.WriteString("DROP TABLE ")
		if n.IfExists {
			r.sb.WriteString("IF EXISTS ")
		}
		r.sb.WriteString(QuoteIdentifier(r.dialect, n.Table))
		return nil
	case *ast.CreateIndexStatement:
		return r.createIndex(n)
	case *ast.DropIndexStatement:
		r.sb.WriteString("DROP INDEX ")
		r.sb.WriteString(QuoteIdentifier(r.dialect, n.Name))
		if n.Table != "" {
			r.sb.WriteString(" ON ")
			r.sb.WriteString(QuoteIdentifier(r.dialect, n.Table))
		}
		return nil
	}
	return errs.New(errs.UnsupportedFeature, "", "renderer cannot handle statement type %T", s)
}

func (r *renderer) with(w *ast.WithStatement) error {
	r.sb.WriteString("WITH ")
	if w.Recursive {
		r.sb.WriteString("RECURSIVE ")
	}
	for i, cte := range w.CTEs {
		if i > 0 {
			r.sb.WriteString(", ")
		}
		r.sb.WriteString(QuoteIdentifier(r.dialect, cte.Name))
		if len(cte.Columns) > 0 {
			r.sb.WriteString(" (")
			for j, c := range cte.Columns {
				if j > 0 {
					r.sb.WriteString(", ")
				}
				r.sb.WriteString(QuoteIdentifier(r.dialect, c))
			}
			r.sb.WriteString(")")
		}
		r.sb.WriteString(" AS (")
		if err := r.statement(cte.Query); err != nil {
			return err
		}
		r.sb.WriteString(")")
	}
	r.sb.WriteString(" ")
	return r.statement(w.Query)
}

func (r *renderer) union(u *ast.UnionNode) error {
	if err := r.statement(u.Left); err != nil {
		return err
	}
	switch u.Op {
	case ast.SetUnion:
		r.sb.WriteString(" UNION ")
	case ast.SetIntersect:
		if r.dialect == MySQL {
			return unsupported(r.dialect, "INTERSECT")
		}
		r.sb.WriteString(" INTERSECT ")
	case ast.SetExcept:
		if r.dialect == MySQL {
			return unsupported(r.dialect, "EXCEPT")
		}
		r.sb.WriteString(" EXCEPT ")
	}
	if u.All {
		r.sb.WriteString("ALL ")
	}
	return r.statement(u.Right)
}

func (r *renderer) selectStmt(s *ast.SelectStatement) error {
	r.sb.WriteString("SELECT ")
	if s.Distinct {
		r.sb.WriteString("DISTINCT ")
	}
	if len(s.Columns) == 0 {
		r.sb.WriteString("*")
	}
	for i, c := range s.Columns {
		if i > 0 {
			r.sb.WriteString(", ")
		}
		if err := r.expr(c.Expr); err != nil {
			return err
		}
		if c.Alias != "" {
			r.sb.WriteString(" AS ")
			r.sb.WriteString(QuoteIdentifier(r.dialect, c.Alias))
		}
	}
	if s.From != nil {
		r.sb.WriteString(" FROM ")
		if err := r.fromItem(s.From); err != nil {
			return err
		}
		for _, j := range s.Joins {
			if err := r.join(j); err != nil {
				return err
			}
		}
	}
	if s.Where != nil {
		r.sb.WriteString(" WHERE ")
		if err := r.expr(s.Where); err != nil {
			return err
		}
	}
	if len(s.GroupBy) > 0 {
		r.sb.WriteString(" GROUP BY ")
		for i, g := range s.GroupBy {
			if i > 0 {
				r.sb.WriteString(", ")
			}
			if err := r.expr(g); err != nil {
				return err
			}
		}
	}
	if s.Having != nil {
		r.sb.WriteString(" HAVING ")
		if err := r.expr(s.Having); err != nil {
			return err
		}
	}
	if len(s.OrderBy) > 0 {
		r.sb.WriteString(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				r.sb.WriteString(", ")
			}
			if o.Expr != nil {
				if err := r.expr(o.Expr); err != nil {
					return err
				}
			} else {
				r.sb.WriteString(strconv.Itoa(o.Index))
			}
			if o.Desc {
				r.sb.WriteString(" DESC")
			}
		}
	}
	return r.limitOffset(s.Limit, s.Offset)
}

// limitOffset implements the binding LIMIT/OFFSET encoding table from
// spec §4.1.
func (r *renderer) limitOffset(limit, offset ast.Expr) error {
	if limit == nil && offset == nil {
		return nil
	}
	offLit, offOK := literalInt(offset)
	paged := offOK && offLit > 0

	switch r.dialect {
	case MySQL:
		if limit == nil {
			return nil
		}
		r.sb.WriteString(" LIMIT ")
		if paged {
			if err := r.expr(offset); err != nil {
				return err
			}
			r.sb.WriteString(", ")
		}
		return r.expr(limit)
	case SQLServer:
		r.sb.WriteString(" OFFSET ")
		if offset != nil {
			if err := r.expr(offset); err != nil {
				return err
			}
		} else {
			r.sb.WriteString("0")
		}
		r.sb.WriteString(" ROWS")
		if limit != nil {
			r.sb.WriteString(" FETCH NEXT ")
			if err := r.expr(limit); err != nil {
				return err
			}
			r.sb.WriteString(" ROWS ONLY")
		}
		return nil
	default: // Postgres, SQLite, Oracle, Generic
		if limit != nil {
			r.sb.WriteString(" LIMIT ")
			if err := r.expr(limit); err != nil {
				return err
			}
		}
		if paged {
			r.sb.WriteString(" OFFSET ")
			if err := r.expr(offset); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func literalInt(e ast.Expr) (int64, bool) {
	lit, ok := e.(*ast.Literal)
	if !ok || lit.Value.Kind != ast.KindInt {
		return 0, false
	}
	return lit.Value.Int, true
}

func (r *renderer) fromItem(f ast.FromItem) error {
	switch n := f.(type) {
	case *ast.TableRef:
		r.sb.WriteString(QuoteIdentifier(r.dialect, n.Name))
		if n.Alias != "" {
			r.sb.WriteString(" AS ")
			r.sb.WriteString(QuoteIdentifier(r.dialect, n.Alias))
		}
		return nil
	case *ast.SubqueryRef:
		r.sb.WriteString("(")
		if err := r.statement(n.Query); err != nil {
			return err
		}
		r.sb.WriteString(")")
		if n.Alias != "" {
			r.sb.WriteString(" AS ")
			r.sb.WriteString(QuoteIdentifier(r.dialect, n.Alias))
		}
		return nil
	}
	return errs.New(errs.UnsupportedFeature, "", "unknown FROM item %T", f)
}

func (r *renderer) join(j ast.JoinNode) error {
	switch j.Kind {
	case ast.JoinInner:
		r.sb.WriteString(" INNER JOIN ")
	case ast.JoinLeft:
		r.sb.WriteString(" LEFT JOIN ")
	case ast.JoinRight:
		r.sb.WriteString(" RIGHT JOIN ")
	case ast.JoinFull:
		r.sb.WriteString(" FULL JOIN ")
	case ast.JoinCross:
		r.sb.WriteString(" CROSS JOIN ")
	}
	if err := r.fromItem(j.Right); err != nil {
		return err
	}
	if j.On != nil {
		r.sb.WriteString(" ON ")
		return r.expr(j.On)
	}
	return nil
}

func (r *renderer) insert(i *ast.InsertStatement) error {
	r.sb.WriteString("INSERT INTO ")
	r.sb.WriteString(QuoteIdentifier(r.dialect, i.Table))
	if len(i.Columns) > 0 {
		r.sb.WriteString(" (")
		for j, c := range i.Columns {
			if j > 0 {
				r.sb.WriteString(", ")
			}
			r.sb.WriteString(QuoteIdentifier(r.dialect, c))
		}
		r.sb.WriteString(")")
	}
	if i.Select != nil {
		r.sb.WriteString(" ")
		return r.statement(i.Select)
	}
	r.sb.WriteString(" VALUES ")
	for ri, row := range i.Rows {
		if ri > 0 {
			r.sb.WriteString(", ")
		}
		r.sb.WriteString("(")
		for ci, e := range row {
			if ci > 0 {
				r.sb.WriteString(", ")
			}
			if err := r.expr(e); err != nil {
				return err
			}
		}
		r.sb.WriteString(")")
	}
	return nil
}

func (r *renderer) update(u *ast.UpdateStatement) error {
	r.sb.WriteString("UPDATE ")
	r.sb.WriteString(QuoteIdentifier(r.dialect, u.Table))
	r.sb.WriteString(" SET ")
	for i, a := range u.Set {
		if i > 0 {
			r.sb.WriteString(", ")
		}
		r.sb.WriteString(QuoteIdentifier(r.dialect, a.Column))
		r.sb.WriteString(" = ")
		if err := r.expr(a.Value); err != nil {
			return err
		}
	}
	if u.Where != nil {
		r.sb.WriteString(" WHERE ")
		return r.expr(u.Where)
	}
	return nil
}

func (r *renderer) del(d *ast.DeleteStatement) error {
	r.sb.WriteString("DELETE FROM ")
	r.sb.WriteString(QuoteIdentifier(r.dialect, d.Table))
	if d.Where != nil {
		r.sb.WriteString(" WHERE ")
		return r.expr(d.Where)
	}
	return nil
}
