package render

import (
	"strconv"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
)

func (r *renderer) expr(e ast.Expr) error {
	switch n := e.(type) {
	case *ast.Identifier:
		if n.Wildcard {
			if len(n.Parts) > 0 {
				r.sb.WriteString(QuoteIdentifier(r.dialect, joinDots(n.Parts)))
				r.sb.WriteString(".*")
			} else {
				r.sb.WriteString("*")
			}
			return nil
		}
		r.sb.WriteString(QuoteIdentifier(r.dialect, joinDots(n.Parts)))
		return nil
	case *ast.Literal:
		return r.literal(n.Value)
	case *ast.Placeholder:
		if !n.Bound {
			if n.Name != "" {
				return errs.New(errs.MissingParameter, n.Name, "missing value for named parameter :%s", n.Name)
			}
			return errs.New(errs.NotEnoughParameters, strconv.Itoa(n.Index), "missing value for positional parameter #%d", n.Index+1)
		}
		r.params = append(r.params, n.Value)
		r.sb.WriteString(placeholderMarker(r.dialect, len(r.params)))
		return nil
	case *ast.BinaryOp:
		r.sb.WriteString("(")
		if err := r.expr(n.Left); err != nil {
			return err
		}
		r.sb.WriteString(" " + n.Op + " ")
		if err := r.expr(n.Right); err != nil {
			return err
		}
		r.sb.WriteString(")")
		return nil
	case *ast.UnaryOp:
		r.sb.WriteString(n.Op + " (")
		if err := r.expr(n.Operand); err != nil {
			return err
		}
		r.sb.WriteString(")")
		return nil
	case *ast.FuncCall:
		return r.funcCall(n)
	case *ast.WindowFunc:
		if err := r.funcCall(n.Func); err != nil {
			return err
		}
		r.sb.WriteString(" OVER (")
		if len(n.PartitionBy) > 0 {
			r.sb.WriteString("PARTITION BY ")
			for i, p := range n.PartitionBy {
				if i > 0 {
					r.sb.WriteString(", ")
				}
				if err := r.expr(p); err != nil {
					return err
				}
			}
			if len(n.OrderBy) > 0 {
				r.sb.WriteString(" ")
			}
		}
		if len(n.OrderBy) > 0 {
			r.sb.WriteString("ORDER BY ")
			for i, o := range n.OrderBy {
				if i > 0 {
					r.sb.WriteString(", ")
				}
				if err := r.expr(o.Expr); err != nil {
					return err
				}
				if o.Desc {
					r.sb.WriteString(" DESC")
				}
			}
		}
		r.sb.WriteString(")")
		return nil
	case *ast.InExpr:
		if err := r.expr(n.Target); err != nil {
			return err
		}
		if n.Not {
			r.sb.WriteString(" NOT IN (")
		} else {
			r.sb.WriteString(" IN (")
		}
		if n.Subquery != nil {
			if err := r.statement(n.Subquery); err != nil {
				return err
			}
		} else {
			for i, v := range n.List {
				if i > 0 {
					r.sb.WriteString(", ")
				}
				if err := r.expr(v); err != nil {
					return err
				}
			}
		}
		r.sb.WriteString(")")
		return nil
	case *ast.IsNullExpr:
		if err := r.expr(n.Target); err != nil {
			return err
		}
		if n.Not {
			r.sb.WriteString(" IS NOT NULL")
		} else {
			r.sb.WriteString(" IS NULL")
		}
		return nil
	case *ast.LikeExpr:
		if err := r.expr(n.Target); err != nil {
			return err
		}
		if n.Not {
			r.sb.WriteString(" NOT LIKE ")
		} else {
			r.sb.WriteString(" LIKE ")
		}
		return r.expr(n.Pattern)
	case *ast.BetweenExpr:
		if err := r.expr(n.Target); err != nil {
			return err
		}
		if n.Not {
			r.sb.WriteString(" NOT BETWEEN ")
		} else {
			r.sb.WriteString(" BETWEEN ")
		}
		if err := r.expr(n.Low); err != nil {
			return err
		}
		r.sb.WriteString(" AND ")
		return r.expr(n.High)
	case *ast.ExistsExpr:
		if n.Not {
			r.sb.WriteString("NOT ")
		}
		r.sb.WriteString("EXISTS (")
		if err := r.statement(n.Subquery); err != nil {
			return err
		}
		r.sb.WriteString(")")
		return nil
	case *ast.QuantifiedExpr:
		if err := r.expr(n.Target); err != nil {
			return err
		}
		r.sb.WriteString(" " + n.Op + " " + n.Quantifier + " (")
		if err := r.statement(n.Subquery); err != nil {
			return err
		}
		r.sb.WriteString(")")
		return nil
	case *ast.SubqueryExpr:
		r.sb.WriteString("(")
		if err := r.statement(n.Query); err != nil {
			return err
		}
		r.sb.WriteString(")")
		return nil
	case *ast.CaseExpr:
		return r.caseExpr(n)
	}
	return errs.New(errs.UnsupportedFeature, "", "renderer cannot handle expression type %T", e)
}

func (r *renderer) caseExpr(n *ast.CaseExpr) error {
	r.sb.WriteString("CASE")
	if n.Operand != nil {
		r.sb.WriteString(" ")
		if err := r.expr(n.Operand); err != nil {
			return err
		}
	}
	for _, w := range n.Whens {
		r.sb.WriteString(" WHEN ")
		if err := r.expr(w.Cond); err != nil {
			return err
		}
		r.sb.WriteString(" THEN ")
		if err := r.expr(w.Then); err != nil {
			return err
		}
	}
	if n.Else != nil {
		r.sb.WriteString(" ELSE ")
		if err := r.expr(n.Else); err != nil {
			return err
		}
	}
	r.sb.WriteString(" END")
	return nil
}

func (r *renderer) funcCall(f *ast.FuncCall) error {
	r.sb.WriteString(f.Name)
	r.sb.WriteString("(")
	if f.Distinct {
		r.sb.WriteString("DISTINCT ")
	}
	for i, a := range f.Args {
		if i > 0 {
			r.sb.WriteString(", ")
		}
		if err := r.expr(a); err != nil {
			return err
		}
	}
	r.sb.WriteString(")")
	return nil
}

func (r *renderer) literal(v ast.Value) error {
	switch v.Kind {
	case ast.KindNull:
		r.sb.WriteString("NULL")
	case ast.KindInt:
		r.sb.WriteString(strconv.FormatInt(v.Int, 10))
	case ast.KindFloat:
		r.sb.WriteString(strconv.FormatFloat(v.Float, 'g', -1, 64))
	case ast.KindDecimal:
		r.sb.WriteString(v.Decimal)
	case ast.KindBool:
		if v.Bool {
			r.sb.WriteString("TRUE")
		} else {
			r.sb.WriteString("FALSE")
		}
	case ast.KindString:
		r.sb.WriteString(Quote(v.Str))
	case ast.KindDate:
		r.sb.WriteString(Quote(v.Time.Format("2006-01-02")))
	case ast.KindTime:
		r.sb.WriteString(Quote(v.Time.Format("15:04:05")))
	case ast.KindDateTime:
		r.sb.WriteString(Quote(v.Time.Format("2006-01-02 15:04:05")))
	case ast.KindBinary:
		r.sb.WriteString("X'" + hexEncode(v.Binary) + "'")
	default:
		return errs.New(errs.UnsupportedFeature, "", "cannot render literal of kind %v", v.Kind)
	}
	return nil
}

func joinDots(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0xf]
	}
	return string(out)
}
