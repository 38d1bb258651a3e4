package vengine

import (
	"context"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/table"
)

// evalCtx carries what a scalar-expression evaluation needs beyond the
// current row: the engine (for subqueries/aggregates) and, for correlated
// subquery evaluation, the enclosing query's current row (spec §4.3.7).
type evalCtx struct {
	ctx     context.Context
	eng     *Engine
	row     table.Row
	outer   table.Row                         // nil unless evaluating inside a correlated subquery
	aggVals map[*ast.FuncCall]ast.Value // set only while evaluating an aggregate query's projection/HAVING/ORDER BY (spec §4.3.3)
}

func lookup(row, outer table.Row, id *ast.Identifier) (ast.Value, bool) {
	name := id.Name()
	q := id.Qualifier()
	if q != "" {
		if v, ok := row[q+"."+name]; ok {
			return v, true
		}
	}
	if v, ok := row[name]; ok {
		return v, true
	}
	if outer != nil {
		if q != "" {
			if v, ok := outer[q+"."+name]; ok {
				return v, true
			}
		}
		if v, ok := outer[name]; ok {
			return v, true
		}
	}
	return ast.Value{}, false
}

func truthy(v ast.Value) bool {
	switch v.Kind {
	case ast.KindBool:
		return v.Bool
	case ast.KindNull:
		return false
	default:
		return true
	}
}

func boolVal(b bool) ast.Value { return ast.Bool(b) }

// eval evaluates e against c.row (row-by-row fallback path, spec §4.3.2
// "Expressions that cannot be pushed ... fall back to row-by-row
// evaluation"), and also backs CASE, scalar subqueries, and projection of
// non-simple-column expressions.
func (c *evalCtx) eval(e ast.Expr) (ast.Value, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return n.Value, nil
	case *ast.Placeholder:
		if !n.Bound {
			return ast.Value{}, errs.New(errs.MissingParameter, n.Name, "unbound placeholder")
		}
		return n.Value, nil
	case *ast.Identifier:
		v, ok := lookup(c.row, c.outer, n)
		if !ok {
			return ast.Null(), nil
		}
		return v, nil
	case *ast.BinaryOp:
		return c.evalBinary(n)
	case *ast.UnaryOp:
		return c.evalUnary(n)
	case *ast.FuncCall:
		if c.aggVals != nil {
			if v, ok := c.aggVals[n]; ok {
				return v, nil
			}
		}
		return c.evalFunc(n)
	case *ast.InExpr:
		return c.evalIn(n)
	case *ast.IsNullExpr:
		v, err := c.eval(n.Target)
		if err != nil {
			return ast.Value{}, err
		}
		is := v.Kind == ast.KindNull
		if n.Not {
			is = !is
		}
		return boolVal(is), nil
	case *ast.LikeExpr:
		return c.evalLike(n)
	case *ast.BetweenExpr:
		return c.evalBetween(n)
	case *ast.ExistsExpr:
		return c.evalExists(n)
	case *ast.QuantifiedExpr:
		return c.evalQuantified(n)
	case *ast.SubqueryExpr:
		return c.evalScalarSubquery(n.Query)
	case *ast.CaseExpr:
		return c.evalCase(n)
	case *ast.WindowFunc:
		return ast.Value{}, errs.New(errs.UnsupportedFeature, "", "window function used outside projection context")
	}
	return ast.Value{}, errs.New(errs.UnsupportedFeature, "", "cannot evaluate expression of type %T", e)
}

func (c *evalCtx) evalUnary(n *ast.UnaryOp) (ast.Value, error) {
	v, err := c.eval(n.Operand)
	if err != nil {
		return ast.Value{}, err
	}
	switch n.Op {
	case "NOT":
		return boolVal(!truthy(v)), nil
	case "-":
		if v.Kind == ast.KindNull {
			return ast.Null(), nil
		}
		if v.Kind == ast.KindInt {
			return ast.Int(-v.Int), nil
		}
		return ast.Float(-asFloat(v)), nil
	}
	return ast.Value{}, errs.New(errs.UnsupportedFeature, n.Op, "unknown unary operator %q", n.Op)
}

func asFloat(v ast.Value) float64 {
	switch v.Kind {
	case ast.KindInt:
		return float64(v.Int)
	case ast.KindFloat:
		return v.Float
	default:
		return 0
	}
}

func isNumeric(v ast.Value) bool { return v.Kind == ast.KindInt || v.Kind == ast.KindFloat }

func arith(op string, a, b ast.Value) (ast.Value, error) {
	if a.Kind == ast.KindNull || b.Kind == ast.KindNull {
		return ast.Null(), nil // null propagation (spec §4.3.2)
	}
	if a.Kind == ast.KindInt && b.Kind == ast.KindInt {
		switch op {
		case "+":
			return ast.Int(a.Int + b.Int), nil
		case "-":
			return ast.Int(a.Int - b.Int), nil
		case "*":
			return ast.Int(a.Int * b.Int), nil
		case "/":
			if b.Int == 0 {
				return ast.Value{}, errs.New(errs.UnsupportedFeature, "", "division by zero")
			}
			return ast.Int(a.Int / b.Int), nil
		}
	}
	af, bf := asFloat(a), asFloat(b)
	switch op {
	case "+":
		return ast.Float(af + bf), nil
	case "-":
		return ast.Float(af - bf), nil
	case "*":
		return ast.Float(af * bf), nil
	case "/":
		if bf == 0 {
			return ast.Value{}, errs.New(errs.UnsupportedFeature, "", "division by zero")
		}
		return ast.Float(af / bf), nil
	}
	return ast.Value{}, errs.New(errs.UnsupportedFeature, op, "unknown arithmetic operator %q", op)
}

func compare(op string, a, b ast.Value) (ast.Value, error) {
	if a.Kind == ast.KindNull || b.Kind == ast.KindNull {
		return boolVal(false), nil // UNKNOWN collapses to false outside three-valued contexts
	}
	c := compareAny(a, b)
	switch op {
	case "=":
		return boolVal(c == 0), nil
	case "<>", "!=":
		return boolVal(c != 0), nil
	case "<":
		return boolVal(c < 0), nil
	case "<=":
		return boolVal(c <= 0), nil
	case ">":
		return boolVal(c > 0), nil
	case ">=":
		return boolVal(c >= 0), nil
	}
	return ast.Value{}, errs.New(errs.UnsupportedFeature, op, "unknown comparison operator %q", op)
}

// compareAny orders two scalar values; used only by the row-by-row
// evaluator, independent of table.compareValues (unexported there).
func compareAny(a, b ast.Value) int {
	if isNumeric(a) && isNumeric(b) {
		af, bf := asFloat(a), asFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := stringOf(a), stringOf(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func stringOf(v ast.Value) string {
	switch v.Kind {
	case ast.KindString:
		return v.Str
	case ast.KindDecimal:
		return v.Decimal
	case ast.KindBool:
		if v.Bool {
			return "1"
		}
		return "0"
	default:
		return v.Str
	}
}

func (c *evalCtx) evalBinary(n *ast.BinaryOp) (ast.Value, error) {
	switch n.Op {
	case "AND":
		l, err := c.eval(n.Left)
		if err != nil {
			return ast.Value{}, err
		}
		if !truthy(l) {
			return boolVal(false), nil
		}
		r, err := c.eval(n.Right)
		if err != nil {
			return ast.Value{}, err
		}
		return boolVal(truthy(r)), nil
	case "OR":
		l, err := c.eval(n.Left)
		if err != nil {
			return ast.Value{}, err
		}
		if truthy(l) {
			return boolVal(true), nil
		}
		r, err := c.eval(n.Right)
		if err != nil {
			return ast.Value{}, err
		}
		return boolVal(truthy(r)), nil
	}
	l, err := c.eval(n.Left)
	if err != nil {
		return ast.Value{}, err
	}
	r, err := c.eval(n.Right)
	if err != nil {
		return ast.Value{}, err
	}
	switch n.Op {
	case "+", "-", "*", "/":
		return arith(n.Op, l, r)
	default:
		return compare(n.Op, l, r)
	}
}

func (c *evalCtx) evalIn(n *ast.InExpr) (ast.Value, error) {
	target, err := c.eval(n.Target)
	if err != nil {
		return ast.Value{}, err
	}
	var values []ast.Value
	if n.Subquery != nil {
		tbl, cols, err := c.eng.evalSelectLike(c.ctx, n.Subquery)
		if err != nil {
			return ast.Value{}, err
		}
		_, rows, err := tbl.Rows()
		if err != nil {
			return ast.Value{}, err
		}
		col := firstOf(cols)
		for _, r := range rows {
			values = append(values, r[col])
		}
	} else {
		for _, e := range n.List {
			v, err := c.eval(e)
			if err != nil {
				return ast.Value{}, err
			}
			values = append(values, v)
		}
	}
	found := false
	for _, v := range values {
		if target.Kind != ast.KindNull && v.Kind != ast.KindNull && compareAny(target, v) == 0 {
			found = true
			break
		}
	}
	if n.Not {
		found = !found
	}
	return boolVal(found), nil
}

func firstOf(cols []string) string {
	if len(cols) == 0 {
		return ""
	}
	return cols[0]
}

func (c *evalCtx) evalLike(n *ast.LikeExpr) (ast.Value, error) {
	v, err := c.eval(n.Target)
	if err != nil {
		return ast.Value{}, err
	}
	p, err := c.eval(n.Pattern)
	if err != nil {
		return ast.Value{}, err
	}
	if v.Kind != ast.KindString || p.Kind != ast.KindString {
		return boolVal(false), nil
	}
	re := table.LikeToRegexp(p.Str)
	match := re.MatchString(v.Str)
	if n.Not {
		match = !match
	}
	return boolVal(match), nil
}

func (c *evalCtx) evalBetween(n *ast.BetweenExpr) (ast.Value, error) {
	v, err := c.eval(n.Target)
	if err != nil {
		return ast.Value{}, err
	}
	lo, err := c.eval(n.Low)
	if err != nil {
		return ast.Value{}, err
	}
	hi, err := c.eval(n.High)
	if err != nil {
		return ast.Value{}, err
	}
	if v.Kind == ast.KindNull || lo.Kind == ast.KindNull || hi.Kind == ast.KindNull {
		return boolVal(n.Not), nil
	}
	in := compareAny(v, lo) >= 0 && compareAny(v, hi) <= 0
	if n.Not {
		in = !in
	}
	return boolVal(in), nil
}

func (c *evalCtx) evalCase(n *ast.CaseExpr) (ast.Value, error) {
	var operand *ast.Value
	if n.Operand != nil {
		v, err := c.eval(n.Operand)
		if err != nil {
			return ast.Value{}, err
		}
		operand = &v
	}
	for _, w := range n.Whens {
		if operand != nil {
			cv, err := c.eval(w.Cond)
			if err != nil {
				return ast.Value{}, err
			}
			if cv.Kind == ast.KindNull || operand.Kind == ast.KindNull || compareAny(*operand, cv) != 0 {
				continue
			}
			return c.eval(w.Then)
		}
		cond, err := c.eval(w.Cond)
		if err != nil {
			return ast.Value{}, err
		}
		if truthy(cond) {
			return c.eval(w.Then)
		}
	}
	if n.Else != nil {
		return c.eval(n.Else)
	}
	return ast.Null(), nil
}
