package vengine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/table"
)

// pushDown applies expr to tbl using the push-down policy of spec §4.3.2:
// split top-level AND into independently-pushed conjuncts; each conjunct
// either becomes a table operator call or, when it cannot be pushed, a
// row-by-row fallback filter evaluated through the scalar expression
// evaluator (eval.go).
func (e *Engine) pushDown(ctx context.Context, tbl table.Table, expr ast.Expr) (table.Table, error) {
	for _, conj := range splitAnd(expr) {
		var err error
		tbl, err = e.pushConjunct(ctx, tbl, conj)
		if err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

func splitAnd(e ast.Expr) []ast.Expr {
	if b, ok := e.(*ast.BinaryOp); ok && b.Op == "AND" {
		return append(splitAnd(b.Left), splitAnd(b.Right)...)
	}
	return []ast.Expr{e}
}

func buildPredicate(ctx context.Context, eng *Engine, e ast.Expr) table.Predicate {
	var p table.Predicate
	for _, conj := range splitAnd(e) {
		cc := conj
		p.Conjuncts = append(p.Conjuncts, func(r table.Row) bool {
			v, err := (&evalCtx{ctx: ctx, eng: eng, row: r}).eval(cc)
			if err != nil {
				return false
			}
			return truthy(v)
		})
	}
	return p
}

// genericFilter is the row-by-row fallback for expressions push-down can't
// translate into a table operator; it is expressed purely through the
// public Table.Or contract (a single predicate's conjuncts ANDed together
// is exactly a generic filter).
func genericFilter(ctx context.Context, eng *Engine, tbl table.Table, e ast.Expr) table.Table {
	eng.log.WithField("expr", typeName(e)).Warn("push-down: falling back to row-by-row scan")
	return tbl.Or(buildPredicate(ctx, eng, e))
}

// typeName strips the package qualifier off an expression's dynamic type,
// giving push-down log lines a short, stable tag without rendering SQL.
func typeName(e ast.Expr) string {
	t := fmt.Sprintf("%T", e)
	for i := len(t) - 1; i >= 0; i-- {
		if t[i] == '.' {
			return t[i+1:]
		}
	}
	return t
}

func identOf(e ast.Expr) (string, bool) {
	id, ok := e.(*ast.Identifier)
	if !ok || id.Wildcard {
		return "", false
	}
	return id.Name(), true
}

func literalOrBoundValue(e ast.Expr) (ast.Value, bool) {
	switch n := e.(type) {
	case *ast.Literal:
		return n.Value, true
	case *ast.Placeholder:
		if n.Bound {
			return n.Value, true
		}
	}
	return ast.Value{}, false
}

func flipOp(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	default:
		return op
	}
}

func (e *Engine) pushConjunct(ctx context.Context, tbl table.Table, expr ast.Expr) (table.Table, error) {
	switch n := expr.(type) {
	case *ast.BinaryOp:
		switch n.Op {
		case "OR":
			e.log.WithField("op", "OR").Debug("push-down: building two predicates for tbl.Or")
			left := buildPredicate(ctx, e, n.Left)
			right := buildPredicate(ctx, e, n.Right)
			return tbl.Or(left, right), nil
		case "=", "<>", "!=", "<", "<=", ">", ">=":
			return e.pushComparison(ctx, tbl, n)
		}
		return genericFilter(ctx, e, tbl, expr), nil
	case *ast.UnaryOp:
		if n.Op == "NOT" {
			e.log.Debug("push-down: NOT, pushing operand then tbl.Except")
			matching, err := e.pushDown(ctx, tbl, n.Operand)
			if err != nil {
				return nil, err
			}
			return tbl.Except(matching), nil
		}
		return genericFilter(ctx, e, tbl, expr), nil
	case *ast.InExpr:
		return e.pushIn(ctx, tbl, n)
	case *ast.IsNullExpr:
		col, ok := identOf(n.Target)
		if !ok {
			return genericFilter(ctx, e, tbl, expr), nil
		}
		e.log.WithFields(logrus.Fields{"op": "IS NULL", "column": col, "not": n.Not}).Debug("push-down: tbl.Eq(col, NULL)")
		matching := tbl.Eq(col, ast.Null())
		if n.Not {
			return tbl.Except(matching), nil
		}
		return matching, nil
	case *ast.LikeExpr:
		col, ok := identOf(n.Target)
		lit, litOK := literalOrBoundValue(n.Pattern)
		if !ok || !litOK || lit.Kind != ast.KindString {
			return genericFilter(ctx, e, tbl, expr), nil
		}
		e.log.WithFields(logrus.Fields{"op": "LIKE", "column": col, "not": n.Not}).Debug("push-down: tbl.Like(col, pattern)")
		matching := tbl.Like(col, lit.Str)
		if n.Not {
			return tbl.Except(matching), nil
		}
		return matching, nil
	case *ast.BetweenExpr:
		col, ok := identOf(n.Target)
		lo, loOK := literalOrBoundValue(n.Low)
		hi, hiOK := literalOrBoundValue(n.High)
		if !ok || !loOK || !hiOK {
			return genericFilter(ctx, e, tbl, expr), nil
		}
		e.log.WithFields(logrus.Fields{"op": "BETWEEN", "column": col, "not": n.Not}).Debug("push-down: tbl.Gte(col, lo).Lte(col, hi)")
		matching := tbl.Gte(col, lo).Lte(col, hi)
		if n.Not {
			return tbl.Except(matching), nil
		}
		return matching, nil
	}
	return genericFilter(ctx, e, tbl, expr), nil
}

// pushComparison implements the literal-on-left normalisation, constant
// folding, null propagation, and algebraic arithmetic solving named in spec
// §4.3.2 before falling back to a plain column comparison or a row-by-row
// filter.
func (e *Engine) pushComparison(ctx context.Context, tbl table.Table, n *ast.BinaryOp) (table.Table, error) {
	left, right, op := n.Left, n.Right, n.Op

	if _, litOK := literalOrBoundValue(left); litOK {
		if _, identOK := right.(*ast.Identifier); identOK {
			left, right = right, left
			op = flipOp(op)
		}
	}

	lv, lok := literalOrBoundValue(left)
	rv, rok := literalOrBoundValue(right)
	if lok && rok {
		res, err := compare(op, lv, rv)
		if err != nil {
			return nil, err
		}
		if truthy(res) {
			return tbl, nil
		}
		return table.FromRows(nil), nil
	}
	// Raw `col = NULL` (as opposed to the builder's eq(col, nil) sugar,
	// which never reaches this path) yields zero rows (spec §4.3.2 "null
	// propagation").
	if op == "=" && ((rok && rv.Kind == ast.KindNull) || (lok && lv.Kind == ast.KindNull)) {
		return table.FromRows(nil), nil
	}

	id, isIdent := left.(*ast.Identifier)
	if !isIdent {
		if col, solvedOp, val, ok := solveArithmetic(left, op, right); ok {
			return e.pushComparison(ctx, tbl, &ast.BinaryOp{Op: solvedOp, Left: col, Right: &ast.Literal{Value: val}})
		}
		return genericFilter(ctx, e, tbl, n), nil
	}
	if !rok {
		return genericFilter(ctx, e, tbl, n), nil
	}
	col := id.Name()
	e.log.WithFields(logrus.Fields{"op": op, "column": col}).Debug("push-down: table comparison operator")
	switch op {
	case "=":
		return tbl.Eq(col, rv), nil
	case "<>", "!=":
		return tbl.Except(tbl.Eq(col, rv)), nil
	case "<":
		return tbl.Lt(col, rv), nil
	case "<=":
		return tbl.Lte(col, rv), nil
	case ">":
		return tbl.Gt(col, rv), nil
	case ">=":
		return tbl.Gte(col, rv), nil
	}
	return genericFilter(ctx, e, tbl, n), nil
}

func isZero(v ast.Value) bool {
	return (v.Kind == ast.KindInt && v.Int == 0) || (v.Kind == ast.KindFloat && v.Float == 0)
}

func isNegative(v ast.Value) bool {
	return (v.Kind == ast.KindInt && v.Int < 0) || (v.Kind == ast.KindFloat && v.Float < 0)
}

// exactDivisible requires integer operands with no remainder; any other
// combination aborts the rewrite rather than risk float precision (spec
// §4.3.2 "abort the rewrite on division by zero or float precision risk").
func exactDivisible(a, b ast.Value) bool {
	if a.Kind == ast.KindInt && b.Kind == ast.KindInt {
		return b.Int != 0 && a.Int%b.Int == 0
	}
	return false
}

// solveArithmetic rewrites `(col ± const) cmp right`, `(const ± col) cmp
// right`, or `(col */÷ const) cmp right` into `col cmp' right'` (spec
// §4.3.2 "Arithmetic solving").
func solveArithmetic(left ast.Expr, op string, right ast.Expr) (*ast.Identifier, string, ast.Value, bool) {
	rv, rok := literalOrBoundValue(right)
	if !rok {
		return nil, "", ast.Value{}, false
	}
	b, ok := left.(*ast.BinaryOp)
	if !ok {
		return nil, "", ast.Value{}, false
	}
	idL, isIdentL := b.Left.(*ast.Identifier)
	idR, isIdentR := b.Right.(*ast.Identifier)
	constL, constLOK := literalOrBoundValue(b.Left)
	constR, constROK := literalOrBoundValue(b.Right)

	switch b.Op {
	case "+":
		if isIdentL && constROK {
			v, err := arith("-", rv, constR)
			if err != nil {
				return nil, "", ast.Value{}, false
			}
			return idL, op, v, true
		}
		if isIdentR && constLOK {
			v, err := arith("-", rv, constL)
			if err != nil {
				return nil, "", ast.Value{}, false
			}
			return idR, op, v, true
		}
	case "-":
		if isIdentL && constROK {
			v, err := arith("+", rv, constR)
			if err != nil {
				return nil, "", ast.Value{}, false
			}
			return idL, op, v, true
		}
		if isIdentR && constLOK {
			v, err := arith("-", constL, rv)
			if err != nil {
				return nil, "", ast.Value{}, false
			}
			return idR, flipOp(op), v, true
		}
	case "*":
		if isIdentL && constROK && !isZero(constR) {
			if !exactDivisible(rv, constR) {
				return nil, "", ast.Value{}, false
			}
			v, err := arith("/", rv, constR)
			if err != nil {
				return nil, "", ast.Value{}, false
			}
			newOp := op
			if isNegative(constR) {
				newOp = flipOp(op)
			}
			return idL, newOp, v, true
		}
		if isIdentR && constLOK && !isZero(constL) {
			if !exactDivisible(rv, constL) {
				return nil, "", ast.Value{}, false
			}
			v, err := arith("/", rv, constL)
			if err != nil {
				return nil, "", ast.Value{}, false
			}
			newOp := op
			if isNegative(constL) {
				newOp = flipOp(op)
			}
			return idR, newOp, v, true
		}
	case "/":
		if isIdentL && constROK && !isZero(constR) {
			v, err := arith("*", rv, constR)
			if err != nil {
				return nil, "", ast.Value{}, false
			}
			newOp := op
			if isNegative(constR) {
				newOp = flipOp(op)
			}
			return idL, newOp, v, true
		}
	}
	return nil, "", ast.Value{}, false
}

func valueDedupKey(v ast.Value) string {
	switch v.Kind {
	case ast.KindInt:
		return "i:" + strconv.FormatInt(v.Int, 10)
	case ast.KindFloat:
		return "f:" + strconv.FormatFloat(v.Float, 'f', -1, 64)
	case ast.KindString:
		return "s:" + v.Str
	default:
		return "x"
	}
}

// pushIn implements `column [NOT] IN (list|subquery)` with index-aware
// probing (spec §4.3.2): when the outer table declares an index on column,
// probe it once per distinct value with Eq instead of a single unindexed In
// scan.
func (e *Engine) pushIn(ctx context.Context, tbl table.Table, n *ast.InExpr) (table.Table, error) {
	col, ok := identOf(n.Target)
	if !ok {
		return genericFilter(ctx, e, tbl, n), nil
	}

	var values []ast.Value
	if n.Subquery != nil {
		subTbl, cols, err := e.evalSelectLike(ctx, n.Subquery)
		if err != nil {
			return nil, err
		}
		_, rows, err := subTbl.Rows()
		if err != nil {
			return nil, err
		}
		c := firstOf(cols)
		for _, r := range rows {
			values = append(values, r[c])
		}
	} else {
		for _, item := range n.List {
			v, ok := literalOrBoundValue(item)
			if !ok {
				return genericFilter(ctx, e, tbl, n), nil
			}
			values = append(values, v)
		}
	}

	if len(values) == 0 {
		if n.Not {
			return tbl, nil
		}
		return table.FromRows(nil), nil
	}

	indexed := false
	if defs := tbl.ColumnDefs(); defs != nil {
		if cd, ok := defs[col]; ok && cd.Index != ast.IndexNone {
			indexed = true
		}
	}
	e.log.WithFields(logrus.Fields{"column": col, "values": len(values), "indexed": indexed}).
		Debug("push-down: IN")

	var matching table.Table
	if indexed {
		seen := make(map[string]bool, len(values))
		var parts []table.Table
		for _, v := range values {
			key := valueDedupKey(v)
			if seen[key] {
				continue
			}
			seen[key] = true
			parts = append(parts, tbl.Eq(col, v))
		}
		if len(parts) == 0 {
			matching = table.FromRows(nil)
		} else {
			matching = parts[0]
			for _, p := range parts[1:] {
				matching = matching.Union(p, true)
			}
		}
	} else {
		matching = tbl.In(col, values)
	}
	if n.Not {
		return tbl.Except(matching), nil
	}
	return matching, nil
}
