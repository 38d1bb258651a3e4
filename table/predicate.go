package table

import (
	"strings"
	"time"

	"github.com/omniql-engine/sqlcore/ast"
)

// compareValues orders two Values of (assumed) the same kind; NULL sorts
// before everything. For mixed non-NULL kinds b is read through the field
// of a's kind, so such a result has no defined ordering meaning.
func compareValues(a, b ast.Value) int {
	if a.Kind == ast.KindNull && b.Kind == ast.KindNull {
		return 0
	}
	if a.Kind == ast.KindNull {
		return -1
	}
	if b.Kind == ast.KindNull {
		return 1
	}
	switch a.Kind {
	case ast.KindInt:
		return int(a.Int - b.Int)
	case ast.KindFloat:
		switch {
		case a.Float < b.Float:
			return -1
		case a.Float > b.Float:
			return 1
		default:
			return 0
		}
	case ast.KindString, ast.KindDecimal:
		return strings.Compare(sval(a), sval(b))
	case ast.KindBool:
		if a.Bool == b.Bool {
			return 0
		}
		if !a.Bool {
			return -1
		}
		return 1
	case ast.KindDate, ast.KindTime, ast.KindDateTime:
		return timeCompare(a.Time, b.Time)
	default:
		return 0
	}
}

func timeCompare(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func sval(v ast.Value) string {
	if v.Kind == ast.KindDecimal {
		return v.Decimal
	}
	return v.Str
}

func valuesEqual(a, b ast.Value) bool {
	if a.Kind == ast.KindNull || b.Kind == ast.KindNull {
		return false // SQL UNKNOWN semantics: NULL never equals anything, including NULL
	}
	return compareValues(a, b) == 0
}

type cmpFn func(int) bool

func less(c int) bool           { return c < 0 }
func lessOrEqual(c int) bool    { return c <= 0 }
func greater(c int) bool        { return c > 0 }
func greaterOrEqual(c int) bool { return c >= 0 }

// eqPred special-cases a NULL operand to mean IS NULL (spec §4.2 "eq(col,
// null) becomes IS NULL"); ordinary SQL `col = NULL` short-circuits to
// empty earlier in the engine's push-down, before it ever reaches Eq.
func eqPred(column string, v ast.Value) func(Row) bool {
	if v.IsNull() {
		return func(r Row) bool { return r[column].Kind == ast.KindNull }
	}
	return func(r Row) bool { return valuesEqual(r[column], v) }
}

func cmpPred(column string, v ast.Value, f cmpFn) func(Row) bool {
	return func(r Row) bool {
		rv := r[column]
		if rv.Kind == ast.KindNull {
			return false
		}
		return f(compareValues(rv, v))
	}
}

func likePred(column, pattern string) func(Row) bool {
	re := likeToRegexp(pattern)
	return func(r Row) bool {
		v := r[column]
		if v.Kind != ast.KindString {
			return false
		}
		return re.MatchString(v.Str)
	}
}

func inPred(column string, values []ast.Value) func(Row) bool {
	return func(r Row) bool {
		rv := r[column]
		for _, v := range values {
			if valuesEqual(rv, v) {
				return true
			}
		}
		return false
	}
}

func orPred(predicates []Predicate) func(Row) bool {
	return func(r Row) bool {
		for _, p := range predicates {
			if p.matches(r) {
				return true
			}
		}
		return false
	}
}
