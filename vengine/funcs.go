package vengine

import (
	"math"
	"strings"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
)

// evalFunc evaluates a non-aggregate scalar function call encountered
// outside the aggregate/window projection paths (e.g. inside WHERE, CASE,
// or a plain projected expression). Aggregates reaching here (used without
// GROUP BY context, e.g. nested in a CASE the aggregate path didn't strip)
// are rejected; §4.3.3 handles them on their own path.
func (c *evalCtx) evalFunc(n *ast.FuncCall) (ast.Value, error) {
	if n.IsAggregate() {
		return ast.Value{}, errs.New(errs.UnsupportedFeature, n.Name, "aggregate function used outside an aggregate projection")
	}
	args := make([]ast.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := c.eval(a)
		if err != nil {
			return ast.Value{}, err
		}
		args[i] = v
	}
	switch strings.ToUpper(n.Name) {
	case "UPPER":
		return stringFunc(args, strings.ToUpper)
	case "LOWER":
		return stringFunc(args, strings.ToLower)
	case "LENGTH", "CHAR_LENGTH":
		if len(args) != 1 || args[0].Kind == ast.KindNull {
			return ast.Null(), nil
		}
		return ast.Int(int64(len(args[0].Str))), nil
	case "CONCAT":
		var sb strings.Builder
		for _, a := range args {
			if a.Kind == ast.KindNull {
				return ast.Null(), nil
			}
			sb.WriteString(stringOf(a))
		}
		return ast.Str(sb.String()), nil
	case "COALESCE":
		for _, a := range args {
			if a.Kind != ast.KindNull {
				return a, nil
			}
		}
		return ast.Null(), nil
	case "ABS":
		if len(args) != 1 || args[0].Kind == ast.KindNull {
			return ast.Null(), nil
		}
		if args[0].Kind == ast.KindInt {
			v := args[0].Int
			if v < 0 {
				v = -v
			}
			return ast.Int(v), nil
		}
		return ast.Float(math.Abs(asFloat(args[0]))), nil
	case "ROUND":
		if len(args) == 0 || args[0].Kind == ast.KindNull {
			return ast.Null(), nil
		}
		return ast.Float(math.Round(asFloat(args[0]))), nil
	}
	return ast.Value{}, errs.New(errs.UnsupportedFeature, n.Name, "unknown scalar function %q", n.Name)
}

func stringFunc(args []ast.Value, f func(string) string) (ast.Value, error) {
	if len(args) != 1 || args[0].Kind == ast.KindNull {
		return ast.Null(), nil
	}
	return ast.Str(f(args[0].Str)), nil
}
