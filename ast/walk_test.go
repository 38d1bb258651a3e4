package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/sqlcore/ast"
)

func TestWalkExprVisitsNestedNodes(t *testing.T) {
	expr := &ast.BinaryOp{
		Op:   "AND",
		Left: &ast.BinaryOp{Op: "=", Left: &ast.Identifier{Parts: []string{"a"}}, Right: &ast.Placeholder{Name: "x"}},
		Right: &ast.FuncCall{Name: "COUNT", Args: []ast.Expr{&ast.Identifier{Parts: []string{"b"}}}},
	}

	var placeholders []*ast.Placeholder
	ast.WalkExpr(expr, func(e ast.Expr) {
		if p, ok := e.(*ast.Placeholder); ok {
			placeholders = append(placeholders, p)
		}
	})
	require.Len(t, placeholders, 1)
	assert.Equal(t, "x", placeholders[0].Name)
}

func TestCollectPlaceholdersOrdersLeftToRight(t *testing.T) {
	stmt := &ast.SelectStatement{
		Columns: []ast.ColumnNode{{Expr: &ast.Identifier{Parts: []string{"id"}}}},
		Where: &ast.BinaryOp{
			Op:    "AND",
			Left:  &ast.BinaryOp{Op: "=", Left: &ast.Identifier{Parts: []string{"a"}}, Right: &ast.Placeholder{Index: 0}},
			Right: &ast.BinaryOp{Op: "=", Left: &ast.Identifier{Parts: []string{"b"}}, Right: &ast.Placeholder{Index: 1}},
		},
	}
	ph := ast.CollectPlaceholders(stmt)
	require.Len(t, ph, 2)
	assert.Equal(t, 0, ph[0].Index)
	assert.Equal(t, 1, ph[1].Index)
}

func TestCaseExprClonePreservesShape(t *testing.T) {
	c := &ast.CaseExpr{
		Operand: &ast.Identifier{Parts: []string{"x"}},
		Whens: []ast.WhenClause{
			{Cond: &ast.Literal{Value: ast.Int(1)}, Then: &ast.Literal{Value: ast.Str("one")}},
		},
		Else: &ast.Literal{Value: ast.Str("other")},
	}
	clone := c.Clone().(*ast.CaseExpr)
	require.Len(t, clone.Whens, 1)
	assert.Equal(t, ast.Str("one"), clone.Whens[0].Then.(*ast.Literal).Value)

	// mutating the clone must not affect the original
	clone.Whens[0].Then.(*ast.Literal).Value = ast.Str("mutated")
	assert.Equal(t, ast.Str("one"), c.Whens[0].Then.(*ast.Literal).Value)
}

func TestIdentifierQualifierAndName(t *testing.T) {
	id := &ast.Identifier{Parts: []string{"schema", "tbl", "col"}}
	assert.Equal(t, "schema.tbl", id.Qualifier())
	assert.Equal(t, "col", id.Name())

	bare := &ast.Identifier{Parts: []string{"col"}}
	assert.Equal(t, "", bare.Qualifier())
	assert.Equal(t, "col", bare.Name())
}
