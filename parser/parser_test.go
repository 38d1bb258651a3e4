package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/parser"
)

func TestParseSimpleSelect(t *testing.T) {
	stmt, err := parser.Parse("SELECT id, name FROM users WHERE id = ?")
	require.NoError(t, err)
	sel, ok := stmt.(*ast.SelectStatement)
	require.True(t, ok)
	require.Len(t, sel.Columns, 2)
	require.NotNil(t, sel.From)
	tbl, ok := sel.From.(*ast.TableRef)
	require.True(t, ok)
	assert.Equal(t, "users", tbl.Name)
	require.NotNil(t, sel.Where)
}

func TestParseJoinWithOn(t *testing.T) {
	stmt, err := parser.Parse("SELECT a.id FROM a LEFT JOIN b ON a.id = b.a_id")
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStatement)
	require.Len(t, sel.Joins, 1)
	assert.Equal(t, ast.JoinLeft, sel.Joins[0].Kind)
	require.NotNil(t, sel.Joins[0].On)
}

func TestParseUnion(t *testing.T) {
	stmt, err := parser.Parse("SELECT id FROM a UNION ALL SELECT id FROM b")
	require.NoError(t, err)
	u, ok := stmt.(*ast.UnionNode)
	require.True(t, ok)
	assert.Equal(t, ast.SetUnion, u.Op)
	assert.True(t, u.All)
}

func TestParseRecursiveCTE(t *testing.T) {
	stmt, err := parser.Parse(`WITH RECURSIVE nums(n) AS (
		SELECT 1
		UNION ALL
		SELECT n FROM nums WHERE n < 10
	) SELECT n FROM nums`)
	require.NoError(t, err)
	w, ok := stmt.(*ast.WithStatement)
	require.True(t, ok)
	assert.True(t, w.Recursive)
	require.Len(t, w.CTEs, 1)
	assert.Equal(t, "nums", w.CTEs[0].Name)
}

func TestParseInsertValues(t *testing.T) {
	stmt, err := parser.Parse("INSERT INTO users (id, name) VALUES (1, 'a'), (2, 'b')")
	require.NoError(t, err)
	ins, ok := stmt.(*ast.InsertStatement)
	require.True(t, ok)
	assert.Equal(t, "users", ins.Table)
	assert.Len(t, ins.Rows, 2)
}

func TestParseUpdate(t *testing.T) {
	stmt, err := parser.Parse("UPDATE users SET name = 'b' WHERE id = 1")
	require.NoError(t, err)
	upd, ok := stmt.(*ast.UpdateStatement)
	require.True(t, ok)
	require.Len(t, upd.Set, 1)
	assert.Equal(t, "name", upd.Set[0].Column)
}

func TestParseDelete(t *testing.T) {
	stmt, err := parser.Parse("DELETE FROM users WHERE id = 1")
	require.NoError(t, err)
	del, ok := stmt.(*ast.DeleteStatement)
	require.True(t, ok)
	assert.Equal(t, "users", del.Table)
}

func TestParseErrorOnTrailingInput(t *testing.T) {
	_, err := parser.Parse("SELECT 1 FROM a b GARBAGE")
	assert.Error(t, err)
}

func TestParseErrorOnUnknownStatement(t *testing.T) {
	_, err := parser.Parse("FROBNICATE users")
	assert.Error(t, err)
}

func TestParseExpressionFragment(t *testing.T) {
	e, err := parser.ParseExpressionFragment("a.id = 1 AND b.active")
	require.NoError(t, err)
	_, ok := e.(*ast.BinaryOp)
	assert.True(t, ok)
}

func TestParseOrderByFragment(t *testing.T) {
	items, err := parser.ParseOrderByFragment("name DESC, id")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].Desc)
	assert.False(t, items[1].Desc)
}
