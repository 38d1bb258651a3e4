package render_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/render"
)

func selectAllFrom(table string) *ast.SelectStatement {
	return &ast.SelectStatement{From: &ast.TableRef{Name: table}}
}

func TestRenderSimpleSelectGeneric(t *testing.T) {
	sql, params, err := render.Render(selectAllFrom("users"), render.Generic)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users"`, sql)
	assert.Empty(t, params)
}

func TestRenderQuoteIdentifierPerDialect(t *testing.T) {
	assert.Equal(t, "`users`", render.QuoteIdentifier(render.MySQL, "users"))
	assert.Equal(t, `"users"`, render.QuoteIdentifier(render.Postgres, "users"))
	assert.Equal(t, "`a`.`b`", render.QuoteIdentifier(render.MySQL, "a.b"))
}

func TestRenderPlaceholderBindsParamsInOrder(t *testing.T) {
	stmt := &ast.SelectStatement{
		Columns: []ast.ColumnNode{{Expr: &ast.Identifier{Parts: []string{"id"}}}},
		From:    &ast.TableRef{Name: "users"},
		Where: &ast.BinaryOp{
			Op:    "=",
			Left:  &ast.Identifier{Parts: []string{"id"}},
			Right: &ast.Placeholder{Bound: true, Value: ast.Int(7)},
		},
	}
	sql, params, err := render.Render(stmt, render.Postgres)
	require.NoError(t, err)
	assert.Contains(t, sql, "$1")
	require.Len(t, params, 1)
	assert.Equal(t, ast.Int(7), params[0])
}

func TestRenderUnboundPlaceholderErrors(t *testing.T) {
	stmt := &ast.SelectStatement{
		Columns: []ast.ColumnNode{{Expr: &ast.Identifier{Parts: []string{"id"}}}},
		Where:   &ast.Placeholder{Name: "id"},
	}
	_, _, err := render.Render(stmt, render.Generic)
	assert.Error(t, err)
}

func TestRenderLimitOffsetMySQL(t *testing.T) {
	stmt := selectAllFrom("users")
	stmt.Limit = &ast.Literal{Value: ast.Int(10)}
	stmt.Offset = &ast.Literal{Value: ast.Int(20)}
	sql, _, err := render.Render(stmt, render.MySQL)
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 20, 10")
}

func TestRenderLimitOffsetSQLServer(t *testing.T) {
	stmt := selectAllFrom("users")
	stmt.Limit = &ast.Literal{Value: ast.Int(10)}
	stmt.Offset = &ast.Literal{Value: ast.Int(20)}
	sql, _, err := render.Render(stmt, render.SQLServer)
	require.NoError(t, err)
	assert.Contains(t, sql, "OFFSET 20 ROWS")
	assert.Contains(t, sql, "FETCH NEXT 10 ROWS ONLY")
}

func TestRenderLimitOffsetPostgres(t *testing.T) {
	stmt := selectAllFrom("users")
	stmt.Limit = &ast.Literal{Value: ast.Int(10)}
	stmt.Offset = &ast.Literal{Value: ast.Int(20)}
	sql, _, err := render.Render(stmt, render.Postgres)
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 10")
	assert.Contains(t, sql, "OFFSET 20")
}

func TestRenderExceptUnsupportedOnMySQL(t *testing.T) {
	u := &ast.UnionNode{Op: ast.SetExcept, Left: selectAllFrom("a"), Right: selectAllFrom("b")}
	_, _, err := render.Render(u, render.MySQL)
	assert.Error(t, err)
}

func TestRenderStringLiteralEscaping(t *testing.T) {
	stmt := &ast.SelectStatement{
		Columns: []ast.ColumnNode{{Expr: &ast.Literal{Value: ast.Str("it's")}}},
	}
	sql, _, err := render.Render(stmt, render.Generic)
	require.NoError(t, err)
	assert.Contains(t, sql, "'it''s'")
}

func TestRenderInsertStatement(t *testing.T) {
	stmt := &ast.InsertStatement{
		Table:   "users",
		Columns: []string{"id", "name"},
		Rows: [][]ast.Expr{
			{&ast.Literal{Value: ast.Int(1)}, &ast.Literal{Value: ast.Str("a")}},
		},
	}
	sql, _, err := render.Render(stmt, render.Postgres)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("id", "name") VALUES (1, 'a')`, sql)
}
