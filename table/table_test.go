package table_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/table"
)

func newUsersTable() *table.Base {
	b := table.NewBase("users", []ast.ColumnDef{
		{Name: "id", Kind: ast.ColInt, Index: ast.IndexPrimary},
		{Name: "name", Kind: ast.ColText},
		{Name: "age", Kind: ast.ColInt},
	})
	for i, name := range []string{"alice", "bob", "carol"} {
		_, err := b.Insert(table.Row{
			"id":   ast.Int(int64(i + 1)),
			"name": ast.Str(name),
			"age":  ast.Int(int64(20 + i)),
		})
		if err != nil {
			panic(err)
		}
	}
	return b
}

func TestBaseInsertAndRows(t *testing.T) {
	b := newUsersTable()
	ids, rows, err := b.Rows()
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Len(t, rows, 3)
}

func TestBaseInsertUsesDeclaredPrimaryKey(t *testing.T) {
	b := table.NewBase("t", []ast.ColumnDef{{Name: "id", Kind: ast.ColInt, Index: ast.IndexPrimary}})
	id, err := b.Insert(table.Row{"id": ast.Int(5)})
	require.NoError(t, err)
	assert.Equal(t, table.RowID("i:5"), id)
}

func TestBaseEqFilter(t *testing.T) {
	b := newUsersTable()
	filtered := b.Eq("name", ast.Str("bob"))
	_, rows, err := filtered.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ast.Str("bob"), rows[0]["name"])
}

func TestBaseGtFilter(t *testing.T) {
	b := newUsersTable()
	_, rows, err := b.Gt("age", ast.Int(20)).Rows()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestBaseOrderDescLimitOffset(t *testing.T) {
	b := newUsersTable()
	ordered := b.Order([]table.OrderSpec{{Column: "age", Desc: true}})
	_, rows, err := ordered.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ast.Str("carol"), rows[0]["name"])

	limited := ordered.Offset(1).Limit(1)
	_, rows, err = limited.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ast.Str("bob"), rows[0]["name"])
}

func TestBaseProjectKeepsOnlyRequestedColumns(t *testing.T) {
	b := newUsersTable()
	projected := b.Project([]string{"name"})
	_, rows, err := projected.Rows()
	require.NoError(t, err)
	for _, r := range rows {
		assert.Len(t, r, 1)
		_, ok := r["name"]
		assert.True(t, ok)
	}
}

func TestBaseDistinctDedupsRows(t *testing.T) {
	b := table.NewBase("t", []ast.ColumnDef{{Name: "v", Kind: ast.ColInt}})
	b.Insert(table.Row{"v": ast.Int(1)})
	b.Insert(table.Row{"v": ast.Int(1)})
	b.Insert(table.Row{"v": ast.Int(2)})
	_, rows, err := b.Distinct().Rows()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestBaseUnionAllKeepsDuplicates(t *testing.T) {
	a := table.FromRows([]table.Row{{"v": ast.Int(1)}})
	b := table.FromRows([]table.Row{{"v": ast.Int(1)}})
	_, rows, err := a.Union(b, true).Rows()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestBaseUpdateAndDelete(t *testing.T) {
	b := newUsersTable()
	ids, _, err := b.Rows()
	require.NoError(t, err)

	n, err := b.Update([]table.RowID{ids[0]}, map[string]ast.Value{"age": ast.Int(99)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, rows, err := b.Rows()
	require.NoError(t, err)
	assert.Equal(t, ast.Int(99), rows[0]["age"])

	n, err = b.Delete([]table.RowID{ids[0]})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, rows, err = b.Rows()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFromRowsHasNoColumnDefs(t *testing.T) {
	b := table.FromRows([]table.Row{{"v": ast.Int(1)}})
	assert.Empty(t, b.ColumnDefs())
}
