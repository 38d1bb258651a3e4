package sqlcore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlcore "github.com/omniql-engine/sqlcore"
	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/query"
	"github.com/omniql-engine/sqlcore/render"
)

// fakeRows is a multi-column query.Rows double, enough to drive the
// façade's row-to-ast.Value and row-to-table.Row conversions.
type fakeRows struct {
	cols []string
	data [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.data)
}
func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i, d := range dest {
		*(d.(*any)) = row[i]
	}
	return nil
}
func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }
func (r *fakeRows) Err() error                  { return nil }
func (r *fakeRows) Close() error                { return nil }

// fakeExecResult is the affecter the façade's Exec expects back from a
// mutating statement.
type fakeExecResult struct{ affected int64 }

func (r *fakeExecResult) Next() bool                 { return false }
func (r *fakeExecResult) Scan(dest ...any) error     { return nil }
func (r *fakeExecResult) Columns() ([]string, error) { return nil, nil }
func (r *fakeExecResult) Err() error                  { return nil }
func (r *fakeExecResult) Close() error                { return nil }
func (r *fakeExecResult) Affected() int64              { return r.affected }

func fakeBackend(rows query.Rows) sqlcore.Backend {
	return sqlcore.Backend{
		Dialect: render.Generic,
		Exec: func(ctx context.Context, sql string, params []ast.Value, stmt ast.Statement) (query.Rows, error) {
			return rows, nil
		},
	}
}

func TestQueryReturnsRowIterator(t *testing.T) {
	e := sqlcore.New(fakeBackend(&fakeRows{cols: []string{"id"}, data: [][]any{{int64(1)}, {int64(2)}}}))
	rows, err := e.Query(context.Background(), "SELECT id FROM t", nil)
	require.NoError(t, err)
	defer rows.Close()

	var n int
	for rows.Next() {
		n++
	}
	assert.Equal(t, 2, n)
}

func TestQueryOneReturnsFirstRowAsTableRow(t *testing.T) {
	e := sqlcore.New(fakeBackend(&fakeRows{
		cols: []string{"id", "name"},
		data: [][]any{{int64(1), "alice"}},
	}))
	row, err := e.QueryOne(context.Background(), "SELECT id, name FROM t", nil)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, ast.Int(1), row["id"])
	assert.Equal(t, ast.Str("alice"), row["name"])
}

func TestQueryOneReturnsNilOnNoRows(t *testing.T) {
	e := sqlcore.New(fakeBackend(&fakeRows{cols: []string{"id"}}))
	row, err := e.QueryOne(context.Background(), "SELECT id FROM t", nil)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestQueryFieldReturnsFirstColumnOfFirstRow(t *testing.T) {
	e := sqlcore.New(fakeBackend(&fakeRows{cols: []string{"n"}, data: [][]any{{int64(42)}}}))
	v, err := e.QueryField(context.Background(), "SELECT n FROM t", nil)
	require.NoError(t, err)
	assert.Equal(t, ast.Int(42), v)
}

func TestQueryColumnReturnsFirstFieldOfEveryRow(t *testing.T) {
	e := sqlcore.New(fakeBackend(&fakeRows{
		cols: []string{"n"},
		data: [][]any{{int64(1)}, {int64(2)}, {int64(3)}},
	}))
	col, err := e.QueryColumn(context.Background(), "SELECT n FROM t", nil)
	require.NoError(t, err)
	assert.Equal(t, []ast.Value{ast.Int(1), ast.Int(2), ast.Int(3)}, col)
}

func TestExecReturnsAffectedCount(t *testing.T) {
	e := sqlcore.New(fakeBackend(&fakeExecResult{affected: 5}))
	n, err := e.Exec(context.Background(), "DELETE FROM t", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestTransactionDefaultsToRunningTaskDirectly(t *testing.T) {
	e := sqlcore.New(fakeBackend(&fakeRows{}))
	called := false
	err := e.Transaction(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestQuoteIdentifierDefaultsToDialectQuoting(t *testing.T) {
	e := sqlcore.New(fakeBackend(&fakeRows{}))
	assert.Equal(t, `"users"`, e.QuoteIdentifier("users"))
}

func TestLastInsertIDDefaultsToZero(t *testing.T) {
	e := sqlcore.New(fakeBackend(&fakeRows{}))
	assert.Equal(t, int64(0), e.LastInsertID())
}

func TestFromTableBuildsSelectStarQuery(t *testing.T) {
	e := sqlcore.New(fakeBackend(&fakeRows{cols: []string{"id"}, data: [][]any{{int64(1)}}}))
	q := e.FromTable("users")
	_, err := q.Run(context.Background())
	require.NoError(t, err)
}
