package driverbackend_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/driverbackend"
	"github.com/omniql-engine/sqlcore/render"
)

// fakeSQLDriver is a minimal database/sql/driver implementation, enough to
// exercise Backend's dispatch between QueryContext and ExecContext without
// a real database. Open always returns the same fakeConn so a test can
// inspect what the backend sent it.
type fakeSQLDriver struct {
	conn *fakeConn
}

func (d fakeSQLDriver) Open(name string) (driver.Conn, error) { return d.conn, nil }

type fakeConn struct {
	mu         sync.Mutex
	lastQuery  string
	queryCalls int
	execCalls  int
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (c *fakeConn) Close() error                              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error)                 { return nil, driver.ErrSkip }

func (c *fakeConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	c.lastQuery = query
	c.queryCalls++
	c.mu.Unlock()
	return &fakeDriverRows{cols: []string{"id"}, data: [][]driver.Value{{int64(1)}, {int64(2)}}}, nil
}

func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	c.lastQuery = query
	c.execCalls++
	c.mu.Unlock()
	return fakeResult{affected: 1, lastID: 42}, nil
}

type fakeDriverRows struct {
	cols []string
	data [][]driver.Value
	idx  int
}

func (r *fakeDriverRows) Columns() []string { return r.cols }
func (r *fakeDriverRows) Close() error       { return nil }
func (r *fakeDriverRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.data) {
		return sql.ErrNoRows
	}
	copy(dest, r.data[r.idx])
	r.idx++
	return nil
}

type fakeResult struct {
	affected int64
	lastID   int64
}

func (r fakeResult) LastInsertId() (int64, error) { return r.lastID, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

var driverSeq int
var driverSeqMu sync.Mutex

// openFakeDB registers a fresh fakeSQLDriver under a unique name (sql.Register
// panics on a duplicate name) and returns both the resulting *sql.DB and the
// fakeConn backing it, so a test can inspect what the backend sent.
func openFakeDB(t *testing.T) (*sql.DB, *fakeConn) {
	t.Helper()
	driverSeqMu.Lock()
	driverSeq++
	name := "sqlcore-fake-" + string(rune('a'+driverSeq))
	driverSeqMu.Unlock()

	conn := &fakeConn{}
	sql.Register(name, fakeSQLDriver{conn: conn})
	db, err := sql.Open(name, "test")
	require.NoError(t, err)
	return db, conn
}

func TestExecuteDispatchesSelectToQueryContext(t *testing.T) {
	db, conn := openFakeDB(t)
	b := driverbackend.New(db, render.Postgres)
	exec := b.Executor()

	rows, err := exec(context.Background(), "SELECT id FROM users", nil, nil)
	require.NoError(t, err)
	defer rows.Close()

	var n int
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		n++
	}
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, conn.queryCalls)
	assert.Equal(t, 0, conn.execCalls)
}

func TestExecuteDispatchesInsertToExecContext(t *testing.T) {
	db, conn := openFakeDB(t)
	b := driverbackend.New(db, render.Postgres)
	exec := b.Executor()

	stmt := &ast.InsertStatement{
		Table:   "users",
		Columns: []string{"id"},
		Rows:    [][]ast.Expr{{&ast.Literal{Value: ast.Int(1)}}},
	}
	rows, err := exec(context.Background(), "", nil, stmt)
	require.NoError(t, err)
	defer rows.Close()

	type affected interface{ Affected() int64 }
	a, ok := rows.(affected)
	require.True(t, ok)
	assert.Equal(t, int64(1), a.Affected())
	assert.Equal(t, 1, conn.execCalls)
	assert.Contains(t, conn.lastQuery, "INSERT INTO")
}

func TestExecuteRendersMutatedStatementBeforeDispatch(t *testing.T) {
	db, conn := openFakeDB(t)
	b := driverbackend.New(db, render.Postgres)
	exec := b.Executor()

	stmt := &ast.SelectStatement{From: &ast.TableRef{Name: "users"}}
	_, err := exec(context.Background(), "ignored raw sql", nil, stmt)
	require.NoError(t, err)
	assert.Contains(t, conn.lastQuery, `SELECT * FROM "users"`)
}
