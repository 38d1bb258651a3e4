package query_test

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/query"
	"github.com/omniql-engine/sqlcore/render"
	"github.com/omniql-engine/sqlcore/vengine"
)

// fakeRows is a minimal query.Rows backed by a fixed set of single-column
// values, enough to drive terminal methods without a real backend.
type fakeRows struct {
	vals []any
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.vals)
}
func (r *fakeRows) Scan(dest ...any) error {
	v := r.vals[r.idx-1]
	switch p := dest[0].(type) {
	case *any:
		*p = v
	case *int64:
		*p = v.(int64)
	}
	return nil
}
func (r *fakeRows) Columns() ([]string, error) { return []string{"v"}, nil }
func (r *fakeRows) Err() error                 { return nil }
func (r *fakeRows) Close() error                { return nil }

// capturingExecutor records the last sql/stmt it was asked to run and
// returns canned rows, enough to inspect both fast-path and slow-path
// dispatch (spec §6.4) without a real backend.
type capturingExecutor struct {
	lastSQL  string
	lastStmt ast.Statement
	rows     []any
}

func (c *capturingExecutor) exec(_ context.Context, sql string, _ []ast.Value, stmt ast.Statement) (query.Rows, error) {
	c.lastSQL = sql
	c.lastStmt = stmt
	return &fakeRows{vals: c.rows}, nil
}

func renderedSQL(t *testing.T, ce *capturingExecutor) string {
	t.Helper()
	require.NotNil(t, ce.lastStmt, "expected the slow path (rendered AST) to have been used")
	sql, _, err := render.Render(ce.lastStmt, render.Generic)
	require.NoError(t, err)
	return sql
}

func TestFromSQLUsesFastPathUntilMutated(t *testing.T) {
	ce := &capturingExecutor{}
	q := query.FromSQL(ce.exec, "SELECT * FROM users", nil)
	_, err := q.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users", ce.lastSQL)
	assert.Nil(t, ce.lastStmt)
}

func TestMutatingQuerySwitchesToSlowPath(t *testing.T) {
	ce := &capturingExecutor{}
	q := query.FromSQL(ce.exec, "SELECT * FROM users", nil)
	q2, err := q.Eq("id", ast.Int(1))
	require.NoError(t, err)
	_, err = q2.Run(context.Background())
	require.NoError(t, err)
	sql := renderedSQL(t, ce)
	assert.Contains(t, sql, `"id" = 1`)
}

func TestQueryIsImmutable(t *testing.T) {
	ce := &capturingExecutor{}
	q := query.FromSQL(ce.exec, "SELECT * FROM users", nil)
	_, err := q.Eq("id", ast.Int(1))
	require.NoError(t, err)

	// the original q must still be unmutated: running it uses the fast path
	_, err = q.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users", ce.lastSQL)
	assert.Nil(t, ce.lastStmt)
}

func TestLimitOnlyNarrows(t *testing.T) {
	ce := &capturingExecutor{}
	q := query.FromSQL(ce.exec, "SELECT * FROM users LIMIT 5", nil)
	q2, err := q.Limit(10)
	require.NoError(t, err)
	_, err = q2.Run(context.Background())
	require.NoError(t, err)
	sql := renderedSQL(t, ce)
	assert.Contains(t, sql, "LIMIT 5")
}

func TestOffsetIsAdditiveAndShrinksLimit(t *testing.T) {
	ce := &capturingExecutor{}
	q := query.FromSQL(ce.exec, "SELECT * FROM users LIMIT 10 OFFSET 5", nil)
	q2, err := q.Offset(3)
	require.NoError(t, err)
	_, err = q2.Run(context.Background())
	require.NoError(t, err)
	sql := renderedSQL(t, ce)
	assert.Contains(t, sql, "OFFSET 8")
	assert.Contains(t, sql, "LIMIT 7")
}

func TestInWithEmptyListMatchesNothing(t *testing.T) {
	ce := &capturingExecutor{}
	q := query.FromSQL(ce.exec, "SELECT * FROM users", nil)
	q2, err := q.In("id", nil)
	require.NoError(t, err)
	_, err = q2.Run(context.Background())
	require.NoError(t, err)
	sql := renderedSQL(t, ce)
	assert.Contains(t, sql, "1 = 0")
}

func TestOrRequiresAtLeastTwoPredicates(t *testing.T) {
	ce := &capturingExecutor{}
	q := query.FromSQL(ce.exec, "SELECT * FROM users", nil)
	_, err := q.Or(&ast.Literal{Value: ast.Bool(true)})
	assert.Error(t, err)
}

func TestCountWrapsAndStripsOrderBy(t *testing.T) {
	ce := &capturingExecutor{rows: []any{int64(3)}}
	q := query.FromSQL(ce.exec, "SELECT * FROM users ORDER BY id", nil)
	n, err := q.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	sql := renderedSQL(t, ce)
	assert.Contains(t, sql, "COUNT(*)")
	assert.NotContains(t, sql, "ORDER BY")
}

func TestAllRequiresHydrator(t *testing.T) {
	ce := &capturingExecutor{}
	q := query.FromSQL(ce.exec, "SELECT * FROM users", nil)
	_, err := q.All(context.Background())
	assert.Error(t, err)
}

func TestAllDrivesHydratorAndLoadCallback(t *testing.T) {
	ce := &capturingExecutor{rows: []any{int64(1), int64(2)}}
	var loaded []any
	q := query.FromSQL(ce.exec, "SELECT * FROM users", nil).
		WithHydrator(func(rows query.Rows) (any, error) {
			var out []any
			for rows.Next() {
				var v any
				if err := rows.Scan(&v); err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			return out, nil
		}).
		WithLoadCallback(func(v any) { loaded = append(loaded, v) })

	result, err := q.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, result)
	assert.Equal(t, []any{int64(1), int64(2)}, loaded)
}

func TestWithCTEShadowingErrors(t *testing.T) {
	ce := &capturingExecutor{}
	inner := query.FromSQL(ce.exec, "SELECT 1", nil)
	q, err := query.FromSQL(ce.exec, "WITH x AS (SELECT 1) SELECT * FROM x", nil).
		WithCTE("x", nil, inner)
	assert.Error(t, err)
	assert.Nil(t, q)
}

// TestUnionMergesSharedCTE covers testable property #10 / scenario S7: two
// builders defining the same-named CTE against the same underlying AST
// merge into a single CTE rather than erroring. Calling Where once forces
// cteQuery's AST to be cached on cteQuery.stmt, so every later
// cteQuery.resolved() (one per WithCTE call below) returns that identical
// *ast.WithStatement-less select node rather than reparsing a fresh copy —
// exactly the "same AST" case compose.go's sameCTE (pointer identity) is
// grounded on.
func TestUnionMergesSharedCTE(t *testing.T) {
	ce := &capturingExecutor{}
	cteQuery, err := query.FromSQL(ce.exec, "SELECT 1 AS x", nil).Where("x > 0", nil)
	require.NoError(t, err)

	a, err := query.FromSQL(ce.exec, "SELECT * FROM t1", nil).WithCTE("c", nil, cteQuery)
	require.NoError(t, err)
	b, err := query.FromSQL(ce.exec, "SELECT * FROM t2", nil).WithCTE("c", nil, cteQuery)
	require.NoError(t, err)

	merged, err := a.Union(b, false)
	require.NoError(t, err)

	_, err = merged.Run(context.Background())
	require.NoError(t, err)
	sql := renderedSQL(t, ce)
	assert.Equal(t, 1, strings.Count(sql, `"c" AS (`), "expected exactly one merged CTE definition, got: %s", sql)
	assert.Contains(t, sql, "UNION")
}

// TestUnionConflictingCTEsErrors covers the other half of testable property
// #10: two same-named CTEs backed by structurally different queries (here,
// two entirely distinct *query.Query values, so sameCTE's pointer-identity
// check can never consider them equal) must raise ConflictingCTE rather
// than silently picking one side.
func TestUnionConflictingCTEsErrors(t *testing.T) {
	ce := &capturingExecutor{}
	cte1 := query.FromSQL(ce.exec, "SELECT 1 AS x", nil)
	cte2 := query.FromSQL(ce.exec, "SELECT 2 AS x", nil)

	a, err := query.FromSQL(ce.exec, "SELECT * FROM t1", nil).WithCTE("c", nil, cte1)
	require.NoError(t, err)
	b, err := query.FromSQL(ce.exec, "SELECT * FROM t2", nil).WithCTE("c", nil, cte2)
	require.NoError(t, err)

	merged, err := a.Union(b, false)
	assert.Error(t, err)
	assert.Nil(t, merged)
}

// TestWherePaginationBarrier covers testable property #4 / scenario S1: a
// Where applied to an already-Limit/Offset'd builder must filter the
// paginated window, not the pre-paginated set. Executed against a real
// vengine.Engine (not just inspected as rendered SQL) so a regression in
// barrier ordering would actually change the result set, not just the
// emitted WITH/SELECT/FROM text.
func TestWherePaginationBarrier(t *testing.T) {
	ctx := context.Background()
	eng := vengine.New()
	_, err := eng.Exec(ctx, `CREATE TABLE t (id INT PRIMARY KEY)`, nil)
	require.NoError(t, err)
	for i := int64(1); i <= 20; i++ {
		_, err := eng.Exec(ctx, `INSERT INTO t (id) VALUES (`+strconv.FormatInt(i, 10)+`)`, nil)
		require.NoError(t, err)
	}

	q := query.FromSQL(eng.Execute, "SELECT id FROM t ORDER BY id", nil)
	q, err = q.Limit(10)
	require.NoError(t, err)
	q, err = q.Where("id > ?", []ast.Value{ast.Int(5)})
	require.NoError(t, err)

	rs, err := q.Run(ctx)
	require.NoError(t, err)
	defer rs.Close()

	var got []int64
	for rs.Next() {
		var v int64
		require.NoError(t, rs.Scan(&v))
		got = append(got, v)
	}
	require.NoError(t, rs.Err())
	assert.Equal(t, []int64{6, 7, 8, 9, 10}, got, "where() on a limited builder must filter the paginated window, not the pre-paginated set")
}
