package vengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/vengine"
)

func seedUsers(t *testing.T, e *vengine.Engine) {
	t.Helper()
	ctx := context.Background()
	rows := []struct {
		id   int64
		name string
		age  int64
	}{
		{1, "alice", 30},
		{2, "bob", 25},
		{3, "carol", 35},
	}
	for _, r := range rows {
		_, err := e.Exec(ctx, `INSERT INTO users (id, name, age) VALUES (`+
			itoa(r.id)+`, '`+r.name+`', `+itoa(r.age)+`)`, nil)
		require.NoError(t, err)
	}
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func setupUsersEngine(t *testing.T) *vengine.Engine {
	t.Helper()
	e := vengine.New()
	ctx := context.Background()
	_, err := e.Exec(ctx, `CREATE TABLE users (id INT PRIMARY KEY, name TEXT, age INT)`, nil)
	require.NoError(t, err)
	seedUsers(t, e)
	return e
}

func TestCreateTableInsertAndSelect(t *testing.T) {
	e := setupUsersEngine(t)
	rows, err := e.Query(context.Background(), `SELECT name, age FROM users WHERE age > 28 ORDER BY age`, nil)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		var age int64
		require.NoError(t, rows.Scan(&name, &age))
		names = append(names, name)
	}
	assert.Equal(t, []string{"alice", "carol"}, names)
}

func TestCreateTableIfNotExistsIsIdempotent(t *testing.T) {
	e := setupUsersEngine(t)
	_, err := e.Exec(context.Background(), `CREATE TABLE IF NOT EXISTS users (id INT PRIMARY KEY)`, nil)
	assert.NoError(t, err)

	_, err = e.Exec(context.Background(), `CREATE TABLE users (id INT PRIMARY KEY)`, nil)
	assert.Error(t, err)
}

func TestDropTableThenQueryMissingTableErrors(t *testing.T) {
	e := setupUsersEngine(t)
	_, err := e.Exec(context.Background(), `DROP TABLE users`, nil)
	require.NoError(t, err)

	_, err = e.Query(context.Background(), `SELECT * FROM users`, nil)
	assert.Error(t, err)

	_, err = e.Exec(context.Background(), `DROP TABLE IF EXISTS users`, nil)
	assert.NoError(t, err)
}

func TestUpdateAndDeleteAffectCounts(t *testing.T) {
	e := setupUsersEngine(t)
	ctx := context.Background()

	n, err := e.Exec(ctx, `UPDATE users SET age = 99 WHERE name = 'bob'`, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	v, err := e.QueryField(ctx, `SELECT age FROM users WHERE name = 'bob'`, nil)
	require.NoError(t, err)
	assert.Equal(t, ast.Int(99), v)

	n, err = e.Exec(ctx, `DELETE FROM users WHERE age > 90`, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	col, err := e.QueryColumn(ctx, `SELECT name FROM users ORDER BY name`, nil)
	require.NoError(t, err)
	assert.Equal(t, []ast.Value{ast.Str("alice"), ast.Str("carol")}, col)
}

func TestGroupByWithAggregates(t *testing.T) {
	e := vengine.New()
	ctx := context.Background()
	_, err := e.Exec(ctx, `CREATE TABLE orders (id INT PRIMARY KEY, customer TEXT, amount INT)`, nil)
	require.NoError(t, err)
	for _, r := range []string{
		`INSERT INTO orders (id, customer, amount) VALUES (1, 'alice', 10)`,
		`INSERT INTO orders (id, customer, amount) VALUES (2, 'alice', 5)`,
		`INSERT INTO orders (id, customer, amount) VALUES (3, 'bob', 7)`,
	} {
		_, err := e.Exec(ctx, r, nil)
		require.NoError(t, err)
	}

	rows, err := e.Query(ctx, `SELECT customer, SUM(amount) AS total FROM orders GROUP BY customer ORDER BY customer`, nil)
	require.NoError(t, err)
	defer rows.Close()

	type agg struct {
		customer string
		total    int64
	}
	var got []agg
	for rows.Next() {
		var c string
		var total int64
		require.NoError(t, rows.Scan(&c, &total))
		got = append(got, agg{c, total})
	}
	assert.Equal(t, []agg{{"alice", 15}, {"bob", 7}}, got)
}

func TestJoinAcrossTwoTables(t *testing.T) {
	e := vengine.New()
	ctx := context.Background()
	require.NoError(t, exec(t, e, `CREATE TABLE users (id INT PRIMARY KEY, name TEXT)`))
	require.NoError(t, exec(t, e, `CREATE TABLE orders (id INT PRIMARY KEY, user_id INT, amount INT)`))
	require.NoError(t, exec(t, e, `INSERT INTO users (id, name) VALUES (1, 'alice')`))
	require.NoError(t, exec(t, e, `INSERT INTO users (id, name) VALUES (2, 'bob')`))
	require.NoError(t, exec(t, e, `INSERT INTO orders (id, user_id, amount) VALUES (1, 1, 100)`))
	require.NoError(t, exec(t, e, `INSERT INTO orders (id, user_id, amount) VALUES (2, 2, 50)`))

	row, err := e.QueryOne(ctx, `SELECT u.name, o.amount FROM users u JOIN orders o ON u.id = o.user_id WHERE o.amount > 60`, nil)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, ast.Str("alice"), row["name"])
}

func exec(t *testing.T, e *vengine.Engine, sql string) error {
	t.Helper()
	_, err := e.Exec(context.Background(), sql, nil)
	return err
}

func TestUnionDistinctDeduplicatesAndAllKeepsDuplicates(t *testing.T) {
	e := setupUsersEngine(t)
	ctx := context.Background()

	rows, err := e.Query(ctx, `SELECT name FROM users WHERE age > 28 UNION SELECT name FROM users WHERE name = 'alice'`, nil)
	require.NoError(t, err)
	var names []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	rows.Close()
	assert.Len(t, names, 2) // alice, carol — not 3, despite alice appearing in both branches

	rows, err = e.Query(ctx, `SELECT name FROM users WHERE age > 28 UNION ALL SELECT name FROM users WHERE name = 'alice'`, nil)
	require.NoError(t, err)
	names = nil
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	rows.Close()
	assert.Len(t, names, 3)
}

func TestRecursiveCTECountsUp(t *testing.T) {
	e := vengine.New()
	ctx := context.Background()
	sql := `WITH RECURSIVE counter(n) AS (
		SELECT 1
		UNION ALL
		SELECT n + 1 FROM counter WHERE n < 5
	)
	SELECT n FROM counter ORDER BY n`
	rows, err := e.Query(ctx, sql, nil)
	require.NoError(t, err)
	defer rows.Close()

	var got []int64
	for rows.Next() {
		var n int64
		require.NoError(t, rows.Scan(&n))
		got = append(got, n)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, got)
}

func TestLimitOffsetAppliedAfterOrderBy(t *testing.T) {
	e := setupUsersEngine(t)
	rows, err := e.Query(context.Background(), `SELECT name FROM users ORDER BY age LIMIT 1 OFFSET 1`, nil)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var name string
	require.NoError(t, rows.Scan(&name))
	assert.Equal(t, "alice", name)
}

func TestZeroQueryTimeoutDisablesDeadline(t *testing.T) {
	e := vengine.New(vengine.WithTimeout(0))
	_, err := e.Exec(context.Background(), `CREATE TABLE t (id INT PRIMARY KEY)`, nil)
	require.NoError(t, err)
	_, err = e.Query(context.Background(), `SELECT * FROM t`, nil)
	assert.NoError(t, err) // zero timeout disables the deadline entirely
}

func TestRegisterTableLookupIsCaseInsensitive(t *testing.T) {
	e := setupUsersEngine(t)
	_, err := e.Query(context.Background(), `SELECT * FROM USERS`, nil)
	assert.NoError(t, err)
}

// TestInPushesDownAgainstIndexedColumn covers scenario S3: an IN list
// against a PRIMARY KEY column should push down through the index-aware
// path in where.go rather than falling back to a row scan.
func TestInPushesDownAgainstIndexedColumn(t *testing.T) {
	e := vengine.New()
	ctx := context.Background()
	require.NoError(t, exec(t, e, `CREATE TABLE users (id INT PRIMARY KEY, name TEXT)`))
	for i := int64(1); i <= 1000; i++ {
		require.NoError(t, exec(t, e, `INSERT INTO users (id, name) VALUES (`+itoa(i)+`, 'user`+itoa(i)+`')`))
	}

	rows, err := e.Query(ctx, `SELECT id FROM users WHERE id IN (3, 7, 42) ORDER BY id`, nil)
	require.NoError(t, err)
	defer rows.Close()

	var got []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		got = append(got, id)
	}
	assert.Equal(t, []int64{3, 7, 42}, got)
}

// TestCorrelatedExistsFiltersByOuterRow covers scenario S4: EXISTS
// referencing the outer query's row must be evaluated per outer row, not
// once for the whole table.
func TestCorrelatedExistsFiltersByOuterRow(t *testing.T) {
	e := vengine.New()
	ctx := context.Background()
	require.NoError(t, exec(t, e, `CREATE TABLE u (id INT PRIMARY KEY, org TEXT)`))
	require.NoError(t, exec(t, e, `CREATE TABLE o (id INT PRIMARY KEY, user_id INT)`))
	require.NoError(t, exec(t, e, `INSERT INTO u (id, org) VALUES (1, 'acme')`))
	require.NoError(t, exec(t, e, `INSERT INTO u (id, org) VALUES (2, 'acme')`))
	require.NoError(t, exec(t, e, `INSERT INTO o (id, user_id) VALUES (1, 1)`))

	rows, err := e.Query(ctx, `SELECT id FROM u WHERE EXISTS (SELECT 1 FROM o WHERE o.user_id = u.id) ORDER BY id`, nil)
	require.NoError(t, err)
	defer rows.Close()

	var got []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		got = append(got, id)
	}
	assert.Equal(t, []int64{1}, got, "only user 1 has a matching order; EXISTS must be evaluated per outer row")
}

// TestGroupByHavingFiltersGroups covers the HAVING half of scenario S6:
// TestGroupByWithAggregates exercises plain GROUP BY, this covers HAVING
// filtering groups by an aggregate result.
func TestGroupByHavingFiltersGroups(t *testing.T) {
	e := vengine.New()
	ctx := context.Background()
	require.NoError(t, exec(t, e, `CREATE TABLE orders (id INT PRIMARY KEY, user_id INT, total INT)`))
	for _, r := range []string{
		`INSERT INTO orders (id, user_id, total) VALUES (1, 1, 10)`,
		`INSERT INTO orders (id, user_id, total) VALUES (2, 1, 20)`,
		`INSERT INTO orders (id, user_id, total) VALUES (3, 2, 15)`,
		`INSERT INTO orders (id, user_id, total) VALUES (4, 3, 5)`,
	} {
		require.NoError(t, exec(t, e, r))
	}

	rows, err := e.Query(ctx, `SELECT user_id, SUM(total) AS s FROM orders GROUP BY user_id HAVING s >= 15 ORDER BY user_id`, nil)
	require.NoError(t, err)
	defer rows.Close()

	type agg struct {
		userID int64
		sum    int64
	}
	var got []agg
	for rows.Next() {
		var userID, sum int64
		require.NoError(t, rows.Scan(&userID, &sum))
		got = append(got, agg{userID, sum})
	}
	assert.Equal(t, []agg{{1, 30}, {2, 15}}, got, "user 3's total of 5 must be excluded by HAVING s >= 15")
}

// TestWindowFunctionsRankRowNumberDenseRank covers scenario S8: RANK,
// ROW_NUMBER, and DENSE_RANK over the same ORDER BY must diverge exactly
// at a tie.
func TestWindowFunctionsRankRowNumberDenseRank(t *testing.T) {
	e := vengine.New()
	ctx := context.Background()
	require.NoError(t, exec(t, e, `CREATE TABLE rows (name TEXT, score INT)`))
	for _, r := range []string{
		`INSERT INTO rows (name, score) VALUES ('A', 100)`,
		`INSERT INTO rows (name, score) VALUES ('B', 100)`,
		`INSERT INTO rows (name, score) VALUES ('C', 90)`,
		`INSERT INTO rows (name, score) VALUES ('D', 80)`,
	} {
		require.NoError(t, exec(t, e, r))
	}

	result, err := e.Query(ctx, `SELECT name, RANK() OVER (ORDER BY score DESC) AS r FROM rows ORDER BY r, name`, nil)
	require.NoError(t, err)
	type ranked struct {
		name string
		rank int64
	}
	var gotRank []ranked
	for result.Next() {
		var name string
		var r int64
		require.NoError(t, result.Scan(&name, &r))
		gotRank = append(gotRank, ranked{name, r})
	}
	result.Close()
	assert.Equal(t, []ranked{{"A", 1}, {"B", 1}, {"C", 3}, {"D", 4}}, gotRank)

	result, err = e.Query(ctx, `SELECT name, DENSE_RANK() OVER (ORDER BY score DESC) AS r FROM rows ORDER BY r, name`, nil)
	require.NoError(t, err)
	gotRank = nil
	for result.Next() {
		var name string
		var r int64
		require.NoError(t, result.Scan(&name, &r))
		gotRank = append(gotRank, ranked{name, r})
	}
	result.Close()
	assert.Equal(t, []ranked{{"A", 1}, {"B", 1}, {"C", 2}, {"D", 3}}, gotRank)

	result, err = e.Query(ctx, `SELECT name, ROW_NUMBER() OVER (ORDER BY score DESC) AS r FROM rows ORDER BY r, name`, nil)
	require.NoError(t, err)
	var gotRowNum []ranked
	for result.Next() {
		var name string
		var r int64
		require.NoError(t, result.Scan(&name, &r))
		gotRowNum = append(gotRowNum, ranked{name, r})
	}
	result.Close()
	assert.Equal(t, []ranked{{"A", 1}, {"B", 2}, {"C", 3}, {"D", 4}}, gotRowNum)
}
