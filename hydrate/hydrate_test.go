package hydrate_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/hydrate"
	"github.com/omniql-engine/sqlcore/query"
	"github.com/omniql-engine/sqlcore/table"
)

// fakeRows is a minimal query.Rows backed by a fixed column list and a set
// of rows, each row a slice of values in column order.
type fakeRows struct {
	cols []string
	rows [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}
func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		*(d.(*any)) = row[i]
	}
	return nil
}
func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }
func (r *fakeRows) Err() error                  { return nil }
func (r *fakeRows) Close() error                { return nil }

var _ query.Rows = (*fakeRows)(nil)

type User struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func TestHydrateAllIntoStructByTag(t *testing.T) {
	h := hydrate.New(hydrate.WithEntityClass((*User)(nil)))
	rows := &fakeRows{cols: []string{"id", "name"}, rows: [][]any{
		{int64(1), "alice"},
		{int64(2), "bob"},
	}}
	out, err := h.HydrateAll(rows)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, &User{ID: 1, Name: "alice"}, out[0])
	assert.Equal(t, &User{ID: 2, Name: "bob"}, out[1])
}

func TestHydrateAllFallsBackToLowercasedFieldName(t *testing.T) {
	type Plain struct {
		ID   int64
		Name string
	}
	h := hydrate.New(hydrate.WithEntityClass((*Plain)(nil)))
	rows := &fakeRows{cols: []string{"id", "name"}, rows: [][]any{{int64(7), "carol"}}}
	out, err := h.HydrateAll(rows)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, &Plain{ID: 7, Name: "carol"}, out[0])
}

// capturingRowHydrator implements hydrate.RowHydrator, taking over row
// conversion entirely instead of going through field reflection.
type capturingRowHydrator struct {
	captured table.Row
}

func (c *capturingRowHydrator) FromSQLRow(row table.Row) error {
	c.captured = row
	return nil
}

func TestHydrateRowHydratorTakesOver(t *testing.T) {
	h := hydrate.New(hydrate.WithConstructor(func(args ...any) (any, error) {
		return &capturingRowHydrator{}, nil
	}))
	rows := &fakeRows{cols: []string{"a"}, rows: [][]any{{int64(1)}}}
	out, err := h.HydrateAll(rows)
	require.NoError(t, err)
	require.Len(t, out, 1)
	hydrated := out[0].(*capturingRowHydrator)
	assert.Equal(t, ast.Int(1), hydrated.captured["a"])
}

func TestHydrateAllWithRowFuncBypassesReflection(t *testing.T) {
	var captured [][]ast.Value
	h := hydrate.New(hydrate.WithRowFunc([]string{"id", "name"}, func(vals []ast.Value) (any, error) {
		captured = append(captured, vals)
		return vals, nil
	}))
	rows := &fakeRows{cols: []string{"id", "name"}, rows: [][]any{{int64(1), "alice"}}}
	_, err := h.HydrateAll(rows)
	require.NoError(t, err)
	require.Len(t, captured, 1)
	assert.Equal(t, ast.Int(1), captured[0][0])
	assert.Equal(t, ast.Str("alice"), captured[0][1])
}

func TestHydrateAllInvokesLoadCallback(t *testing.T) {
	var loaded []any
	h := hydrate.New(
		hydrate.WithEntityClass((*User)(nil)),
		hydrate.WithLoadCallback(func(v any) { loaded = append(loaded, v) }),
	)
	rows := &fakeRows{cols: []string{"id", "name"}, rows: [][]any{{int64(1), "alice"}}}
	_, err := h.HydrateAll(rows)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, &User{ID: 1, Name: "alice"}, loaded[0])
}

func TestDatetimeConverterHandlesStringIntMillisFloat(t *testing.T) {
	conv := hydrate.DatetimeConverter(time.UTC, time.UTC)
	target := reflect.TypeOf(time.Time{})

	v, ok, err := conv(ast.Str("2024-01-02 03:04:05"), target)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2024, v.(time.Time).Year())

	v, ok, err = conv(ast.Int(1704164645), target) // seconds magnitude
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2024, v.(time.Time).Year())

	v, ok, err = conv(ast.Int(1704164645000), target) // millis magnitude
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2024, v.(time.Time).Year())

	v, ok, err = conv(ast.Float(1704164645.5), target)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 500000000, v.(time.Time).Nanosecond())
}

func TestDatetimeConverterIgnoresNonTimeTarget(t *testing.T) {
	conv := hydrate.DatetimeConverter(time.UTC, time.UTC)
	_, ok, err := conv(ast.Str("2024-01-02"), reflect.TypeOf(""))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTableNameForPluralisesSnakeCase(t *testing.T) {
	type OrderLine struct{}
	assert.Equal(t, "order_lines", hydrate.TableNameFor(reflect.TypeOf(&OrderLine{})))

	type Person struct{}
	assert.Equal(t, "people", hydrate.TableNameFor(reflect.TypeOf(&Person{})))
}
