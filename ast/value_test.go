package ast_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/sqlcore/ast"
)

func TestValueConstructors(t *testing.T) {
	assert.True(t, ast.Null().IsNull())
	assert.Equal(t, int64(42), ast.Int(42).Int)
	assert.Equal(t, 3.5, ast.Float(3.5).Float)
	assert.Equal(t, "19.99", ast.Decimal("19.99").Decimal)
	assert.Equal(t, "hi", ast.Str("hi").Str)
	assert.True(t, ast.Bool(true).Bool)

	now := time.Now()
	assert.Equal(t, now, ast.DateTime(now).Time)
	assert.Equal(t, ast.KindDate, ast.DateOnly(now).Kind)
	assert.Equal(t, ast.KindTime, ast.TimeOnly(now).Kind)
}

func TestValueCloneCopiesBinary(t *testing.T) {
	b := []byte{1, 2, 3}
	v := ast.Binary(b)
	c := v.Clone()
	c.Binary[0] = 99
	require.NotEqual(t, v.Binary[0], c.Binary[0])
}

func TestValueCloneNonBinaryIsValueCopy(t *testing.T) {
	v := ast.Int(7)
	c := v.Clone()
	c.Int = 9
	assert.Equal(t, int64(7), v.Int)
	assert.Equal(t, int64(9), c.Int)
}
