package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/sqlcore/parser"
)

func TestCacheReturnsSameStatementForSameText(t *testing.T) {
	c := parser.NewCache(8)
	a, err := c.ParseCached("SELECT 1")
	require.NoError(t, err)
	b, err := c.ParseCached("SELECT 1")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestCacheEvictsWhenFull(t *testing.T) {
	c := parser.NewCache(1)
	_, err := c.ParseCached("SELECT 1")
	require.NoError(t, err)
	_, err = c.ParseCached("SELECT 2")
	require.NoError(t, err)
	// With a max of 1 and two distinct keys parsed, eviction must have
	// happened somewhere; re-parsing either should still succeed rather
	// than panicking or growing unbounded.
	_, err = c.ParseCached("SELECT 3")
	require.NoError(t, err)
}

func TestCachePropagatesParseError(t *testing.T) {
	c := parser.NewCache(8)
	_, err := c.ParseCached("NOT SQL AT ALL !!!")
	assert.Error(t, err)
}
