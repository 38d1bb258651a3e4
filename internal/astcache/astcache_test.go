package astcache_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/sqlcore/internal/astcache"
)

func TestOpenOnMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.cache")
	c, err := astcache.Open(path, 8)
	require.NoError(t, err)
	require.NotNil(t, c)

	stmt, err := c.ParseCached("SELECT 1")
	require.NoError(t, err)
	assert.NotNil(t, stmt)
}

func TestPersistAndReopenRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ast.cache")
	c, err := astcache.Open(path, 8)
	require.NoError(t, err)

	_, err = c.ParseCached("SELECT 1")
	require.NoError(t, err)
	_, err = c.ParseCached("SELECT 1")
	require.NoError(t, err)
	_, err = c.ParseCached("SELECT 2")
	require.NoError(t, err)

	require.NoError(t, c.Persist())

	reopened, err := astcache.Open(path, 8)
	require.NoError(t, err)
	stmt, err := reopened.ParseCached("SELECT 1")
	require.NoError(t, err)
	assert.NotNil(t, stmt)
}

func TestCacheReusesStatementAndRejectsInvalidSQL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ast.cache")
	c, err := astcache.Open(path, 8)
	require.NoError(t, err)

	a1, err := c.ParseCached("SELECT 1")
	require.NoError(t, err)
	a2, err := c.ParseCached("SELECT 1")
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	_, err = c.ParseCached("NOT SQL AT ALL !!!")
	assert.Error(t, err)
}
