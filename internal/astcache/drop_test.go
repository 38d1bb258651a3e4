package astcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"google.golang.org/protobuf/encoding/protowire"
)

// TestOpenDropsEntryThatNoLongerParses writes a persisted record whose SQL
// text is not valid, bypassing ParseCached/Persist (which can never produce
// one), to confirm Open silently drops it instead of failing outright.
func TestOpenDropsEntryThatNoLongerParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ast.cache")

	var buf []byte
	rec := encodeEntry(entry{sql: "NOT SQL AT ALL !!!", hits: 3})
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendBytes(buf, rec)
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	c, err := Open(path, 8)
	require.NoError(t, err)
	assert.Empty(t, c.order)
	assert.Empty(t, c.hits)
}
