// Package astcache adds a persistent, hit-counted complement to
// parser.Cache (spec §3.1's in-memory AST cache): a process restart starts
// cold, and production call sites with a stable query mix pay the parse
// cost again on every deploy. This package remembers which SQL strings were
// seen and how often, not the parsed ast.Statement tree itself — on load it
// just re-parses each remembered string through a fresh parser.Cache, so an
// ast.Statement schema change never breaks an on-disk cache file.
//
// Entries are encoded with protowire directly (no generated proto.Message
// type) since the record is two fields and stable; this is the same
// low-level wire-format package protoc-generated code itself builds on.
package astcache

import (
	"os"
	"sync"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/parser"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldSQL  protowire.Number = 1
	fieldHits protowire.Number = 2
)

// Cache wraps a parser.Cache, tracking which SQL strings it has seen (the
// inner cache doesn't expose its keys) so they can be persisted.
type Cache struct {
	mu    sync.Mutex
	inner *parser.Cache
	path  string
	max   int
	hits  map[string]int64
	order []string // first-seen order, for deterministic persistence
}

// Open loads path if it exists (a missing file just starts empty) and
// returns a Cache ready for use.
func Open(path string, maxEntries int) (*Cache, error) {
	c := &Cache{
		inner: parser.NewCache(maxEntries),
		path:  path,
		max:   maxEntries,
		hits:  make(map[string]int64),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	entries, err := decodeEntries(data)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, err := c.inner.ParseCached(e.sql); err != nil {
			// A remembered string that no longer parses (e.g. grammar
			// tightened since it was written) is simply dropped.
			continue
		}
		c.hits[e.sql] = e.hits
		c.order = append(c.order, e.sql)
	}
	return c, nil
}

// ParseCached parses sql through the wrapped parser.Cache and records the
// hit for the next Persist.
func (c *Cache) ParseCached(sql string) (ast.Statement, error) {
	stmt, err := c.inner.ParseCached(sql)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if _, ok := c.hits[sql]; !ok {
		c.order = append(c.order, sql)
	}
	c.hits[sql]++
	c.mu.Unlock()
	return stmt, nil
}

// Persist writes every remembered (sql, hits) pair to the configured path.
func (c *Cache) Persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var buf []byte
	for _, sql := range c.order {
		rec := encodeEntry(entry{sql: sql, hits: c.hits[sql]})
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, rec)
	}
	return os.WriteFile(c.path, buf, 0o644)
}

type entry struct {
	sql  string
	hits int64
}

func encodeEntry(e entry) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldSQL, protowire.BytesType)
	buf = protowire.AppendString(buf, e.sql)
	buf = protowire.AppendTag(buf, fieldHits, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(e.hits))
	return buf
}

func decodeEntry(data []byte) (entry, error) {
	var e entry
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return entry{}, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == fieldSQL && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return entry{}, protowire.ParseError(n)
			}
			e.sql = s
			data = data[n:]
		case num == fieldHits && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return entry{}, protowire.ParseError(n)
			}
			e.hits = int64(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return entry{}, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return e, nil
}

func decodeEntries(data []byte) ([]entry, error) {
	var out []entry
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		if num != 1 || typ != protowire.BytesType {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
			continue
		}
		rec, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		e, err := decodeEntry(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
