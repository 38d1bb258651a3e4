package parser

import (
	"sync"

	"github.com/omniql-engine/sqlcore/ast"
)

// Cache memoises Parse results keyed by exact source text. It is read-mostly
// and safe for concurrent use; callers must treat returned ASTs as shared
// and clone before mutating (spec §3.1, §5).
type Cache struct {
	mu      sync.RWMutex
	entries map[string]ast.Statement
	max     int
}

func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Cache{entries: make(map[string]ast.Statement), max: maxEntries}
}

// shared is the process-global AST cache backing the package-level
// ParseCached (spec §2 "Parser (cached)" pipeline stage, §5 "the AST cache
// may be per-engine or process-global; if global, it must be read-mostly
// and concurrent-safe" — Cache already guards every access with a mutex).
var shared = NewCache(1024)

// ParseCached parses sql through the shared process-global Cache, so
// repeated execution of identical SQL text (the common case for a builder's
// fast path and for an engine driving the same statement in a loop) only
// pays the parse cost once. The returned statement is shared; callers must
// Clone it before mutating placeholders or any other field.
func ParseCached(sql string) (ast.Statement, error) {
	return shared.ParseCached(sql)
}

// ParseCached parses sql, reusing a cached AST when the same source text was
// parsed before. The returned statement is shared; callers must clone it
// before any mutation (copy-on-write).
func (c *Cache) ParseCached(sql string) (ast.Statement, error) {
	c.mu.RLock()
	if stmt, ok := c.entries[sql]; ok {
		c.mu.RUnlock()
		return stmt, nil
	}
	c.mu.RUnlock()

	stmt, err := Parse(sql)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if len(c.entries) >= c.max {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[sql] = stmt
	c.mu.Unlock()
	return stmt, nil
}
