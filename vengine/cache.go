package vengine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/table"
)

// ResultCache memoises a query's materialised rows in Redis, keyed by the
// SQL text plus bound parameters (SPEC_FULL.md supplemental feature: an
// optional redis-backed result cache). It only ever sees Query's read path
// (Exec has its own method and is never consulted here), so every cached
// entry is, by construction, the output of a non-mutating statement.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultCache wraps client with a fixed per-entry TTL.
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, ttl: ttl}
}

// cachedPayload is the JSON wire shape stored in Redis: plain columns plus
// one map per row, tagged-union values flattened to a small struct so a
// round trip through JSON preserves Kind without reflection.
type cachedPayload struct {
	Cols []string          `json:"cols"`
	Rows []map[string]cval `json:"rows"`
}

type cval struct {
	K  ast.ValueKind `json:"k"`
	I  int64         `json:"i,omitempty"`
	F  float64       `json:"f,omitempty"`
	S  string        `json:"s,omitempty"`
	Bo bool          `json:"b,omitempty"`
}

func toCval(v ast.Value) cval {
	switch v.Kind {
	case ast.KindDecimal:
		return cval{K: v.Kind, S: v.Decimal}
	case ast.KindBinary:
		return cval{K: v.Kind, S: string(v.Binary)}
	case ast.KindDate, ast.KindTime, ast.KindDateTime:
		return cval{K: v.Kind, S: v.Time.Format(time.RFC3339Nano)}
	default:
		return cval{K: v.Kind, I: v.Int, F: v.Float, S: v.Str, Bo: v.Bool}
	}
}

func (c cval) toValue() ast.Value {
	switch c.K {
	case ast.KindDecimal:
		return ast.Decimal(c.S)
	case ast.KindBinary:
		return ast.Binary([]byte(c.S))
	case ast.KindDate, ast.KindTime, ast.KindDateTime:
		t, _ := time.Parse(time.RFC3339Nano, c.S)
		switch c.K {
		case ast.KindDate:
			return ast.DateOnly(t)
		case ast.KindTime:
			return ast.TimeOnly(t)
		default:
			return ast.DateTime(t)
		}
	case ast.KindString:
		return ast.Str(c.S)
	case ast.KindInt:
		return ast.Int(c.I)
	case ast.KindFloat:
		return ast.Float(c.F)
	case ast.KindBool:
		return ast.Bool(c.Bo)
	default:
		return ast.Null()
	}
}

func cacheKey(sql string, params []ast.Value) string {
	h := sha256.New()
	h.Write([]byte(sql))
	for _, p := range params {
		h.Write([]byte{byte(p.Kind)})
		c := toCval(p)
		h.Write([]byte(c.S))
	}
	return "sqlcore:q:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns a previously cached (cols, rows) pair for sql+params, or
// ok=false on a miss or any Redis/decode error (a cache is never allowed to
// turn a query failure into a success, only a hit into one).
func (rc *ResultCache) Get(ctx context.Context, sql string, params []ast.Value) ([]string, []table.Row, bool) {
	if rc == nil || rc.client == nil {
		return nil, nil, false
	}
	raw, err := rc.client.Get(ctx, cacheKey(sql, params)).Bytes()
	if err != nil {
		return nil, nil, false
	}
	var payload cachedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, false
	}
	rows := make([]table.Row, len(payload.Rows))
	for i, r := range payload.Rows {
		row := table.Row{}
		for k, v := range r {
			row[k] = v.toValue()
		}
		rows[i] = row
	}
	return payload.Cols, rows, true
}

// Set stores cols/rows under sql+params with the cache's configured TTL.
func (rc *ResultCache) Set(ctx context.Context, sql string, params []ast.Value, cols []string, rows []table.Row) {
	if rc == nil || rc.client == nil {
		return
	}
	payload := cachedPayload{Cols: cols, Rows: make([]map[string]cval, len(rows))}
	for i, r := range rows {
		m := make(map[string]cval, len(r))
		for k, v := range r {
			m[k] = toCval(v)
		}
		payload.Rows[i] = m
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	rc.client.Set(ctx, cacheKey(sql, params), data, rc.ttl)
}
