package vengine

import (
	"fmt"
	"time"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/table"
)

// Rows adapts a materialised (ordered column list, row slice) pair to the
// query.Rows iterator contract the builder and host code consume.
type Rows struct {
	cols    []string
	rows    []table.Row
	idx     int
	current table.Row
	err     error
	closed  bool
}

func newRows(cols []string, rows []table.Row) *Rows {
	return &Rows{cols: cols, rows: rows, idx: -1}
}

func (r *Rows) Next() bool {
	if r.err != nil || r.closed {
		return false
	}
	r.idx++
	if r.idx >= len(r.rows) {
		return false
	}
	r.current = r.rows[r.idx]
	return true
}

func (r *Rows) Columns() ([]string, error) { return append([]string(nil), r.cols...), nil }

func (r *Rows) Scan(dest ...any) error {
	if r.current == nil {
		return errs.New(errs.UnsupportedFeature, "", "Scan called before Next or after exhaustion")
	}
	if len(dest) != len(r.cols) {
		return errs.New(errs.UnsupportedFeature, "", "Scan expected %d destinations, got %d", len(r.cols), len(dest))
	}
	for i, c := range r.cols {
		if err := scanInto(dest[i], r.current[c]); err != nil {
			return err
		}
	}
	return nil
}

// scanInto converts v into dest, mirroring the teacher's driver row-scan
// convertRowValue idiom (reflection-free here since the destination set is
// small and known): Scan accepts the Go-native type a caller would actually
// declare a local variable as, plus the escape-hatch *any for callers that
// want the dynamic value untouched.
func scanInto(dest any, v ast.Value) error {
	switch d := dest.(type) {
	case *any:
		*d = rawValue(v)
		return nil
	case *int64:
		*d = asScanInt(v)
		return nil
	case *int:
		*d = int(asScanInt(v))
		return nil
	case *float64:
		*d = asScanFloat(v)
		return nil
	case *string:
		*d = asScanString(v)
		return nil
	case *bool:
		*d = v.Kind == ast.KindBool && v.Bool
		return nil
	case *[]byte:
		*d = v.Binary
		return nil
	case *time.Time:
		*d = v.Time
		return nil
	default:
		return fmt.Errorf("vengine: unsupported scan destination %T", dest)
	}
}

func asScanInt(v ast.Value) int64 {
	switch v.Kind {
	case ast.KindInt:
		return v.Int
	case ast.KindFloat:
		return int64(v.Float)
	default:
		return 0
	}
}

func asScanFloat(v ast.Value) float64 {
	switch v.Kind {
	case ast.KindInt:
		return float64(v.Int)
	case ast.KindFloat:
		return v.Float
	default:
		return 0
	}
}

func asScanString(v ast.Value) string {
	switch v.Kind {
	case ast.KindString:
		return v.Str
	case ast.KindDecimal:
		return v.Decimal
	default:
		return v.Str
	}
}

func rawValue(v ast.Value) any {
	switch v.Kind {
	case ast.KindNull:
		return nil
	case ast.KindInt:
		return v.Int
	case ast.KindFloat:
		return v.Float
	case ast.KindDecimal:
		return v.Decimal
	case ast.KindString:
		return v.Str
	case ast.KindBinary:
		return v.Binary
	case ast.KindBool:
		return v.Bool
	case ast.KindDate, ast.KindTime, ast.KindDateTime:
		return v.Time
	default:
		return nil
	}
}

func (r *Rows) Err() error { return r.err }

func (r *Rows) Close() error { r.closed = true; return nil }

// execResult is returned for INSERT/UPDATE/DELETE/DDL: it carries no rows,
// only the affected-row count the Executor contract otherwise has no slot
// for (spec §6.1 `exec`).
type execResult struct {
	affected int64
}

func (e *execResult) Next() bool                 { return false }
func (e *execResult) Scan(dest ...any) error     { return errs.New(errs.UnsupportedFeature, "", "exec result has no rows to scan") }
func (e *execResult) Columns() ([]string, error) { return nil, nil }
func (e *execResult) Err() error                 { return nil }
func (e *execResult) Close() error               { return nil }

// Affected satisfies the top-level engine package's optional
// `Affected() int64` contract for non-row-shaped results.
func (e *execResult) Affected() int64 { return e.affected }
