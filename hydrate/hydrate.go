// Package hydrate turns result rows into caller-defined Go values (spec
// §4.4). It sits downstream of query.Rows and is backend-agnostic: it knows
// nothing about the virtual engine or a SQL driver, only the Rows iterator
// contract and reflection over a destination type. Field/column matching
// follows the `db`-tagged-struct convention the pack's sqlcore/dat driver
// uses for its own reflective row mapping (dat/select_doc.go
// arrayToTable, dat/insert.go reflectColumns), generalised here from a
// single fixed convention into a configurable Spec.
package hydrate

import (
	"reflect"
	"strings"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
	"github.com/omniql-engine/sqlcore/query"
	"github.com/omniql-engine/sqlcore/table"
)

// RowHydrator lets a destination type take over its own hydration from a
// full row instead of going through field-by-field reflection.
type RowHydrator interface {
	FromSQLRow(row table.Row) error
}

// ValueHydrator lets a single addressable field take over conversion of its
// own column value.
type ValueHydrator interface {
	FromSQLValue(v ast.Value) error
}

// Spec configures one Hydrator. Build one with the With* options below.
type Spec struct {
	entityType  reflect.Type // element type, e.g. User for *User
	constructor func(args ...any) (any, error)
	ctorArgs    []any
	skipCtor    bool
	rowCols     []string
	rowFunc     func([]ast.Value) (any, error)
	loadCB      func(any)
	converters  *ConverterRegistry
}

// Option configures a Spec.
type Option func(*Spec)

// WithEntityClass tells the Hydrator what Go type to build per row, taking a
// sample pointer (e.g. WithEntityClass((*User)(nil))) the way the query
// builder's WithEntityClass(any) passes its class value through.
func WithEntityClass(sample any) Option {
	return func(s *Spec) {
		t := reflect.TypeOf(sample)
		for t != nil && t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		s.entityType = t
	}
}

// WithConstructor supplies a factory used instead of reflect.New to build
// each row's instance.
func WithConstructor(fn func(args ...any) (any, error)) Option {
	return func(s *Spec) { s.constructor = fn }
}

// WithConstructorArgs supplies the arguments passed to the constructor (or
// ignored, when none was set) for every row.
func WithConstructorArgs(args ...any) Option {
	return func(s *Spec) { s.ctorArgs = args }
}

// SkipConstructor builds each instance with reflect.New directly, bypassing
// any constructor.
func SkipConstructor() Option {
	return func(s *Spec) { s.skipCtor = true }
}

// WithRowFunc supplies a positional closure invoked with each row's values
// in cols order, bypassing reflection entirely.
func WithRowFunc(cols []string, fn func([]ast.Value) (any, error)) Option {
	return func(s *Spec) { s.rowCols = cols; s.rowFunc = fn }
}

// WithLoadCallback registers a callback invoked once per hydrated instance,
// mirroring query.EntitySpec.LoadCallback's shape so a Hydrator built here
// can be handed straight to query.Query.WithLoadCallback.
func WithLoadCallback(cb func(any)) Option {
	return func(s *Spec) { s.loadCB = cb }
}

// WithConverters attaches a registry of custom Go-type converters, tried
// whenever a field's type isn't a Go builtin.
func WithConverters(r *ConverterRegistry) Option {
	return func(s *Spec) { s.converters = r }
}

// fieldHandle is a cached path to a struct field, recorded once per
// (entityType, column) pair so repeated rows of the same shape never pay
// for field-name matching twice (spec §4.4 "cache reflective field handles
// for the duration of the iteration").
type fieldHandle struct {
	index []int
}

// Hydrator drives rows through a Spec.
type Hydrator struct {
	spec       *Spec
	fieldCache map[reflect.Type]map[string]fieldHandle
}

// New builds a Hydrator from opts.
func New(opts ...Option) *Hydrator {
	s := &Spec{converters: defaultConverters}
	for _, o := range opts {
		o(s)
	}
	return &Hydrator{spec: s, fieldCache: make(map[reflect.Type]map[string]fieldHandle)}
}

// AsQueryHydrator adapts h to query.EntitySpec.Hydrator's shape, so it can
// be passed straight to (*query.Query).WithHydrator.
func (h *Hydrator) AsQueryHydrator() func(query.Rows) (any, error) {
	return func(rows query.Rows) (any, error) { return h.HydrateAll(rows) }
}

// HydrateAll drains rows, producing one hydrated value per row (spec §4.4
// "Iteration protocol").
func (h *Hydrator) HydrateAll(rows query.Rows) ([]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []any
	for rows.Next() {
		dest := make([]*any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			dest[i] = new(any)
			ptrs[i] = dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := table.Row{}
		for i, c := range cols {
			row[c] = valueFromAny(*dest[i])
		}
		inst, err := h.hydrateRow(cols, row)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
		if h.spec.loadCB != nil {
			h.spec.loadCB(inst)
		}
	}
	return out, rows.Err()
}

func (h *Hydrator) hydrateRow(cols []string, row table.Row) (any, error) {
	if h.spec.rowFunc != nil {
		ordered := make([]ast.Value, len(h.spec.rowCols))
		for i, c := range h.spec.rowCols {
			ordered[i] = row[c]
		}
		return h.spec.rowFunc(ordered)
	}
	if h.spec.entityType == nil && (h.spec.constructor == nil || h.spec.skipCtor) {
		return row, nil
	}

	inst, instVal, err := h.newEntity()
	if err != nil {
		return nil, err
	}

	if rh, ok := inst.(RowHydrator); ok {
		if err := rh.FromSQLRow(row); err != nil {
			return nil, errs.Wrap(errs.HydrationFailure, "", err, "FromSQLRow failed for %s", h.spec.entityType)
		}
		return inst, nil
	}

	fields := h.fieldsFor(instVal.Type())
	for _, col := range cols {
		fh, ok := fields[matchKey(col)]
		if !ok {
			continue
		}
		field := instVal.FieldByIndex(fh.index)
		if err := h.setField(field, row[col]); err != nil {
			return nil, errs.Wrap(errs.HydrationFailure, col, err, "setting field for column %q", col)
		}
	}
	return inst, nil
}

func (h *Hydrator) newEntity() (any, reflect.Value, error) {
	if !h.spec.skipCtor && h.spec.constructor != nil {
		inst, err := h.spec.constructor(h.spec.ctorArgs...)
		if err != nil {
			return nil, reflect.Value{}, err
		}
		v := reflect.ValueOf(inst)
		if v.Kind() != reflect.Ptr {
			return nil, reflect.Value{}, errs.New(errs.HydrationFailure, "", "constructor for %s must return a pointer", h.spec.entityType)
		}
		return inst, v.Elem(), nil
	}
	ptr := reflect.New(h.spec.entityType)
	return ptr.Interface(), ptr.Elem(), nil
}

func (h *Hydrator) setField(field reflect.Value, v ast.Value) error {
	if !field.CanAddr() || !field.CanSet() {
		return nil
	}
	if vh, ok := field.Addr().Interface().(ValueHydrator); ok {
		return vh.FromSQLValue(v)
	}
	if isBuiltinKind(field.Type()) {
		return setBuiltin(field, v)
	}
	if h.spec.converters != nil {
		converted, ok, err := h.spec.converters.Convert(v, field.Type())
		if err != nil {
			return err
		}
		if ok {
			field.Set(reflect.ValueOf(converted))
			return nil
		}
	}
	return errs.New(errs.HydrationFailure, "", "no conversion available for field type %s", field.Type())
}

// fieldsFor returns (building and caching on first use) the column-key to
// field-handle map for t, recursing into anonymous/embedded struct fields.
func (h *Hydrator) fieldsFor(t reflect.Type) map[string]fieldHandle {
	if m, ok := h.fieldCache[t]; ok {
		return m
	}
	m := map[string]fieldHandle{}
	walkFields(t, nil, m)
	h.fieldCache[t] = m
	return m
}

func walkFields(t reflect.Type, prefix []int, out map[string]fieldHandle) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue // unexported
		}
		idx := append(append([]int(nil), prefix...), i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			walkFields(f.Type, idx, out)
			continue
		}
		key := f.Tag.Get("db")
		if key == "" {
			key = strings.ToLower(f.Name)
		}
		out[key] = fieldHandle{index: idx}
	}
}

func matchKey(col string) string { return strings.ToLower(col) }

func valueFromAny(v any) ast.Value {
	switch t := v.(type) {
	case nil:
		return ast.Null()
	case int64:
		return ast.Int(t)
	case int:
		return ast.Int(int64(t))
	case float64:
		return ast.Float(t)
	case string:
		return ast.Str(t)
	case bool:
		return ast.Bool(t)
	case []byte:
		return ast.Binary(t)
	default:
		return ast.Null()
	}
}
