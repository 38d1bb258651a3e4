package hydrate

import (
	"reflect"
	"time"

	"github.com/omniql-engine/sqlcore/ast"
)

// Converter attempts to turn v into a value assignable to target, reporting
// ok=false (not an error) when it doesn't recognise target so the registry
// can try the next one.
type Converter func(v ast.Value, target reflect.Type) (any, bool, error)

// ConverterRegistry holds the Converters consulted for any destination
// field whose type isn't one of the Go builtins setBuiltin handles
// directly.
type ConverterRegistry struct {
	converters []Converter
}

// NewConverterRegistry builds an empty registry; callers typically start
// from DefaultConverters() and Register additional ones.
func NewConverterRegistry() *ConverterRegistry {
	return &ConverterRegistry{}
}

// DefaultConverters returns a registry pre-loaded with the datetime
// conversion contract (spec §4.5).
func DefaultConverters() *ConverterRegistry {
	r := NewConverterRegistry()
	r.Register(DatetimeConverter(time.UTC, time.UTC))
	return r
}

var defaultConverters = DefaultConverters()

// Register appends c, tried after every previously registered converter.
func (r *ConverterRegistry) Register(c Converter) {
	r.converters = append(r.converters, c)
}

// Convert tries every registered converter in order, returning the first
// one that recognises target.
func (r *ConverterRegistry) Convert(v ast.Value, target reflect.Type) (any, bool, error) {
	for _, c := range r.converters {
		out, ok, err := c(v, target)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return out, true, nil
		}
	}
	return nil, false, nil
}

var timeType = reflect.TypeOf(time.Time{})

// isBuiltinKind reports whether t is a Go type setBuiltin assigns directly
// without consulting the converter registry.
func isBuiltinKind(t reflect.Type) bool {
	if t == timeType {
		return true
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	}
	return false
}

// setBuiltin assigns v into field, whose type isBuiltinKind already
// confirmed is one of string/int*/uint*/float*/bool/[]byte/time.Time.
func setBuiltin(field reflect.Value, v ast.Value) error {
	if v.Kind == ast.KindNull {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	if field.Type() == timeType {
		field.Set(reflect.ValueOf(v.Time))
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		if v.Kind == ast.KindDecimal {
			field.SetString(v.Decimal)
		} else {
			field.SetString(v.Str)
		}
	case reflect.Bool:
		field.SetBool(v.Kind == ast.KindBool && v.Bool)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		field.SetInt(asInt(v))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		field.SetUint(uint64(asInt(v)))
	case reflect.Float32, reflect.Float64:
		field.SetFloat(asFloat(v))
	case reflect.Slice:
		field.SetBytes(v.Binary)
	}
	return nil
}

func asInt(v ast.Value) int64 {
	switch v.Kind {
	case ast.KindInt:
		return v.Int
	case ast.KindFloat:
		return int64(v.Float)
	default:
		return 0
	}
}

func asFloat(v ast.Value) float64 {
	switch v.Kind {
	case ast.KindInt:
		return float64(v.Int)
	case ast.KindFloat:
		return v.Float
	default:
		return 0
	}
}
