// Package ast defines the tagged-variant SQL abstract syntax tree shared by
// the parser, renderer, query builder and virtual engine.
package ast

import "time"

// ValueKind tags the dynamic type carried by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindBinary
	KindDate
	KindTime
	KindDateTime
	KindBool
)

// Value is the tagged sum type used for literals, bound placeholders and
// every scalar that flows through the engine. Only the field matching Kind
// is meaningful.
type Value struct {
	Kind    ValueKind
	Int     int64
	Float   float64
	Decimal string // arbitrary-precision text form, e.g. "19.99"
	Str     string
	Binary  []byte
	Time    time.Time
	Bool    bool
}

func Null() Value                 { return Value{Kind: KindNull} }
func Int(v int64) Value           { return Value{Kind: KindInt, Int: v} }
func Float(v float64) Value       { return Value{Kind: KindFloat, Float: v} }
func Decimal(v string) Value      { return Value{Kind: KindDecimal, Decimal: v} }
func Str(v string) Value          { return Value{Kind: KindString, Str: v} }
func Binary(v []byte) Value       { return Value{Kind: KindBinary, Binary: append([]byte(nil), v...)} }
func Bool(v bool) Value           { return Value{Kind: KindBool, Bool: v} }
func DateTime(t time.Time) Value  { return Value{Kind: KindDateTime, Time: t} }
func DateOnly(t time.Time) Value  { return Value{Kind: KindDate, Time: t} }
func TimeOnly(t time.Time) Value  { return Value{Kind: KindTime, Time: t} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Clone returns a deep copy; Value has no nested pointers besides Binary.
func (v Value) Clone() Value {
	if v.Kind == KindBinary {
		v.Binary = append([]byte(nil), v.Binary...)
	}
	return v
}
