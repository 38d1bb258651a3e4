package ast

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// bsonValueDoc is Value's wire shape for BSON: a small embedded document
// carrying the tag plus whichever field is meaningful for that tag, rather
// than attempting to map the tagged union onto a native BSON scalar (a
// Value's payload is one of several Go types depending on Kind; one embedded
// document keeps the round trip lossless and self-describing).
type bsonValueDoc struct {
	Kind    int32     `bson:"k"`
	Int     int64     `bson:"i,omitempty"`
	Float   float64   `bson:"f,omitempty"`
	Decimal string    `bson:"d,omitempty"`
	Str     string    `bson:"s,omitempty"`
	Binary  []byte    `bson:"b,omitempty"`
	Time    time.Time `bson:"t,omitempty"`
	Bool    bool      `bson:"o,omitempty"`
}

// MarshalBSONValue implements bson.ValueMarshaler, letting a Value appear
// directly as a document field's value (e.g. inside a bson.M built from a
// hydrated row) without the caller hand-rolling the conversion.
func (v Value) MarshalBSONValue() (bsontype.Type, []byte, error) {
	doc := bsonValueDoc{
		Kind:    int32(v.Kind),
		Int:     v.Int,
		Float:   v.Float,
		Decimal: v.Decimal,
		Str:     v.Str,
		Binary:  v.Binary,
		Time:    v.Time,
		Bool:    v.Bool,
	}
	return bson.MarshalValue(doc)
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (v *Value) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var doc bsonValueDoc
	if err := bson.UnmarshalValue(t, data, &doc); err != nil {
		return err
	}
	*v = Value{
		Kind:    ValueKind(doc.Kind),
		Int:     doc.Int,
		Float:   doc.Float,
		Decimal: doc.Decimal,
		Str:     doc.Str,
		Binary:  doc.Binary,
		Time:    doc.Time,
		Bool:    doc.Bool,
	}
	return nil
}
