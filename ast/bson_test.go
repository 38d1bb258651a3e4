package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/omniql-engine/sqlcore/ast"
)

type bsonWrapper struct {
	V ast.Value `bson:"v"`
}

func TestValueBSONRoundTrip(t *testing.T) {
	cases := []ast.Value{
		ast.Null(),
		ast.Int(42),
		ast.Float(3.5),
		ast.Decimal("19.99"),
		ast.Str("hello"),
		ast.Binary([]byte{1, 2, 3}),
		ast.Bool(true),
	}
	for _, v := range cases {
		data, err := bson.Marshal(bsonWrapper{V: v})
		require.NoError(t, err)

		var out bsonWrapper
		require.NoError(t, bson.Unmarshal(data, &out))
		assert.Equal(t, v.Kind, out.V.Kind)
		assert.Equal(t, v.Int, out.V.Int)
		assert.Equal(t, v.Float, out.V.Float)
		assert.Equal(t, v.Decimal, out.V.Decimal)
		assert.Equal(t, v.Str, out.V.Str)
		assert.Equal(t, v.Binary, out.V.Binary)
		assert.Equal(t, v.Bool, out.V.Bool)
	}
}
