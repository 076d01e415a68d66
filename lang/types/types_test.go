package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arbor-lang/arbor/lang/types"
)

func TestEqualScalars(t *testing.T) {
	assert.True(t, types.TInt.Equal(types.TInt))
	assert.False(t, types.TInt.Equal(types.TFloat))
}

func TestEqualStructural(t *testing.T) {
	a := types.NewArr(types.TInt)
	b := types.NewArr(types.TInt)
	assert.True(t, a.Equal(b))
	assert.NotSame(t, a, b)

	c := types.NewArr(types.TFloat)
	assert.False(t, a.Equal(c))
}

func TestHeapShaped(t *testing.T) {
	assert.False(t, types.TInt.HeapShaped())
	assert.False(t, types.TBool.HeapShaped())
	assert.True(t, types.TStr.HeapShaped())
	assert.True(t, types.NewArr(types.TInt).HeapShaped())
	assert.True(t, types.NewMaybe(types.TInt).HeapShaped())
}

func TestExpandedName(t *testing.T) {
	got := types.ExpandedName("f", []*types.Type{types.TInt, types.TStr})
	assert.Equal(t, "f[Int,Str]", got)

	assert.Equal(t, "g", types.ExpandedName("g", nil))
}

func TestObjectFieldType(t *testing.T) {
	obj := types.NewObject("Point", []types.Field{
		{Name: "x", Type: types.TInt},
		{Name: "y", Type: types.TInt},
	})
	ft, ok := obj.FieldType("x")
	assert.True(t, ok)
	assert.True(t, ft.Equal(types.TInt))

	_, ok = obj.FieldType("z")
	assert.False(t, ok)
}

func TestKeyStability(t *testing.T) {
	a := types.NewFunc([]*types.Type{types.TInt, types.TInt}, types.TBool)
	b := types.NewFunc([]*types.Type{types.TInt, types.TInt}, types.TBool)
	assert.Equal(t, a.Key(), b.Key())
}
