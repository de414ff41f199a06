package constpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninelines/pybc/object"
)

func TestCacheCanonicalizeDedupesEqualScalars(t *testing.T) {
	cache := NewCache()

	a := cache.Canonicalize(object.Int{Value: 7})
	b := cache.Canonicalize(object.Int{Value: 7})
	assert.Equal(t, a, b)
}

func TestCacheCanonicalizeKeepsBoolAndIntDistinct(t *testing.T) {
	cache := NewCache()

	asBool := cache.Canonicalize(object.Bool{Value: true})
	asInt := cache.Canonicalize(object.Int{Value: 1})
	assert.NotEqual(t, asBool, asInt)
}

func TestCacheCanonicalizeTupleDedupesElements(t *testing.T) {
	cache := NewCache()

	five := cache.Canonicalize(object.Int{Value: 5})
	tup := cache.Canonicalize(object.Tuple{Elems: []object.Value{object.Int{Value: 5}, object.Int{Value: 6}}})

	tv, ok := tup.(object.Tuple)
	require.True(t, ok)
	assert.Equal(t, five, tv.Elems[0])
}

func TestCacheCanonicalizeFrozenSetIsOrderIndependent(t *testing.T) {
	cache := NewCache()

	a := cache.Canonicalize(object.FrozenSet{Elems: []object.Value{object.Int{Value: 1}, object.Int{Value: 2}}})
	b := cache.Canonicalize(object.FrozenSet{Elems: []object.Value{object.Int{Value: 2}, object.Int{Value: 1}}})
	assert.Equal(t, a, b)
}

func TestCacheCanonicalizeCodeObjectsNeverDedupe(t *testing.T) {
	cache := NewCache()

	a := cache.Canonicalize(&object.CodeObject{Name: "f", QualName: "f"})
	b := cache.Canonicalize(&object.CodeObject{Name: "f", QualName: "f"})
	assert.NotSame(t, a, b)
}
