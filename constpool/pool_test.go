package constpool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ninelines/pybc/object"
)

func TestPoolAddAssignsDenseInsertionOrderIndices(t *testing.T) {
	cache := NewCache()
	pool := NewPool()

	idxA := pool.Add(cache, object.Str{Value: "a"})
	idxB := pool.Add(cache, object.Str{Value: "b"})

	assert.Equal(t, 0, idxA)
	assert.Equal(t, 1, idxB)
	assert.Equal(t, 2, pool.Len())
}

func TestPoolAddReusesIndexForRepeatedConstant(t *testing.T) {
	cache := NewCache()
	pool := NewPool()

	first := pool.Add(cache, object.Int{Value: 42})
	second := pool.Add(cache, object.Int{Value: 42})

	assert.Equal(t, first, second)
	assert.Equal(t, 1, pool.Len())
}

func TestPoolValuesReflectsInsertionOrder(t *testing.T) {
	cache := NewCache()
	pool := NewPool()

	pool.Add(cache, object.Str{Value: "first"})
	pool.Add(cache, object.Str{Value: "second"})

	values := pool.Values()
	assert.Equal(t, object.Str{Value: "first"}, values[0])
	assert.Equal(t, object.Str{Value: "second"}, values[1])
}

func TestPoolSharesCanonicalInstanceAcrossUnits(t *testing.T) {
	cache := NewCache()
	poolA := NewPool()
	poolB := NewPool()

	poolA.Add(cache, object.Str{Value: "shared"})
	poolB.Add(cache, object.Str{Value: "shared"})

	assert.Equal(t, poolA.Values()[0], poolB.Values()[0])
}
