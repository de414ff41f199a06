package constpool

import "github.com/ninelines/pybc/object"

// Pool is one compilation unit's ordered constant table (spec §3 Per-Unit
// Metadata: "consts: insertion-ordered mapping from constant-key to dense
// index"). Index 0 is whatever constant is added first; index order is
// the unit's visitation order and nothing else, so two independent
// compiles of the same AST always produce the same constant table
// (spec §8 property 1).
type Pool struct {
	index  map[string]int
	values []object.Value
}

// NewPool creates an empty per-unit constant pool.
func NewPool() *Pool {
	return &Pool{index: make(map[string]int)}
}

// Add canonicalizes v against cache and returns its dense index in this
// pool, appending a new entry only the first time this unit sees that
// canonical value (spec §4.2 step 3).
func (p *Pool) Add(cache *Cache, v object.Value) int {
	key, canon := cache.canonicalize(v)
	if idx, ok := p.index[key]; ok {
		return idx
	}
	idx := len(p.values)
	p.index[key] = idx
	p.values = append(p.values, canon)
	return idx
}

// Values returns the pool's constants in index order, ready to become a
// code object's constant table.
func (p *Pool) Values() []object.Value {
	out := make([]object.Value, len(p.values))
	copy(out, p.values)
	return out
}

// Len reports how many distinct constants this unit has interned.
func (p *Pool) Len() int { return len(p.values) }
