// Package constpool implements the Constant Cache and per-unit constant
// pool described in spec §4.2: a compile-scoped interning table that
// merges structurally-equal constants (including deep tuple/frozenset
// contents) so identical literals share one canonical identity, plus the
// per-scope dense index assignment that becomes a code object's constant
// table.
//
// This generalizes dr8co-kong/compiler/compiler.go's addConstant, which
// only ever appends — the teacher's Monkey compiler never needed to
// dedupe literals across scopes. The recursive structural-key derivation
// follows spec §4.2 step 1 exactly.
package constpool

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ninelines/pybc/object"
)

// Cache interns constants across one entire compilation (spec §3:
// "a constant cache spans one compilation invocation"). It owns no
// per-unit indices; constpool.Pool does that.
type Cache struct {
	table map[string]object.Value
}

// NewCache creates an empty constant cache.
func NewCache() *Cache {
	return &Cache{table: make(map[string]object.Value)}
}

// Canonicalize returns the cache's single shared instance for a
// structurally-equal constant, inserting v if this is the first time its
// structural key has been seen (spec §4.2 steps 1-2).
func (c *Cache) Canonicalize(v object.Value) object.Value {
	key, canon := c.canonicalize(v)
	if existing, ok := c.table[key]; ok {
		return existing
	}
	c.table[key] = canon
	return canon
}

// canonicalize computes v's structural key and, for container kinds,
// its canonicalized contents, without touching the cache. It is split
// out from Canonicalize so nested tuple/frozenset elements can be
// resolved against the cache before the parent is inserted.
func (c *Cache) canonicalize(v object.Value) (string, object.Value) {
	switch val := v.(type) {
	case object.None:
		return "none", val
	case object.Ellipsis:
		return "ellipsis", val
	case object.Bool:
		// True/1 and False/0 must not collide (spec §4.2 step 1): the
		// type tag "bool" keeps this key-space disjoint from "int".
		return "bool:" + strconv.FormatBool(val.Value), val
	case object.Int:
		return "int:" + strconv.FormatInt(val.Value, 10), val
	case object.Float:
		return "float:" + strconv.FormatFloat(val.Value, 'b', -1, 64), val
	case object.Complex:
		return fmt.Sprintf("complex:%b:%b", val.Real, val.Imag), val
	case object.Str:
		return "str:" + val.Value, val
	case object.Bytes:
		return "bytes:" + val.Value, val
	case object.Tuple:
		keys := make([]string, len(val.Elems))
		elems := make([]object.Value, len(val.Elems))
		for i, e := range val.Elems {
			k, canonElem := c.canonicalize(e)
			if existing, ok := c.table[k]; ok {
				canonElem = existing
			} else {
				c.table[k] = canonElem
			}
			keys[i] = k
			elems[i] = canonElem
		}
		key := "tuple:["
		for i, k := range keys {
			if i > 0 {
				key += ","
			}
			key += k
		}
		key += "]"
		return key, object.Tuple{Elems: elems}
	case object.FrozenSet:
		keys := make([]string, len(val.Elems))
		elemByKey := make(map[string]object.Value, len(val.Elems))
		for _, e := range val.Elems {
			k, canonElem := c.canonicalize(e)
			if existing, ok := c.table[k]; ok {
				canonElem = existing
			} else {
				c.table[k] = canonElem
			}
			elemByKey[k] = canonElem
		}
		i := 0
		for k := range elemByKey {
			keys[i] = k
			i++
		}
		// Frozenset equality is order-independent; sorting the member
		// keys makes the structural key independent of insertion order.
		sort.Strings(keys)
		elems := make([]object.Value, len(keys))
		key := "frozenset:{"
		for i, k := range keys {
			if i > 0 {
				key += ","
			}
			key += k
			elems[i] = elemByKey[k]
		}
		key += "}"
		return key, object.FrozenSet{Elems: elems}
	case *object.CodeObject:
		// Code objects are never deduplicated against each other — two
		// syntactically identical function bodies remain distinct
		// constants, since each carries its own qualified name and
		// first-line metadata. The key only needs to be unique, not
		// structural.
		return fmt.Sprintf("code:%p", val), val
	default:
		return fmt.Sprintf("unknown:%v", v), v
	}
}
