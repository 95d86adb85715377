// Package abacus is an in-memory collection with secondary indexes. Values
// live under a derived primary key, map style, and any number of named
// indexes resolve secondary keys to the same values: eager indexes as
// materialized tables maintained on every write, lazy indexes as plain
// functions evaluated by scanning.
//
// A Collection is a single-writer structure: methods mutate it in place and
// nothing inside it locks. Share one across goroutines the way you would
// share a map, or keep immutable snapshots with Clone; the shelf package
// wraps the latter into a concurrent registry.
package abacus

import (
	"fmt"
	"iter"
	"reflect"
)

// Collection holds values of type V under primary keys of type K derived by
// the pk function. The zero Collection is not usable, call New.
type Collection[K comparable, V any] struct {
	pk    func(V) K
	store *store[K, V]
	eager map[string]secondaryIndex[K, V]
	lazy  map[string]*lazyIndex[K, V]
}

// New builds a collection over the given values. Later values replace
// earlier ones that derive the same primary key.
func New[K comparable, V any](pk func(V) K, values ...V) *Collection[K, V] {
	c := &Collection[K, V]{
		pk:    pk,
		store: newStore[K, V](),
		eager: make(map[string]secondaryIndex[K, V]),
		lazy:  make(map[string]*lazyIndex[K, V]),
	}
	for _, v := range values {
		c.store.put(pk(v), v)
	}
	return c
}

// Fetch returns the value the key resolves to. It fails with ErrKeyNotFound
// when nothing is there and ErrIndexUnknown when the key names an
// unregistered index.
func (c *Collection[K, V]) Fetch(key Key[K]) (value V, err error) {
	primary, err := c.resolve(key)
	if err != nil {
		return value, err
	}
	value, ok := c.store.get(primary)
	if !ok {
		return value, ErrKeyNotFound
	}
	return value, nil
}

// Get is the comma-ok Fetch: absence, however caused, is just false.
func (c *Collection[K, V]) Get(key Key[K]) (V, bool) {
	value, err := c.Fetch(key)
	return value, err == nil
}

// GetOr returns the value the key resolves to, or def when it resolves to
// nothing.
func (c *Collection[K, V]) GetOr(key Key[K], def V) V {
	if value, err := c.Fetch(key); err == nil {
		return value
	}
	return def
}

// PrimaryKey translates a secondary key to the primary key holding it,
// without touching the value. Only eager indexes keep the table this needs;
// asking a lazy index fails with ErrLazyIndex.
func (c *Collection[K, V]) PrimaryKey(index string, secondary any) (primary K, err error) {
	if ix, ok := c.eager[index]; ok {
		primary, ok = ix.probe(secondary)
		if !ok {
			return primary, ErrKeyNotFound
		}
		return primary, nil
	}
	if _, ok := c.lazy[index]; ok {
		return primary, ErrLazyIndex
	}
	return primary, fmt.Errorf("%w: %q", ErrIndexUnknown, index)
}

// Len is the number of stored values, no matter how many indexes exist.
func (c *Collection[K, V]) Len() int {
	return c.store.len()
}

// List copies the values out in insertion order.
func (c *Collection[K, V]) List() []V {
	out := make([]V, 0, c.store.len())
	for _, v := range c.store.all() {
		out = append(out, v)
	}
	return out
}

// Keys copies the primary keys out in insertion order.
func (c *Collection[K, V]) Keys() []K {
	out := make([]K, 0, c.store.len())
	for k := range c.store.all() {
		out = append(out, k)
	}
	return out
}

// All iterates primary keys and values in insertion order. Mutating the
// collection mid-iteration is the caller's own map-style hazard.
func (c *Collection[K, V]) All() iter.Seq2[K, V] {
	return c.store.all()
}

// Values iterates values in insertion order.
func (c *Collection[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range c.store.all() {
			if !yield(v) {
				return
			}
		}
	}
}

// Contains reports whether this exact value is stored: its derived primary
// key must hold a structurally equal value.
func (c *Collection[K, V]) Contains(value V) bool {
	stored, ok := c.store.get(c.pk(value))
	return ok && reflect.DeepEqual(stored, value)
}

// Clone returns an independent copy: same values, same indexes, separate
// tables. Values are copied shallowly. Lazy memos start over.
func (c *Collection[K, V]) Clone() *Collection[K, V] {
	dup := &Collection[K, V]{
		pk:    c.pk,
		store: c.store.clone(),
		eager: make(map[string]secondaryIndex[K, V], len(c.eager)),
		lazy:  make(map[string]*lazyIndex[K, V], len(c.lazy)),
	}
	for name, ix := range c.eager {
		dup.eager[name] = ix.clone(dup.store)
	}
	for name, lx := range c.lazy {
		dup.lazy[name] = newLazyIndex[K, V](lx.fn)
	}
	return dup
}
