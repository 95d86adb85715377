package abacus

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cespare/xxhash"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrIndexExists = errors.New("abacus: index already exists")
	ErrKeyConflict = errors.New("abacus: secondary key conflict")
	ErrLazyIndex   = errors.New("abacus: lazy index keeps no key table")
)

type IndexKind byte

const (
	EagerIndex  IndexKind = 'E'
	HashedIndex IndexKind = 'H'
	LazyIndex   IndexKind = 'L'
)

func (k IndexKind) String() string {
	switch k {
	case EagerIndex:
		return "eager"
	case HashedIndex:
		return "hash"
	case LazyIndex:
		return "lazy"
	default:
		return "unknown"
	}
}

// secondaryIndex is a materialized secondary key table. Implementations keep
// exactly one entry per stored value and reject duplicate secondary keys.
type secondaryIndex[K comparable, V any] interface {
	kind() IndexKind
	// probe resolves a secondary key to the primary key holding it.
	probe(secondary any) (K, bool)
	// conflict reports the other primary key already holding the slot that
	// value would take. The value's own primary key never conflicts.
	conflict(primary K, value V) (K, bool)
	add(primary K, value V)
	remove(primary K, value V)
	entries() int
	clone(into *store[K, V]) secondaryIndex[K, V]
}

const lazyMemoSize = 1024

// lazyIndex is just the derivation function. Lookups scan the store; proven
// hits are memoized until the next mutation.
type lazyIndex[K comparable, V any] struct {
	fn   func(V) any
	memo *lru.Cache[any, K]
}

func newLazyIndex[K comparable, V any](fn func(V) any) *lazyIndex[K, V] {
	memo, _ := lru.New[any, K](lazyMemoSize)
	return &lazyIndex[K, V]{fn: fn, memo: memo}
}

// CreateIndex registers an eager index and materializes it over the current
// values in one pass. Index names share a namespace with lazy indexes. A
// duplicate derived key among the present values aborts the build with
// ErrKeyConflict and registers nothing; afterwards every mutation keeps the
// table current.
//
// The index function must derive a comparable value, as with any Go map key,
// and must be pure: same value in, same key out, no side effects. Nothing
// here can check that.
func (c *Collection[K, V]) CreateIndex(name string, fn func(V) any) error {
	if err := c.checkIndexName(name); err != nil {
		return err
	}
	ix := &plainIndex[K, V]{fn: fn, keys: make(map[any]K, c.store.len())}
	for k, v := range c.store.all() {
		secondary := fn(v)
		if owner, ok := ix.keys[secondary]; ok {
			return errors.Join(ErrKeyConflict,
				fmt.Errorf("index %q: %v and %v both derive %v", name, owner, k, secondary))
		}
		ix.keys[secondary] = k
	}
	c.eager[name] = ix
	return nil
}

// CreateHashIndex registers an eager index that keeps 64-bit digests of the
// derived string keys instead of the strings themselves. Lookups re-derive
// the key from each candidate value, so digest collisions cost time, never
// correctness. Use it when the derived keys are large; it is addressed with
// By(name, string) like any other index.
func (c *Collection[K, V]) CreateHashIndex(name string, fn func(V) string) error {
	if err := c.checkIndexName(name); err != nil {
		return err
	}
	ix := newHashIndex(fn, c.store)
	for k, v := range c.store.all() {
		if owner, clash := ix.conflict(k, v); clash {
			return errors.Join(ErrKeyConflict,
				fmt.Errorf("index %q: %v and %v both derive %q", name, owner, k, fn(v)))
		}
		ix.add(k, v)
	}
	c.eager[name] = ix
	return nil
}

// CreateLazyIndex registers the derivation function and nothing else.
// Creation is O(1) and mutations stay free; every lookup through the index
// scans the store instead. Unlike eager indexes, duplicate secondary keys
// are fine here: the oldest match wins.
func (c *Collection[K, V]) CreateLazyIndex(name string, fn func(V) any) error {
	if err := c.checkIndexName(name); err != nil {
		return err
	}
	c.lazy[name] = newLazyIndex[K, V](fn)
	return nil
}

// DropIndex unregisters an index of any kind and discards its tables.
func (c *Collection[K, V]) DropIndex(name string) error {
	if _, ok := c.eager[name]; ok {
		delete(c.eager, name)
		return nil
	}
	if _, ok := c.lazy[name]; ok {
		delete(c.lazy, name)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrIndexUnknown, name)
}

// Indexes lists the registered indexes by name and kind.
func (c *Collection[K, V]) Indexes() map[string]IndexKind {
	out := make(map[string]IndexKind, len(c.eager)+len(c.lazy))
	for name, ix := range c.eager {
		out[name] = ix.kind()
	}
	for name := range c.lazy {
		out[name] = LazyIndex
	}
	return out
}

func (c *Collection[K, V]) checkIndexName(name string) error {
	_, taken := c.eager[name]
	if !taken {
		_, taken = c.lazy[name]
	}
	if taken {
		return fmt.Errorf("%w: %q", ErrIndexExists, name)
	}
	return nil
}

func (c *Collection[K, V]) dropMemos() {
	for _, lx := range c.lazy {
		lx.memo.Purge()
	}
}

// plainIndex maps derived secondary keys to primary keys directly.
type plainIndex[K comparable, V any] struct {
	fn   func(V) any
	keys map[any]K
}

func (ix *plainIndex[K, V]) kind() IndexKind { return EagerIndex }

func (ix *plainIndex[K, V]) probe(secondary any) (K, bool) {
	primary, ok := ix.keys[secondary]
	return primary, ok
}

func (ix *plainIndex[K, V]) conflict(primary K, value V) (owner K, clash bool) {
	owner, ok := ix.keys[ix.fn(value)]
	return owner, ok && owner != primary
}

func (ix *plainIndex[K, V]) add(primary K, value V) {
	ix.keys[ix.fn(value)] = primary
}

func (ix *plainIndex[K, V]) remove(primary K, value V) {
	secondary := ix.fn(value)
	if owner, ok := ix.keys[secondary]; ok && owner == primary {
		delete(ix.keys, secondary)
	}
}

func (ix *plainIndex[K, V]) entries() int { return len(ix.keys) }

func (ix *plainIndex[K, V]) clone(*store[K, V]) secondaryIndex[K, V] {
	keys := make(map[any]K, len(ix.keys))
	for secondary, primary := range ix.keys {
		keys[secondary] = primary
	}
	return &plainIndex[K, V]{fn: ix.fn, keys: keys}
}

// hashIndex buckets primary keys under the xxhash of the derived string.
// Candidates are verified against the live store, so the index itself never
// has to store a key.
type hashIndex[K comparable, V any] struct {
	fn      func(V) string
	buckets map[uint64][]K
	values  *store[K, V]
}

func newHashIndex[K comparable, V any](fn func(V) string, values *store[K, V]) *hashIndex[K, V] {
	return &hashIndex[K, V]{fn: fn, buckets: make(map[uint64][]K), values: values}
}

func (ix *hashIndex[K, V]) kind() IndexKind { return HashedIndex }

func (ix *hashIndex[K, V]) probe(secondary any) (primary K, ok bool) {
	s, ok := secondary.(string)
	if !ok {
		return primary, false
	}
	for _, candidate := range ix.buckets[xxhash.Sum64([]byte(s))] {
		if v, ok := ix.values.get(candidate); ok && ix.fn(v) == s {
			return candidate, true
		}
	}
	return primary, false
}

func (ix *hashIndex[K, V]) conflict(primary K, value V) (owner K, clash bool) {
	s := ix.fn(value)
	for _, candidate := range ix.buckets[xxhash.Sum64([]byte(s))] {
		if candidate == primary {
			continue
		}
		if v, ok := ix.values.get(candidate); ok && ix.fn(v) == s {
			return candidate, true
		}
	}
	return owner, false
}

func (ix *hashIndex[K, V]) add(primary K, value V) {
	h := xxhash.Sum64([]byte(ix.fn(value)))
	ix.buckets[h] = append(ix.buckets[h], primary)
}

func (ix *hashIndex[K, V]) remove(primary K, value V) {
	h := xxhash.Sum64([]byte(ix.fn(value)))
	candidates := ix.buckets[h]
	for i, candidate := range candidates {
		if candidate == primary {
			ix.buckets[h] = append(candidates[:i], candidates[i+1:]...)
			break
		}
	}
	if len(ix.buckets[h]) == 0 {
		delete(ix.buckets, h)
	}
}

func (ix *hashIndex[K, V]) entries() int {
	n := 0
	for _, candidates := range ix.buckets {
		n += len(candidates)
	}
	return n
}

func (ix *hashIndex[K, V]) clone(into *store[K, V]) secondaryIndex[K, V] {
	buckets := make(map[uint64][]K, len(ix.buckets))
	for h, candidates := range ix.buckets {
		buckets[h] = slices.Clone(candidates)
	}
	return &hashIndex[K, V]{fn: ix.fn, buckets: buckets, values: into}
}
