package abacus

import (
	"errors"
	"fmt"
)

var (
	ErrKeyNotFound  = errors.New("abacus: key not found")
	ErrIndexUnknown = errors.New("abacus: unknown index")
)

type keyKind byte

const (
	keyPrimary keyKind = iota
	keyTagged
)

// Key addresses one value in a collection: either by its primary key or
// through a named index. Every operation that takes "a key" takes a Key, so
// there is exactly one resolution path.
type Key[K comparable] struct {
	kind      keyKind
	primary   K
	index     string
	secondary any
}

// PK addresses a value by its primary key. The zero Key is PK of the zero
// primary key.
func PK[K comparable](key K) Key[K] {
	return Key[K]{kind: keyPrimary, primary: key}
}

// By addresses a value through the index named here. The secondary key is
// compared as a dynamic value, so its type must match what the index
// function returns.
func By[K comparable](index string, secondary any) Key[K] {
	return Key[K]{kind: keyTagged, index: index, secondary: secondary}
}

func (key Key[K]) String() string {
	if key.kind == keyPrimary {
		return fmt.Sprintf("%v", key.primary)
	}
	return fmt.Sprintf("%s:%v", key.index, key.secondary)
}

// resolve turns a Key into the primary key it addresses. A bare primary key
// passes through unchecked, the store lookup decides existence. Tagged keys
// go through the index registries.
func (c *Collection[K, V]) resolve(key Key[K]) (primary K, err error) {
	if key.kind == keyPrimary {
		return key.primary, nil
	}
	if ix, ok := c.eager[key.index]; ok {
		primary, ok = ix.probe(key.secondary)
		if !ok {
			return primary, ErrKeyNotFound
		}
		return primary, nil
	}
	if lx, ok := c.lazy[key.index]; ok {
		return c.scan(lx, key.secondary)
	}
	return primary, fmt.Errorf("%w: %q", ErrIndexUnknown, key.index)
}

// scan is the lazy index lookup: a memo probe, then a full pass over the
// store in insertion order. With duplicate secondary keys the oldest value
// wins.
func (c *Collection[K, V]) scan(lx *lazyIndex[K, V], secondary any) (primary K, err error) {
	if primary, ok := lx.memo.Get(secondary); ok {
		return primary, nil
	}
	for k, v := range c.store.all() {
		if lx.fn(v) == secondary {
			lx.memo.Add(secondary, k)
			return k, nil
		}
	}
	return primary, ErrKeyNotFound
}

// absent tells misuse apart from absence: tolerant accessors treat a missing
// key and an unknown index the same way.
func absent(err error) bool {
	return errors.Is(err, ErrKeyNotFound) || errors.Is(err, ErrIndexUnknown)
}
