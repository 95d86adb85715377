package abacus

import (
	"errors"
	"iter"
)

var ErrBuilderDone = errors.New("abacus: builder already closed")

// Builder accumulates values into a private clone of a base collection, so
// folding a stream in costs one snapshot up front and nothing on the
// original. The first Put failure poisons the builder; Close surfaces it.
type Builder[K comparable, V any] struct {
	c   *Collection[K, V]
	err error
}

// NewBuilder starts accumulation from a clone of base. The base collection
// is never touched again.
func NewBuilder[K comparable, V any](base *Collection[K, V]) *Builder[K, V] {
	return &Builder[K, V]{c: base.Clone()}
}

// Add folds values in through the usual Put path, indexes and all.
func (b *Builder[K, V]) Add(values ...V) error {
	if b.c == nil {
		return ErrBuilderDone
	}
	if b.err != nil {
		return b.err
	}
	for _, v := range values {
		if err := b.c.Put(v); err != nil {
			b.err = err
			return err
		}
	}
	return nil
}

// Close hands over the accumulated collection, or the error that poisoned
// it. Either way the builder is spent.
func (b *Builder[K, V]) Close() (*Collection[K, V], error) {
	c, err := b.c, b.err
	b.c, b.err = nil, nil
	if c == nil {
		return nil, ErrBuilderDone
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Abort discards the accumulation. The base collection was never involved.
func (b *Builder[K, V]) Abort() {
	b.c, b.err = nil, nil
}

// Collect drains a sequence into a clone of base and returns the result, the
// one-shot form of the builder.
func Collect[K comparable, V any](base *Collection[K, V], seq iter.Seq[V]) (*Collection[K, V], error) {
	b := NewBuilder(base)
	for v := range seq {
		if err := b.Add(v); err != nil {
			b.Abort()
			return nil, err
		}
	}
	return b.Close()
}
