package abacus

import (
	"errors"
	"fmt"
)

// Put stores the value under its derived primary key, replacing whatever was
// there, and refreshes every eager index. When an eager index would end up
// holding one secondary key for two values, Put fails with ErrKeyConflict
// and the collection stays as it was.
func (c *Collection[K, V]) Put(value V) error {
	primary := c.pk(value)
	if err := c.checkConflicts(primary, value, primary); err != nil {
		return err
	}
	if old, ok := c.store.get(primary); ok {
		for _, ix := range c.eager {
			ix.remove(primary, old)
		}
	}
	c.store.put(primary, value)
	for _, ix := range c.eager {
		ix.add(primary, value)
	}
	c.dropMemos()
	return nil
}

// Pop removes the value the key resolves to and returns it. Like Fetch, it
// is strict about absence and unknown index names.
func (c *Collection[K, V]) Pop(key Key[K]) (value V, err error) {
	primary, err := c.resolve(key)
	if err != nil {
		return value, err
	}
	value, ok := c.store.delete(primary)
	if !ok {
		return value, ErrKeyNotFound
	}
	for _, ix := range c.eager {
		ix.remove(primary, value)
	}
	c.dropMemos()
	return value, nil
}

// PopOr removes the value the key resolves to, or returns def and touches
// nothing when the key resolves to nothing.
func (c *Collection[K, V]) PopOr(key Key[K], def V) V {
	value, err := c.Pop(key)
	if err != nil {
		return def
	}
	return value
}

// Update replaces the value the key resolves to with transform of it,
// exactly as Pop followed by Put would: the new value may change its primary
// key and any secondary keys, and it moves to the back of the scan order.
// On ErrKeyConflict the old value stays untouched.
func (c *Collection[K, V]) Update(key Key[K], transform func(V) V) error {
	primary, err := c.resolve(key)
	if err != nil {
		return err
	}
	old, ok := c.store.get(primary)
	if !ok {
		return ErrKeyNotFound
	}
	return c.replace(primary, old, transform(old))
}

// FastUpdate swaps the value in place and leaves every index alone. The
// transform must not change the primary key or any key an index derives,
// eager or lazy; nothing checks that, which is the point. Breaking the rule
// leaves indexes resolving to stale or wrong values.
func (c *Collection[K, V]) FastUpdate(key Key[K], transform func(V) V) error {
	primary, err := c.resolve(key)
	if err != nil {
		return err
	}
	old, ok := c.store.get(primary)
	if !ok {
		return ErrKeyNotFound
	}
	c.store.put(primary, transform(old))
	return nil
}

// FetchAndUpdate reads the value the key resolves to and applies fn to it in
// one sweep. fn returns a result for the caller, the next value, and whether
// to pop instead of storing the next value. The reinsert goes through the
// full Put path, so it may move the value and may fail with ErrKeyConflict,
// restoring nothing but changing nothing either. Absence is strict, as with
// Fetch.
//
// It is a package function because the result type R cannot hang off the
// Collection.
func FetchAndUpdate[K comparable, V, R any](c *Collection[K, V], key Key[K], fn func(V) (R, V, bool)) (result R, err error) {
	primary, err := c.resolve(key)
	if err != nil {
		return result, err
	}
	old, ok := c.store.get(primary)
	if !ok {
		return result, ErrKeyNotFound
	}
	result, next, pop := fn(old)
	if pop {
		c.store.delete(primary)
		for _, ix := range c.eager {
			ix.remove(primary, old)
		}
		c.dropMemos()
		return result, nil
	}
	return result, c.replace(primary, old, next)
}

// GetAndUpdate is the tolerant FetchAndUpdate: fn also receives whether the
// key resolved to anything, and when it did not, the returned next value is
// inserted fresh (or dropped, when fn says pop). Unknown index names count
// as absence here.
func GetAndUpdate[K comparable, V, R any](c *Collection[K, V], key Key[K], fn func(V, bool) (R, V, bool)) (result R, err error) {
	var old V
	found := false
	primary, err := c.resolve(key)
	switch {
	case err == nil:
		old, found = c.store.get(primary)
	case !absent(err):
		return result, err
	}
	result, next, pop := fn(old, found)
	switch {
	case pop && found:
		c.store.delete(primary)
		for _, ix := range c.eager {
			ix.remove(primary, old)
		}
		c.dropMemos()
		return result, nil
	case pop:
		return result, nil
	case found:
		return result, c.replace(primary, old, next)
	default:
		return result, c.Put(next)
	}
}

// replace swaps old, stored under primary, for next. It conflict-checks
// first and only then mutates, so a failure changes nothing. When next
// derives a different primary key that is already taken, the value there is
// displaced, which is what pop-then-put would do too.
func (c *Collection[K, V]) replace(primary K, old V, next V) error {
	nextPrimary := c.pk(next)
	if err := c.checkConflicts(nextPrimary, next, primary); err != nil {
		return err
	}
	c.store.delete(primary)
	for _, ix := range c.eager {
		ix.remove(primary, old)
	}
	if displaced, ok := c.store.get(nextPrimary); ok {
		c.store.delete(nextPrimary)
		for _, ix := range c.eager {
			ix.remove(nextPrimary, displaced)
		}
	}
	c.store.put(nextPrimary, next)
	for _, ix := range c.eager {
		ix.add(nextPrimary, next)
	}
	c.dropMemos()
	return nil
}

// checkConflicts is the read-only phase of a write: it walks the eager
// indexes and reports the first secondary key that value cannot take.
// Entries owned by the value's own primary key or by vacating are about to
// be removed, so they do not count.
func (c *Collection[K, V]) checkConflicts(primary K, value V, vacating K) error {
	for name, ix := range c.eager {
		owner, clash := ix.conflict(primary, value)
		if clash && owner != vacating {
			return errors.Join(ErrKeyConflict,
				fmt.Errorf("index %q: key already held by %v", name, owner))
		}
	}
	return nil
}
