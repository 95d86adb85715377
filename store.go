package abacus

import "iter"

type entry[K comparable, V any] struct {
	key   K
	value V
	prev  *entry[K, V]
	next  *entry[K, V]
}

// store is the primary key/value table. It keeps insertion order so that
// scans, index builds and dumps are deterministic.
type store[K comparable, V any] struct {
	entries map[K]*entry[K, V]
	head    *entry[K, V]
	tail    *entry[K, V]
}

func newStore[K comparable, V any]() *store[K, V] {
	return &store[K, V]{entries: make(map[K]*entry[K, V])}
}

func (s *store[K, V]) len() int {
	return len(s.entries)
}

func (s *store[K, V]) get(key K) (value V, ok bool) {
	e, ok := s.entries[key]
	if !ok {
		return value, false
	}
	return e.value, true
}

// put inserts or replaces. A replaced value keeps its position in the scan
// order, a new one goes to the back.
func (s *store[K, V]) put(key K, value V) {
	if e, ok := s.entries[key]; ok {
		e.value = value
		return
	}
	e := &entry[K, V]{key: key, value: value, prev: s.tail}
	if s.tail == nil {
		s.head = e
	} else {
		s.tail.next = e
	}
	s.tail = e
	s.entries[key] = e
}

func (s *store[K, V]) delete(key K) (value V, ok bool) {
	e, ok := s.entries[key]
	if !ok {
		return value, false
	}
	if e.prev == nil {
		s.head = e.next
	} else {
		e.prev.next = e.next
	}
	if e.next == nil {
		s.tail = e.prev
	} else {
		e.next.prev = e.prev
	}
	delete(s.entries, key)
	return e.value, true
}

func (s *store[K, V]) all() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for e := s.head; e != nil; e = e.next {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

func (s *store[K, V]) clone() *store[K, V] {
	dup := &store[K, V]{entries: make(map[K]*entry[K, V], len(s.entries))}
	for e := s.head; e != nil; e = e.next {
		dup.put(e.key, e.value)
	}
	return dup
}
