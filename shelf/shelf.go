// Package shelf hosts abacus collections for concurrent use. Each named
// collection is an immutable published snapshot behind an atomic pointer:
// readers load it lock-free, writers clone it, mutate the clone and publish
// by compare-and-swap. Lost races re-clone and retry, so updates serialize
// without a lock and views never change under a reader.
package shelf

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/drpcorg/abacus"
	"github.com/drpcorg/abacus/utils"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	ErrCollectionUnknown = errors.New("abacus: unknown collection")
	ErrCollectionExists  = errors.New("abacus: collection already exists")
)

var Ops = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "abacus",
	Subsystem: "shelf",
	Name:      "ops",
}, []string{"op", "result"})

var UpdateRetries = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "abacus",
	Subsystem: "shelf",
	Name:      "update_retries",
})

type slot[K comparable, V any] struct {
	current atomic.Pointer[abacus.Collection[K, V]]
}

type Shelf[K comparable, V any] struct {
	slots *xsync.MapOf[string, *slot[K, V]]
	log   utils.Logger
}

func New[K comparable, V any](log utils.Logger) *Shelf[K, V] {
	if log == nil {
		log = utils.NewDefaultLogger(slog.LevelInfo)
	}
	return &Shelf[K, V]{
		slots: xsync.NewMapOf[string, *slot[K, V]](),
		log:   log,
	}
}

// Create publishes a fresh collection under the name, or under a generated
// one when the name is empty. The chosen name comes back either way.
func (sh *Shelf[K, V]) Create(name string, pk func(V) K, values ...V) (string, error) {
	if name == "" {
		name = uuid.Must(uuid.NewV7()).String()
	}
	sl := &slot[K, V]{}
	sl.current.Store(abacus.New(pk, values...))
	if _, loaded := sh.slots.LoadOrStore(name, sl); loaded {
		Ops.WithLabelValues("create", "error").Inc()
		return "", fmt.Errorf("%w: %q", ErrCollectionExists, name)
	}
	Ops.WithLabelValues("create", "ok").Inc()
	sh.log.Debug("collection created", "name", name, "values", len(values))
	return name, nil
}

// View loads the current snapshot. It is shared and immutable by contract:
// mutating it is the same misuse as writing a map while others read it.
// Callers wanting a private copy clone it themselves.
func (sh *Shelf[K, V]) View(name string) (*abacus.Collection[K, V], error) {
	sl, ok := sh.slots.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionUnknown, name)
	}
	return sl.current.Load(), nil
}

// Update applies fn to a private clone of the current snapshot and publishes
// the result, retrying from a fresh clone whenever another writer got there
// first. An fn error aborts the attempt with nothing published. fn may run
// more than once, so it must not carry side effects beyond the clone.
func (sh *Shelf[K, V]) Update(name string, fn func(c *abacus.Collection[K, V]) error) error {
	sl, ok := sh.slots.Load(name)
	if !ok {
		Ops.WithLabelValues("update", "error").Inc()
		return fmt.Errorf("%w: %q", ErrCollectionUnknown, name)
	}
	for {
		current := sl.current.Load()
		next := current.Clone()
		if err := fn(next); err != nil {
			Ops.WithLabelValues("update", "error").Inc()
			return err
		}
		if sl.current.CompareAndSwap(current, next) {
			Ops.WithLabelValues("update", "ok").Inc()
			return nil
		}
		UpdateRetries.Inc()
		sh.log.Debug("lost the publish race, retrying", "name", name)
	}
}

func (sh *Shelf[K, V]) Drop(name string) error {
	if _, ok := sh.slots.LoadAndDelete(name); !ok {
		Ops.WithLabelValues("drop", "error").Inc()
		return fmt.Errorf("%w: %q", ErrCollectionUnknown, name)
	}
	Ops.WithLabelValues("drop", "ok").Inc()
	sh.log.Debug("collection dropped", "name", name)
	return nil
}

func (sh *Shelf[K, V]) Names() []string {
	names := make([]string, 0, sh.slots.Size())
	sh.slots.Range(func(name string, _ *slot[K, V]) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

func (sh *Shelf[K, V]) Size() int {
	return sh.slots.Size()
}
