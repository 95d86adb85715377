package abacus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes one collection's shape to Prometheus. It pulls a fresh
// snapshot per scrape through the provider, which suits swap-on-write
// hosting: hand it the current-snapshot getter and forget about it.
type Collector[K comparable, V any] struct {
	get func() *Collection[K, V]

	size         *prometheus.Desc
	indexCount   *prometheus.Desc
	indexEntries *prometheus.Desc
}

func NewCollector[K comparable, V any](name string, get func() *Collection[K, V]) *Collector[K, V] {
	labels := prometheus.Labels{"collection": name}
	return &Collector[K, V]{
		get: get,

		size: prometheus.NewDesc(
			"abacus_collection_size",
			"Number of values in the collection",
			nil, labels,
		),
		indexCount: prometheus.NewDesc(
			"abacus_collection_indexes",
			"Registered indexes by kind",
			[]string{"kind"}, labels,
		),
		indexEntries: prometheus.NewDesc(
			"abacus_index_entries",
			"Secondary entries held per eager index",
			[]string{"index"}, labels,
		),
	}
}

func (col *Collector[K, V]) Describe(ch chan<- *prometheus.Desc) {
	ch <- col.size
	ch <- col.indexCount
	ch <- col.indexEntries
}

func (col *Collector[K, V]) Collect(ch chan<- prometheus.Metric) {
	c := col.get()
	if c == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(
		col.size,
		prometheus.GaugeValue,
		float64(c.Len()),
	)

	kinds := make(map[IndexKind]int)
	for _, kind := range c.Indexes() {
		kinds[kind]++
	}
	for kind, n := range kinds {
		ch <- prometheus.MustNewConstMetric(
			col.indexCount,
			prometheus.GaugeValue,
			float64(n),
			kind.String(),
		)
	}

	// per-index entry counts; each should track the collection size
	for name, ix := range c.eager {
		ch <- prometheus.MustNewConstMetric(
			col.indexEntries,
			prometheus.GaugeValue,
			float64(ix.entries()),
			name,
		)
	}
}
