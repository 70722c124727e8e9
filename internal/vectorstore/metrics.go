// Package vectorstore provides Prometheus metrics for the store and search.
package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntriesTotal tracks the current number of entries in the store. It is
	// set while the writer holds the store lock, so the last value written
	// always matches the store size. All stores in a process share it.
	EntriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vecsearch",
			Subsystem: "store",
			Name:      "entries",
			Help:      "Current number of entries in the vector store",
		},
	)

	// UpsertsTotal counts individual entries written by upserts.
	UpsertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vecsearch",
			Subsystem: "store",
			Name:      "upserts_total",
			Help:      "Total number of entries written by single and batch upserts",
		},
	)

	// ReplacementsTotal counts wholesale replacements of the store contents.
	ReplacementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vecsearch",
			Subsystem: "store",
			Name:      "replacements_total",
			Help:      "Total number of times the store contents were replaced",
		},
	)

	// SearchDuration tracks how long exact searches take.
	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vecsearch",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Duration of exact cosine searches in seconds",
			Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)
)

// recordUpserts updates metrics after a write of written entries that left
// the store with entries in total.
func recordUpserts(written, entries int) {
	UpsertsTotal.Add(float64(written))
	EntriesTotal.Set(float64(entries))
}

// recordReplace updates metrics after a replacement.
func recordReplace(entries int) {
	ReplacementsTotal.Inc()
	EntriesTotal.Set(float64(entries))
}
