package persistence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opSave = "save"
	opLoad = "load"
)

var (
	// OperationsTotal counts save and load attempts by outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecsearch",
			Subsystem: "persistence",
			Name:      "operations_total",
			Help:      "Total snapshot save/load operations by result",
		},
		[]string{"operation", "result"},
	)

	// SnapshotBytes tracks the size of the last snapshot written or read.
	SnapshotBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vecsearch",
			Subsystem: "persistence",
			Name:      "snapshot_bytes",
			Help:      "Size in bytes of the last snapshot file written or read",
		},
		[]string{"operation"},
	)
)
