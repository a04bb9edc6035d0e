// Package metrics exposes the tracker's prometheus collectors. Collectors
// register on the default registry once at init; callers record through the
// package functions so instrumented code stays free of prometheus plumbing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cache_reads_total",
			Help: "Cache slot reads by slot and outcome (hit, miss, refresh)",
		},
		[]string{"slot", "outcome"},
	)
	cacheRevalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cache_revalidations_total",
			Help: "Background cache revalidations by slot and status",
		},
		[]string{"slot", "status"},
	)
	cacheIntegrityFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cache_integrity_failures_total",
			Help: "Cache payloads discarded as malformed or foreign-owned",
		},
		[]string{"slot"},
	)
	storeOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_store_operations_total",
			Help: "Store operations by backend, operation and status",
		},
		[]string{"backend", "operation", "status"},
	)
)

func CacheRead(slot, outcome string) {
	cacheReads.WithLabelValues(slot, outcome).Inc()
}

func CacheRevalidation(slot, status string) {
	cacheRevalidations.WithLabelValues(slot, status).Inc()
}

func CacheIntegrityFailure(slot string) {
	cacheIntegrityFailures.WithLabelValues(slot).Inc()
}

func StoreOp(backend, operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	storeOps.WithLabelValues(backend, operation, status).Inc()
}
