// Package metrics exposes Prometheus instrumentation for the sink. All
// collectors are global with fixed label-free cardinality, so updates are
// safe to call from hot paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SamplesTotal counts samples accepted into the cache.
	SamplesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rrdsink_samples_total",
		Help: "Total samples accepted into the coalescing cache",
	})

	// NonMonotonicTotal counts samples rejected for running backwards in time.
	NonMonotonicTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rrdsink_nonmonotonic_rejects_total",
		Help: "Total samples rejected because their timestamp did not advance",
	})

	// CreatesTotal counts archive files created.
	CreatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rrdsink_archive_creates_total",
		Help: "Total archive files created",
	})

	// UpdatesTotal counts engine update invocations.
	UpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rrdsink_archive_updates_total",
		Help: "Total engine update invocations",
	})

	// EngineErrorsTotal counts failed engine invocations (create or update).
	EngineErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rrdsink_engine_errors_total",
		Help: "Total failed engine invocations",
	})

	// CacheEntries tracks the number of archive paths present in the cache.
	CacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rrdsink_cache_entries",
		Help: "Archive paths currently held in the coalescing cache",
	})

	// QueueDepth tracks the number of batches waiting for the flush worker.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rrdsink_flush_queue_depth",
		Help: "Batches waiting for the flush worker",
	})

	// BatchLines observes how many lines each flushed batch carried.
	BatchLines = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rrdsink_batch_lines",
		Help:    "Distribution of update lines per flushed batch",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024},
	})
)

func init() {
	// Register eagerly. If no Prometheus endpoint is exposed, the
	// registration is harmless.
	prometheus.MustRegister(SamplesTotal, NonMonotonicTotal, CreatesTotal,
		UpdatesTotal, EngineErrorsTotal, CacheEntries, QueueDepth, BatchLines)
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
