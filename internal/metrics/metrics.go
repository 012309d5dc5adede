// Package metrics defines the Prometheus collectors for import, watch and
// sweep activity. Collectors register with the default registry on package
// initialisation; Handler exposes them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline metrics
var (
	FilesEnrichedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetcache_files_enriched_total",
			Help: "Total number of files that passed through the enrichment pipeline",
		},
	)

	StageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetcache_stage_failures_total",
			Help: "Enrichment stage failures by stage",
		},
		[]string{"stage"},
	)

	DigestsComputedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetcache_digests_computed_total",
			Help: "Content digests computed, by algorithm",
		},
		[]string{"algorithm"},
	)

	DigestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assetcache_digest_duration_seconds",
			Help:    "Time spent hashing a single file",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
	)

	RecordsPersistedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetcache_records_persisted_total",
			Help: "Metadata records written to the metadata root",
		},
	)

	RecordsRehydratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetcache_records_rehydrated_total",
			Help: "Metadata records loaded instead of recomputed",
		},
	)
)

// Index metrics
var (
	IndexedAssets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assetcache_indexed_assets",
			Help: "Number of assets currently held in the in-memory index",
		},
	)

	RootsImported = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assetcache_roots_imported",
			Help: "Number of registered import roots",
		},
	)

	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assetcache_import_duration_seconds",
			Help:    "Wall time of a full root import",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
	)
)

// Watch metrics
var (
	WatchEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetcache_watch_events_total",
			Help: "Coalesced file system events processed, by operation",
		},
		[]string{"operation"},
	)
)

// Sweep metrics
var (
	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetcache_sweep_runs_total",
			Help: "Completed reconciliation sweeps",
		},
	)

	SweepEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetcache_sweep_evictions_total",
			Help: "Records evicted because their file no longer exists",
		},
	)

	SweepLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assetcache_sweep_last_run_timestamp",
			Help: "Unix timestamp of the last completed sweep",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assetcache_sweep_duration_seconds",
			Help:    "Wall time of a reconciliation sweep",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
