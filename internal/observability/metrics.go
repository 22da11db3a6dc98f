package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline.
type Metrics struct {
	// Upstream fetch metrics.
	PagesFetched  prometheus.Counter
	PageRetries   *prometheus.CounterVec // labels: class={rate_limit_a,rate_limit_b,transient}
	PageFailures  prometheus.Counter
	BreakerTrips  prometheus.Counter
	SweepDuration prometheus.Histogram

	// Source cache metrics.
	SnapshotRefreshes  prometheus.Counter
	SnapshotHits       prometheus.Counter
	SnapshotStaleUsed  prometheus.Counter
	SnapshotPointCount prometheus.Gauge

	// Partition refresh metrics.
	PartitionRefreshes *prometheus.CounterVec // labels: partition
	PartitionFreshHits prometheus.Counter
	RefreshDuration    prometheus.Histogram
	PartitionRecords   *prometheus.GaugeVec // labels: partition
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PagesFetched,
		m.PageRetries,
		m.PageFailures,
		m.BreakerTrips,
		m.SweepDuration,
		m.SnapshotRefreshes,
		m.SnapshotHits,
		m.SnapshotStaleUsed,
		m.SnapshotPointCount,
		m.PartitionRefreshes,
		m.PartitionFreshHits,
		m.RefreshDuration,
		m.PartitionRecords,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_ref",
			Name:      "upstream_pages_fetched_total",
			Help:      "Total pages successfully fetched from the upstream endpoint.",
		}),
		PageRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_ref",
			Name:      "upstream_page_retries_total",
			Help:      "Page fetch attempts that failed and were retried, by error class.",
		}, []string{"class"}),
		PageFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_ref",
			Name:      "upstream_page_failures_total",
			Help:      "Pages abandoned after exhausting the retry budget.",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_ref",
			Name:      "upstream_breaker_trips_total",
			Help:      "Sweeps aborted by the consecutive-failure circuit breaker.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_ref",
			Name:      "upstream_sweep_duration_seconds",
			Help:      "Duration of a full upstream pagination sweep.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		SnapshotRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_ref",
			Name:      "snapshot_refreshes_total",
			Help:      "Successful replacements of the raw point snapshot.",
		}),
		SnapshotHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_ref",
			Name:      "snapshot_hits_total",
			Help:      "Snapshot reads served within the TTL without fetching.",
		}),
		SnapshotStaleUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_ref",
			Name:      "snapshot_stale_served_total",
			Help:      "Reads served from an expired snapshot after a failed refresh.",
		}),
		SnapshotPointCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_ref",
			Name:      "snapshot_points",
			Help:      "Number of reference points in the current snapshot.",
		}),
		PartitionRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_ref",
			Name:      "partition_refreshes_total",
			Help:      "Completed derive-and-replace refreshes by partition.",
		}, []string{"partition"}),
		PartitionFreshHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_ref",
			Name:      "partition_fresh_hits_total",
			Help:      "EnsureFresh calls answered by the freshness window without refreshing.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_ref",
			Name:      "partition_refresh_duration_seconds",
			Help:      "Duration of a full fetch-derive-replace refresh.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		PartitionRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hazard_ref",
			Name:      "partition_records",
			Help:      "Records currently persisted per partition.",
		}, []string{"partition"}),
	}
}
