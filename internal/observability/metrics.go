package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "noise_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the feed
// and the readings API.
type Metrics struct {
	FeedTicks        prometheus.Counter
	SamplesPublished prometheus.Counter
	PublishErrors    prometheus.Counter
	FeedRunning      prometheus.Gauge

	// Snapshot metrics.
	SnapshotSize prometheus.Histogram
	TickDuration prometheus.Histogram
	Relocations  prometheus.Counter

	// Readings API metrics.
	ReadingsIngested prometheus.Counter
	ReadingsRejected *prometheus.CounterVec // labels: reason={malformed,missing_fields,invalid_numbers,invalid_timestamp,out_of_range}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FeedTicks,
		m.SamplesPublished,
		m.PublishErrors,
		m.FeedRunning,
		m.SnapshotSize,
		m.TickDuration,
		m.Relocations,
		m.ReadingsIngested,
		m.ReadingsRejected,
	)
	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_ticks_total",
			Help:      "Total feed ticks that produced a snapshot.",
		}),
		SamplesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_published_total",
			Help:      "Total samples written to the snapshot sink.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total snapshot source or sink failures.",
		}),
		FeedRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_running",
			Help:      "1 when the feed is active, 0 when shut down.",
		}),
		SnapshotSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_size",
			Help:      "Number of samples per feed snapshot.",
			Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of one feed tick, from sampling to sink.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		Relocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relocations_total",
			Help:      "Total mock samples moved to a new cluster by evolution.",
		}),
		ReadingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Total device readings stored.",
		}),
		ReadingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_rejected_total",
			Help:      "Device readings rejected by validation, by reason.",
		}, []string{"reason"}),
	}
}
