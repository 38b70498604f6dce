// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	SwapsProcessed prometheus.Counter
	SwapsStored    prometheus.Counter
	SwapsRejected  *prometheus.CounterVec
	FeedBufferSize prometheus.Gauge
	FeedReconnects prometheus.Counter
	SwapLatency    prometheus.Histogram

	// Aggregation metrics
	AggregationsPersisted *prometheus.CounterVec
	OpenWindows           prometheus.Gauge
	SuspicionScore        prometheus.Histogram

	// Lifecycle metrics
	WalletsEvaluated   prometheus.Counter
	WalletsQualified   *prometheus.CounterVec
	WalletsDeactivated *prometheus.CounterVec
	SweepDuration      *prometheus.HistogramVec
	SweepsRejected     prometheus.Counter
	NotificationsSent  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSweep prometheus.Gauge
	LastSwapIngested    prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "wallet_sentinel"
	}

	return &Metrics{
		// Feed metrics
		SwapsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "swaps_processed_total",
			Help:      "Total number of normalized swaps processed",
		}),
		SwapsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "swaps_stored_total",
			Help:      "Total number of swaps stored to database",
		}),
		SwapsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "swaps_rejected_total",
			Help:      "Total number of swaps rejected by reason",
		}, []string{"reason"}),
		FeedBufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "buffer_size",
			Help:      "Current number of buckets in the reorder buffer",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of websocket reconnects",
		}),
		SwapLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "swap_processing_latency_seconds",
			Help:      "Swap processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Aggregation metrics
		AggregationsPersisted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "persisted_total",
			Help:      "Total number of aggregations persisted by risk level",
		}, []string{"risk_level"}),
		OpenWindows: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "open_windows",
			Help:      "Current number of open clustering windows",
		}),
		SuspicionScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "suspicion_score",
			Help:      "Distribution of suspicion scores for persisted aggregations",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),

		// Lifecycle metrics
		WalletsEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "wallets_evaluated_total",
			Help:      "Total number of wallet evaluations performed",
		}),
		WalletsQualified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "wallets_qualified_total",
			Help:      "Total number of wallets qualified by category",
		}, []string{"category"}),
		WalletsDeactivated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "wallets_deactivated_total",
			Help:      "Total number of wallets deactivated by reason",
		}, []string{"reason"}),
		SweepDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "sweep_duration_seconds",
			Help:      "Sweep execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"sweep"}),
		SweepsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "sweeps_rejected_total",
			Help:      "Total number of sweep starts rejected because one was in flight",
		}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "notifications_sent_total",
			Help:      "Total number of notifications emitted by event type",
		}, []string{"event"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulSweep: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sweep_timestamp",
			Help:      "Unix timestamp of last successful lifecycle sweep",
		}),
		LastSwapIngested: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_swap_ingested_timestamp",
			Help:      "Unix timestamp of last ingested swap",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSwapProcessed increments the swaps processed counter.
func RecordSwapProcessed() {
	DefaultMetrics.SwapsProcessed.Inc()
}

// RecordSwapStored increments the swaps stored counter.
func RecordSwapStored() {
	DefaultMetrics.SwapsStored.Inc()
}

// RecordSwapRejected records a rejected swap by reason.
func RecordSwapRejected(reason string) {
	DefaultMetrics.SwapsRejected.WithLabelValues(reason).Inc()
}

// RecordAggregationPersisted records a persisted aggregation.
func RecordAggregationPersisted(riskLevel string, score float64) {
	DefaultMetrics.AggregationsPersisted.WithLabelValues(riskLevel).Inc()
	DefaultMetrics.SuspicionScore.Observe(score)
}

// UpdateOpenWindows updates the open windows gauge.
func UpdateOpenWindows(n int) {
	DefaultMetrics.OpenWindows.Set(float64(n))
}

// UpdateFeedBufferSize updates the reorder buffer gauge.
func UpdateFeedBufferSize(buckets int) {
	DefaultMetrics.FeedBufferSize.Set(float64(buckets))
}

// RecordWalletQualified records a qualified wallet by category.
func RecordWalletQualified(category string) {
	DefaultMetrics.WalletsQualified.WithLabelValues(category).Inc()
}

// RecordWalletDeactivated records a deactivated wallet by reason label.
func RecordWalletDeactivated(reason string) {
	DefaultMetrics.WalletsDeactivated.WithLabelValues(reason).Inc()
}

// RecordSweep records a sweep run duration.
func RecordSweep(sweep string, durationSeconds float64) {
	DefaultMetrics.SweepDuration.WithLabelValues(sweep).Observe(durationSeconds)
}

// RecordNotification records an emitted notification.
func RecordNotification(event string) {
	DefaultMetrics.NotificationsSent.WithLabelValues(event).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
