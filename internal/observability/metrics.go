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
	// Quote metrics
	QuotesRequested prometheus.Counter
	QuoteErrors     *prometheus.CounterVec
	QuoteLatency    prometheus.Histogram
	QuotesDropped   prometheus.Counter

	// Build metrics
	DraftsBuilt prometheus.Counter
	BuildErrors *prometheus.CounterVec

	// Lifecycle metrics
	Transitions     *prometheus.CounterVec
	ActiveSequence  prometheus.Gauge
	SubmissionsDone *prometheus.CounterVec

	// Ledger metrics
	RPCCallLatency *prometheus.HistogramVec
	WSNotifications prometheus.Counter

	// HTTP API metrics
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sui_swap_engine"
	}

	return &Metrics{
		QuotesRequested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "requests_total",
			Help:      "Total number of quote requests issued to the routing backend",
		}),
		QuoteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "errors_total",
			Help:      "Total number of quote failures by kind",
		}, []string{"kind"}),
		QuoteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "latency_seconds",
			Help:      "Quote fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		QuotesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "dropped_total",
			Help:      "Total number of quote results discarded as superseded",
		}),

		DraftsBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "drafts_total",
			Help:      "Total number of transaction drafts assembled",
		}),
		BuildErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "errors_total",
			Help:      "Total number of build failures by kind",
		}, []string{"kind"}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Total number of lifecycle state transitions",
		}, []string{"from", "to"}),
		ActiveSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "active_sequence",
			Help:      "Current authoritative request sequence number",
		}),
		SubmissionsDone: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "submissions_total",
			Help:      "Total number of completed submissions by outcome",
		}, []string{"outcome"}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rpc_call_latency_seconds",
			Help:      "Ledger RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "ws_notifications_total",
			Help:      "Total number of transaction effect notifications received",
		}),

		APIRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP API requests by endpoint and status",
		}, []string{"endpoint", "status"}),
		APILatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "HTTP API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordQuoteRequest increments the quote request counter.
func RecordQuoteRequest() {
	DefaultMetrics.QuotesRequested.Inc()
}

// RecordQuoteError records a quote failure by kind.
func RecordQuoteError(kind string) {
	DefaultMetrics.QuoteErrors.WithLabelValues(kind).Inc()
}

// RecordQuoteLatency records quote fetch latency.
func RecordQuoteLatency(seconds float64) {
	DefaultMetrics.QuoteLatency.Observe(seconds)
}

// RecordQuoteDropped increments the superseded-quote counter.
func RecordQuoteDropped() {
	DefaultMetrics.QuotesDropped.Inc()
}

// RecordDraftBuilt increments the drafts assembled counter.
func RecordDraftBuilt() {
	DefaultMetrics.DraftsBuilt.Inc()
}

// RecordBuildError records a build failure by kind.
func RecordBuildError(kind string) {
	DefaultMetrics.BuildErrors.WithLabelValues(kind).Inc()
}

// RecordTransition records a lifecycle state transition.
func RecordTransition(from, to string) {
	DefaultMetrics.Transitions.WithLabelValues(from, to).Inc()
}

// UpdateActiveSequence updates the authoritative sequence gauge.
func UpdateActiveSequence(seq uint64) {
	DefaultMetrics.ActiveSequence.Set(float64(seq))
}

// RecordSubmission records a completed submission by outcome.
func RecordSubmission(outcome string) {
	DefaultMetrics.SubmissionsDone.WithLabelValues(outcome).Inc()
}

// RecordRPCLatency records ledger RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordWSNotification increments the effects notification counter.
func RecordWSNotification() {
	DefaultMetrics.WSNotifications.Inc()
}

// RecordAPIRequest records an HTTP API request.
func RecordAPIRequest(endpoint, status string, seconds float64) {
	DefaultMetrics.APIRequests.WithLabelValues(endpoint, status).Inc()
	DefaultMetrics.APILatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}
