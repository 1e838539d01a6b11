package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Repository (C5) metrics
	PendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimystic_repository_pend_total",
			Help: "Total number of pend requests by outcome",
		},
		[]string{"outcome"},
	)

	CommitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimystic_repository_commit_total",
			Help: "Total number of commit requests by outcome",
		},
		[]string{"outcome"},
	)

	CancelTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "optimystic_repository_cancel_total",
			Help: "Total number of cancel requests",
		},
	)

	RepositoryOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "optimystic_repository_operation_duration_seconds",
			Help:    "Storage repository operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Cluster coordinator (C6) metrics
	ClusterPromiseOutcomeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimystic_cluster_promise_outcome_total",
			Help: "Total number of cluster promise phases by outcome",
		},
		[]string{"outcome"},
	)

	ClusterCommitOutcomeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimystic_cluster_commit_outcome_total",
			Help: "Total number of cluster commit phases by outcome",
		},
		[]string{"outcome"},
	)

	ClusterRetryQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "optimystic_cluster_retry_queue_depth",
			Help: "Number of cluster records currently awaiting straggler retry",
		},
	)

	ClusterRetryAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "optimystic_cluster_retry_attempts_total",
			Help: "Total number of straggler retry attempts sent",
		},
	)

	ClusterTransactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optimystic_cluster_transaction_duration_seconds",
			Help:    "Time taken for a full promise+commit cluster round in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Transaction coordinator (C9) metrics
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimystic_transactions_total",
			Help: "Total number of coordinated transactions by outcome",
		},
		[]string{"outcome"},
	)

	TransactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optimystic_transaction_duration_seconds",
			Help:    "End-to-end transaction duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CompensationTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "optimystic_transaction_compensation_total",
			Help: "Total number of transactions that required cancel compensation",
		},
	)

	// Collection log (C8) metrics
	LogAppendTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "optimystic_log_append_total",
			Help: "Total number of log entries appended across all collections",
		},
	)

	LogChunkAllocationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "optimystic_log_chunk_allocations_total",
			Help: "Total number of new log chunks allocated",
		},
	)
)

func init() {
	prometheus.MustRegister(
		PendTotal,
		CommitTotal,
		CancelTotal,
		RepositoryOperationDuration,
		ClusterPromiseOutcomeTotal,
		ClusterCommitOutcomeTotal,
		ClusterRetryQueueDepth,
		ClusterRetryAttemptsTotal,
		ClusterTransactionDuration,
		TransactionsTotal,
		TransactionDuration,
		CompensationTotal,
		LogAppendTotal,
		LogChunkAllocationsTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
