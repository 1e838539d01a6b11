/*
Package metrics provides Prometheus metrics collection and exposition for Optimystic.

The metrics package defines and registers all Optimystic metrics using the
Prometheus client library, providing observability into repository
throughput, cluster consensus outcomes, transaction latency, and retry
behavior. Metrics are exposed via HTTP endpoint for scraping by Prometheus
servers.

# Architecture

Optimystic's metrics system follows Prometheus best practices with
comprehensive instrumentation across all components:

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (retry queue depth)  │          │
	│  │  Counter: Monotonic increases (pend total)  │          │
	│  │  Histogram: Distributions (latency)         │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Repository: pend/commit/cancel outcomes    │          │
	│  │  Cluster: promise/commit phase outcomes     │          │
	│  │  Transaction: coordinator outcomes          │          │
	│  │  Log: chunk allocation, append rate         │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Prometheus Server                   │          │
	│  │  - Scrapes /metrics every 15s               │          │
	│  │  - Stores time series data                  │          │
	│  │  - Provides PromQL query interface          │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Automatic collection of Go runtime metrics
  - Thread-safe for concurrent updates

Gauge Metrics:
  - Instant value that can go up or down
  - Example: retry queue depth
  - Operations: Set, Inc, Dec, Add, Sub

Counter Metrics:
  - Monotonically increasing value
  - Examples: pend/commit/cancel totals, retry attempts
  - Operations: Inc, Add (cannot decrease)

Histogram Metrics:
  - Distribution of observed values
  - Buckets for latency percentiles (p50, p95, p99)
  - Examples: repository operation duration, transaction duration
  - Includes: sum, count, buckets

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

# Metrics Catalog

Repository Metrics (C5):

optimystic_repository_pend_total{outcome}:
  - Type: Counter
  - Description: Total pend requests by outcome (success/missing/pending/error)
  - Labels: outcome
  - Example: optimystic_repository_pend_total{outcome="success"} 1024

optimystic_repository_commit_total{outcome}:
  - Type: Counter
  - Description: Total commit requests by outcome
  - Labels: outcome
  - Example: optimystic_repository_commit_total{outcome="success"} 1000

optimystic_repository_cancel_total:
  - Type: Counter
  - Description: Total cancel requests
  - Example: optimystic_repository_cancel_total 12

optimystic_repository_operation_duration_seconds{operation}:
  - Type: Histogram
  - Description: Storage repository operation duration in seconds
  - Labels: operation (get/pend/commit/cancel)
  - Buckets: Default Prometheus buckets

Cluster Coordinator Metrics (C6):

optimystic_cluster_promise_outcome_total{outcome}:
  - Type: Counter
  - Description: Total promise phases by outcome (quorum/no-quorum/rejected/error)
  - Labels: outcome

optimystic_cluster_commit_outcome_total{outcome}:
  - Type: Counter
  - Description: Total commit phases by outcome

optimystic_cluster_retry_queue_depth:
  - Type: Gauge
  - Description: Number of cluster records currently awaiting straggler retry
  - Example: optimystic_cluster_retry_queue_depth 2

optimystic_cluster_retry_attempts_total:
  - Type: Counter
  - Description: Total number of straggler retry attempts sent

optimystic_cluster_transaction_duration_seconds:
  - Type: Histogram
  - Description: Time taken for a full promise+commit cluster round in seconds

Transaction Coordinator Metrics (C9):

optimystic_transactions_total{outcome}:
  - Type: Counter
  - Description: Total coordinated transactions by outcome (committed/pend-failed/commit-failed/no-op/engine-not-registered/engine-error/statements-invalid)
  - Labels: outcome

optimystic_transaction_duration_seconds:
  - Type: Histogram
  - Description: End-to-end transaction duration in seconds

optimystic_transaction_compensation_total:
  - Type: Counter
  - Description: Total transactions that required cancel compensation

Collection Log Metrics (C8):

optimystic_log_append_total:
  - Type: Counter
  - Description: Total number of log entries appended across all collections

optimystic_log_chunk_allocations_total:
  - Type: Counter
  - Description: Total number of new log chunks allocated

# Usage

Updating Counter Metrics:

	import "github.com/cuemby/optimystic/pkg/metrics"

	metrics.PendTotal.WithLabelValues("success").Inc()
	metrics.CancelTotal.Inc()

Updating Gauge Metrics:

	metrics.ClusterRetryQueueDepth.Set(float64(len(pending)))

Recording Histogram Observations:

	// Using Timer helper
	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.RepositoryOperationDuration, "commit")

Complete Example:

	package main

	import (
		"net/http"
		"github.com/cuemby/optimystic/pkg/metrics"
	)

	func main() {
		timer := metrics.NewTimer()
		result := doCommit()
		timer.ObserveDurationVec(metrics.RepositoryOperationDuration, "commit")
		if result.Success {
			metrics.CommitTotal.WithLabelValues("success").Inc()
		} else {
			metrics.CommitTotal.WithLabelValues("failure").Inc()
		}

		// Expose metrics endpoint
		http.Handle("/metrics", metrics.Handler())
		http.ListenAndServe(":9090", nil)
	}

# Integration Points

This package integrates with:

  - internal/repository: none; the pend/commit/cancel counters and the operation duration histogram are registered but not recorded
  - internal/cluster: Increments promise/commit outcome counters, samples retry queue depth
  - internal/txn: Increments transaction outcome counters, times end-to-end duration
  - internal/colllog: Increments append and chunk allocation counters
  - Prometheus: Scrapes /metrics endpoint

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration
  - Ensures metrics available before main()
  - No runtime registration needed

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels (outcome, operation)
  - Avoid high-cardinality labels (action IDs, peer IDs, timestamps)
  - Keep label count low (< 5 per metric)

Timer Pattern:
  - Create timer at operation start
  - Explicitly call ObserveDuration/ObserveDurationVec when the operation ends
  - Automatically calculates elapsed time
  - Supports both simple and vector histograms

Global Metrics:
  - Package-level variables for all metrics
  - Accessible from any Optimystic package
  - Thread-safe concurrent updates
  - No initialization required by callers

# Performance Characteristics

Metric Update Overhead:
  - Gauge set/inc: ~50ns per operation
  - Counter inc: ~50ns per operation
  - Histogram observe: ~200ns per operation
  - Labels: +100ns per label value
  - Negligible impact on hot path

Memory Usage:
  - Per metric: ~1KB baseline
  - Per label combination: ~100 bytes
  - Histogram buckets: ~50 bytes each

Scrape Performance:
  - Metrics gathering: ~1-5ms for full scrape
  - HTTP response: ~10ms for typical metric set
  - Recommendation: Scrape interval ≥ 15s

Cardinality Management:
  - Low cardinality: outcome, operation (< 10 values)
  - Avoid: action IDs, peer IDs, timestamps (unbounded)
  - Best practice: Aggregate high-cardinality detail in logs instead

# Troubleshooting

Common Issues:

Missing Metrics:
  - Symptom: Metric not appearing in /metrics output
  - Check: Metric registered in init() function
  - Check: MustRegister called (panics if duplicate)
  - Solution: Verify metric variable is exported

High Cardinality:
  - Symptom: Prometheus memory usage grows
  - Cause: Using action/peer IDs as labels
  - Solution: Remove high-cardinality labels, aggregate differently

Histogram Bucket Mismatch:
  - Symptom: No data in desired percentiles
  - Cause: Buckets don't cover observed value range
  - Solution: Customize buckets for value range

Stale Metrics:
  - Symptom: Metrics not updating
  - Cause: Code not calling metric update methods
  - Solution: Instrument code paths correctly

# Monitoring

Prometheus Queries (PromQL):

Repository Health:
  - Pend success rate: rate(optimystic_repository_pend_total{outcome="success"}[5m])
  - Commit failure rate: rate(optimystic_repository_commit_total{outcome!="success"}[5m])
  - p95 commit latency: histogram_quantile(0.95, optimystic_repository_operation_duration_seconds_bucket{operation="commit"})

Cluster Health:
  - Promise quorum rate: rate(optimystic_cluster_promise_outcome_total{outcome="quorum"}[5m])
  - Retry backlog: optimystic_cluster_retry_queue_depth
  - p95 cluster round latency: histogram_quantile(0.95, optimystic_cluster_transaction_duration_seconds_bucket)

Transaction Health:
  - Compensation rate: rate(optimystic_transaction_compensation_total[5m])
  - p99 transaction latency: histogram_quantile(0.99, optimystic_transaction_duration_seconds_bucket)

# Alerting Rules

Recommended Prometheus alerts:

High Commit Failure Rate:
  - Alert: rate(optimystic_repository_commit_total{outcome!="success"}[5m]) > 0.1
  - Description: More than 0.1 commit failures per second
  - Action: Check repository logs, block store health

Cluster Quorum Loss:
  - Alert: rate(optimystic_cluster_promise_outcome_total{outcome="no-quorum"}[5m]) > 0
  - Description: Cluster failing to reach promise quorum
  - Action: Check peer connectivity, network-size estimator

Growing Retry Backlog:
  - Alert: optimystic_cluster_retry_queue_depth > 50
  - Description: Straggler retry queue is not draining
  - Action: Check peer health, backoff configuration

High Transaction Latency:
  - Alert: histogram_quantile(0.95, optimystic_transaction_duration_seconds_bucket) > 1
  - Description: p95 transaction latency > 1 second
  - Action: Check repository and cluster coordinator latency

# Grafana Dashboards

Recommended dashboard panels:

Repository Overview:
  - Time series: Pend/commit/cancel rate by outcome
  - Heatmap: Operation latency distribution

Cluster Overview:
  - Time series: Promise/commit outcome rate
  - Single stat: Retry queue depth
  - Time series: Retry attempts per second

Transaction Overview:
  - Time series: Transaction outcome rate
  - Time series: Compensation rate
  - Heatmap: End-to-end transaction latency

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - PromQL tutorial: https://prometheus.io/docs/prometheus/latest/querying/basics/
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
