package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InvoicesCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoices_committed_total",
		Help: "Total number of invoices committed",
	})

	InvoicesCommitFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoices_commit_failed_total",
		Help: "Total number of failed invoice commits",
	}, []string{"reason"})

	InvoicesReversedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoices_reversed_total",
		Help: "Total number of invoices reversed",
	})

	InvoicesReversalFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoices_reversal_failed_total",
		Help: "Total number of failed invoice reversals",
	}, []string{"reason"})

	StockValidationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_validation_latency_seconds",
		Help:    "Latency of pre-commit stock validation",
		Buckets: prometheus.DefBuckets,
	})

	BatchApplyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "batch_apply_latency_seconds",
		Help:    "Latency of atomic write set application",
		Buckets: prometheus.DefBuckets,
	})

	StockSnapshotCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_snapshot_cache_misses_total",
		Help: "Stock snapshots served without the Redis cache",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
