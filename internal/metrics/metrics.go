package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters and histograms for the ingestion and aggregation pipelines.

var (
	// RPC transport
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dln",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total RPC calls by method class and outcome",
	}, []string{"class", "status"})

	RPCRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dln",
		Subsystem: "rpc",
		Name:      "retries_total",
		Help:      "Total RPC retries after transient failures",
	}, []string{"class"})

	RPCThrottleWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dln",
		Subsystem: "rpc",
		Name:      "throttle_waits_total",
		Help:      "Times an RPC call waited on the per-class throttle",
	}, []string{"class"})

	RPCCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dln",
		Subsystem: "rpc",
		Name:      "call_duration_seconds",
		Help:      "RPC call duration including queueing and retries",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"class"})

	// Indexer sources
	IndexerTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dln",
		Subsystem: "indexer",
		Name:      "ticks_total",
		Help:      "Total source ticks by program, mode and outcome",
	}, []string{"program", "mode", "status"})

	IndexerTxIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dln",
		Subsystem: "indexer",
		Name:      "transactions_ingested_total",
		Help:      "Raw transactions persisted with their aggregation jobs",
	}, []string{"program", "mode"})

	// Aggregation workers
	WorkerTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dln",
		Subsystem: "aggregator",
		Name:      "ticks_total",
		Help:      "Total worker ticks by outcome",
	}, []string{"status"})

	JobsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dln",
		Subsystem: "aggregator",
		Name:      "jobs_resolved_total",
		Help:      "Aggregation jobs resolved by terminal outcome",
	}, []string{"status"})

	JobBatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dln",
		Subsystem: "aggregator",
		Name:      "batch_duration_seconds",
		Help:      "Claimed batch processing duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	OrderEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dln",
		Subsystem: "aggregator",
		Name:      "order_events_total",
		Help:      "Decoded order events by type",
	}, []string{"type"})

	// Price oracle
	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dln",
		Subsystem: "price",
		Name:      "cache_hits_total",
		Help:      "Daily price cache hits",
	})

	PriceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dln",
		Subsystem: "price",
		Name:      "cache_misses_total",
		Help:      "Daily price cache misses",
	})

	PriceLookupErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dln",
		Subsystem: "price",
		Name:      "lookup_errors_total",
		Help:      "Upstream price lookup failures",
	})

	// Dashboard
	DashboardRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dln",
		Subsystem: "dashboard",
		Name:      "requests_total",
		Help:      "Dashboard API requests by status code",
	}, []string{"code"})
)
