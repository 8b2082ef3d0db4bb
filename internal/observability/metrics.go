package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NOTE: All metrics are defined globally here, so every binary registers the
// full set. Series for components a binary does not run simply stay at zero.

// namespace defines the global prefix for all metrics (e.g., xeno_...).
const namespace = "xeno"

// lowLatencyBuckets resolve in-process work (segment evaluation, RPC previews).
// Standard buckets start at 5ms which is too coarse. Range: 1ms to 500ms.
var lowLatencyBuckets = []float64{.001, .002, .005, .010, .015, .020, .025, .030, .050, .100, .500}

var (
	// -------------------------------------------------------------------------
	// REST API
	// -------------------------------------------------------------------------

	// HTTPReqDuration measures the latency of HTTP requests.
	// Metric: xeno_api_http_handling_seconds
	HTTPReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// HTTPReqTotal counts the total number of HTTP requests.
	// Metric: xeno_api_http_requests_total
	HTTPReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "route", "code"})

	// -------------------------------------------------------------------------
	// RPC (segmentation preview)
	// -------------------------------------------------------------------------

	// RPCDuration measures the latency of gRPC requests.
	// Metric: xeno_rpc_grpc_handling_seconds
	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "grpc_handling_seconds",
		Help:      "Time taken to handle gRPC requests",
		Buckets:   lowLatencyBuckets,
	}, []string{"method", "code"})

	// RPCTotal counts the total number of gRPC requests.
	// Metric: xeno_rpc_grpc_requests_total
	RPCTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "grpc_requests_total",
		Help:      "Total gRPC requests",
	}, []string{"method", "code"})

	// -------------------------------------------------------------------------
	// SEGMENTATION & DELIVERY
	// -------------------------------------------------------------------------

	// SegmentEvalDuration measures one pass of a rule chain over a population.
	SegmentEvalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "segment",
		Name:      "evaluation_seconds",
		Help:      "Time taken to evaluate a rule chain over the customer population",
		Buckets:   lowLatencyBuckets,
	})

	// SegmentMatched observes how many customers each evaluation matched.
	SegmentMatched = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "segment",
		Name:      "matched_customers",
		Help:      "Number of customers matched per segment evaluation",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	// DeliveryMessages counts simulated deliveries by outcome.
	// Metric: xeno_delivery_messages_total{status="SENT|FAILED"}
	DeliveryMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery",
		Name:      "messages_total",
		Help:      "Total simulated deliveries by status",
	}, []string{"status"})

	// DeliveryDispatchFailures counts dispatches whose log batch could not be persisted.
	DeliveryDispatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery",
		Name:      "dispatch_failures_total",
		Help:      "Total dispatches that failed to persist their communication logs",
	})

	// -------------------------------------------------------------------------
	// STATS WORKER
	// -------------------------------------------------------------------------

	// StatsJobDuration measures "Freshness" (Latency from Enqueue to Processed).
	// Metric: xeno_stats_job_processing_duration_seconds
	StatsJobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "stats",
		Name:      "job_processing_duration_seconds",
		Help:      "End-to-end latency from enqueue to recompute finish",
		Buckets:   prometheus.DefBuckets,
	})

	// StatsRecomputeTotal counts recomputes by outcome.
	StatsRecomputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stats",
		Name:      "recompute_total",
		Help:      "Total customer stats recomputes",
	}, []string{"status"}) // success, fail, skipped

	StatsQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stats",
		Name:      "queue_depth",
		Help:      "Current number of customers waiting in the recompute queue",
	})

	// -------------------------------------------------------------------------
	// SUGGESTIONS (L1 cache + generator throttle)
	// -------------------------------------------------------------------------

	SuggestCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "suggest",
		Name:      "cache_hits_total",
		Help:      "Total suggestion cache hits",
	})

	SuggestCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "suggest",
		Name:      "cache_misses_total",
		Help:      "Total suggestion cache misses",
	})

	// SuggestFallbacks counts responses that used fallback copy.
	SuggestFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "suggest",
		Name:      "fallbacks_total",
		Help:      "Total responses served from fallback copy",
	}, []string{"reason"}) // rate_limited, generator_error, short_response, tone_error

	// -------------------------------------------------------------------------
	// INFRASTRUCTURE POOLS
	// -------------------------------------------------------------------------

	// DBPoolConnections reports pgxpool connection counts.
	// Metric: xeno_database_pool_connections{state="total|idle|in_use|max"}
	DBPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_connections",
		Help:      "Current number of database connections by state",
	}, []string{"state"})

	// DBPoolAcquireCount mirrors pgxpool's cumulative acquire counter.
	DBPoolAcquireCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_count_total",
		Help:      "Cumulative count of successful connection acquires",
	})

	DBPoolAcquireDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_duration_seconds_total",
		Help:      "Cumulative time spent acquiring connections",
	})

	DBPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_wait_count_total",
		Help:      "Cumulative count of acquires that had to wait for a connection",
	})

	// RedisPoolConnections reports go-redis pool counts.
	// Metric: xeno_redis_pool_connections{state="total|idle|stale"}
	RedisPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_connections",
		Help:      "Current number of redis connections by state",
	}, []string{"state"})

	RedisPoolHits = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_hits_total",
		Help:      "Cumulative count of free connections found in the pool",
	})

	RedisPoolMisses = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_misses_total",
		Help:      "Cumulative count of connections not found in the pool",
	})

	RedisPoolTimeouts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_timeouts_total",
		Help:      "Cumulative count of pool wait timeouts",
	})
)
