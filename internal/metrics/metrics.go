// Package metrics defines the gateway's Prometheus metrics.
//
// All metrics live in the default registry and are exposed via promhttp on
// GET /metrics. Counters are monotonic and reset only by process restart.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vdbgate"

var (
	// RequestsTotal counts API requests by method, endpoint, and final status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration tracks request latency by method and endpoint.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ActiveConnections gauges requests currently in flight.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "active_connections",
			Help:      "Number of active connections",
		},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter, by route.
	// Denials are counted here and under RequestsTotal with status 429; they
	// never inflate the success classes.
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	// EngineOperationsTotal counts engine operations by name and collection.
	EngineOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total engine operations",
		},
		[]string{"operation", "collection"},
	)

	// EngineOperationDuration tracks engine call latency by operation,
	// measured around the engine call only.
	EngineOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Engine operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// VectorsTotal gauges the number of stored vectors per collection.
	VectorsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vectors_total",
			Help:      "Total number of vectors",
		},
		[]string{"collection"},
	)
)

// ObserveRequest records one completed request.
func ObserveRequest(method, endpoint string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveOperation records one engine operation, success or failure.
// Call it deferred around the engine call so the observation survives panics.
func ObserveOperation(operation, collection string, start time.Time) {
	EngineOperationsTotal.WithLabelValues(operation, collection).Inc()
	EngineOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
