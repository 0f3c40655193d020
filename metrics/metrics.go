// Package metrics defines the Prometheus collectors for the gateway and the
// server that exposes them.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruteri/cas-gateway/common"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeInvalid = "invalid"
)

var registerOnce sync.Once

// Gateway operation metrics.
var (
	// OperationsTotal counts gateway operations by operation name and outcome.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.PackageName,
			Name:      "operations_total",
			Help:      "Gateway operations by name and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// OperationDuration observes gateway operation latency in seconds.
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: common.PackageName,
			Name:      "operation_duration_seconds",
			Help:      "Gateway operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// BatchSize observes the number of addresses per batch fetch.
	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: common.PackageName,
			Name:      "batch_size",
			Help:      "Addresses requested per batch fetch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

// HTTP metrics.
var (
	// HTTPRequestsTotal counts HTTP requests by method, route pattern and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.PackageName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: common.PackageName,
			Name:      "http_request_duration_seconds",
			Help:      "Request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Register registers all collectors with the default registry.
// It is safe to call multiple times.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OperationsTotal,
			OperationDuration,
			BatchSize,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}

// ObserveOperation records one gateway operation.
func ObserveOperation(operation, outcome string, started time.Time) {
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
