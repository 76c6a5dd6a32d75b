package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Sync related metrics
	RequestsSynced    prometheus.Counter
	RequestsFailed    prometheus.Counter
	RequestsExhausted prometheus.Counter
	SyncPassLatency   prometheus.Histogram
	SyncPasses        *prometheus.CounterVec
	PendingRequests   prometheus.Gauge
	FailedRequests    prometheus.Gauge

	// Storage metrics
	StorageOperations *prometheus.CounterVec
	StorageUsedBytes  prometheus.Gauge

	// Connectivity metrics
	Online                  prometheus.Gauge
	ConnectivityTransitions *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics on reg.
// A nil reg registers on the default prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsSynced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "requests_synced_total",
			Help:      "Total number of emergency requests delivered to the remote service",
		}),
		RequestsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "requests_failed_total",
			Help:      "Total number of failed submission attempts",
		}),
		RequestsExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "requests_exhausted_total",
			Help:      "Total number of requests marked failed after running out of retries",
		}),
		SyncPassLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Time spent in a single sync pass",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		SyncPasses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Total number of sync passes by result",
		}, []string{"result"}),
		PendingRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pending_requests",
			Help:      "Number of requests waiting to be synced",
		}),
		FailedRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "failed_requests",
			Help:      "Number of requests that ran out of retries and wait for an operator",
		}),

		StorageOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Total number of storage operations",
		}, []string{"operation", "status"}),
		StorageUsedBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "used_bytes",
			Help:      "Approximate bytes held by namespaced keys",
		}),

		Online: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connectivity",
			Name:      "online",
			Help:      "1 when the remote service is reachable",
		}),
		ConnectivityTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connectivity",
			Name:      "transitions_total",
			Help:      "Total number of connectivity transitions",
		}, []string{"to"}),
	}
}

// NewNop returns metrics registered on a throwaway registry.
func NewNop() *Metrics {
	return NewMetrics("lifepulse", prometheus.NewRegistry())
}
