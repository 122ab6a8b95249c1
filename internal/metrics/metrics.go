// Package metrics holds the Prometheus collectors the server exports on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "workaholic"

var (
	// RPCRequests counts handled RPCs by procedure and Connect code ("ok" on success).
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_requests_total",
		Help:      "Handled RPCs by procedure and result code.",
	}, []string{"procedure", "code"})

	// RPCDuration observes handler latency. Streams are observed when they end.
	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_duration_seconds",
		Help:      "RPC handler duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"procedure"})

	// StorageWrites counts document writes by collection and operation.
	StorageWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "storage_writes_total",
		Help:      "Document writes by collection and operation.",
	}, []string{"collection", "op"})

	// ActiveWatches is the number of open Watch streams.
	ActiveWatches = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_watches",
		Help:      "Open Watch streams.",
	})
)

// ObserveRPC records one finished RPC.
func ObserveRPC(procedure, code string, elapsed time.Duration) {
	RPCRequests.WithLabelValues(procedure, code).Inc()
	RPCDuration.WithLabelValues(procedure).Observe(elapsed.Seconds())
}
