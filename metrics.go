package computegraph

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	kernelCompilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "computegraph_kernel_compiles_total",
			Help: "Total number of kernel compiles per format and result",
		},
		[]string{"format", "result"},
	)

	kernelCompileDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "computegraph_kernel_compile_duration_seconds",
			Help:    "Duration of kernel compiles in seconds per format",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	bindingMismatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "computegraph_binding_mismatches_total",
			Help: "Total number of edges skipped because a binding index was out of range",
		},
	)

	proxyBuildsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "computegraph_proxy_builds_total",
			Help: "Total number of render proxies published",
		},
	)

	pendingCompiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "computegraph_pending_compiles",
			Help: "Number of kernel compiles in flight across all graphs",
		},
	)
)

// Compile results recorded in computegraph_kernel_compiles_total.
const (
	resultSuccess   = "success"
	resultFailure   = "failure"
	resultCancelled = "cancelled"
	resultCached    = "cached"
)

// RegisterMetrics registers the package collectors with r. Registering
// twice with the same registerer is not an error.
func RegisterMetrics(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		kernelCompilesTotal,
		kernelCompileDurationSeconds,
		bindingMismatches,
		proxyBuildsTotal,
		pendingCompiles,
	} {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
