package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics aggregates the counters and histograms recorded by the RPC
// surface and the engines' wiring.
type LedgerMetrics struct {
	Requests      *prometheus.CounterVec
	Payments      prometheus.Counter
	Distributions prometheus.Counter
	Transitions   *prometheus.CounterVec
	Latency       *prometheus.HistogramVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// Metrics returns the lazily-initialised metrics registry. Collectors are
// registered with the default prometheus registerer exactly once.
func Metrics() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "opus",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			Payments: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "opus",
				Subsystem: "royalty",
				Name:      "payments_total",
				Help:      "Total accepted usage payments.",
			}),
			Distributions: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "opus",
				Subsystem: "royalty",
				Name:      "distributions_total",
				Help:      "Total completed royalty distributions.",
			}),
			Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "opus",
				Subsystem: "campaign",
				Name:      "transitions_total",
				Help:      "Campaign lifecycle transitions segmented by resulting status.",
			}, []string{"status"}),
			Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "opus",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.Requests,
			ledgerRegistry.Payments,
			ledgerRegistry.Distributions,
			ledgerRegistry.Transitions,
			ledgerRegistry.Latency,
		)
	})
	return ledgerRegistry
}

// ObserveRequest records one RPC invocation.
func (m *LedgerMetrics) ObserveRequest(method, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, outcome).Inc()
	m.Latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
