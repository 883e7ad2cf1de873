package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type gatewayMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

type ledgerMetrics struct {
	settlements *prometheus.CounterVec
	leases      *prometheus.CounterVec
}

var (
	gatewayMetricsOnce sync.Once
	gatewayRegistry    *gatewayMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// Gateway returns the lazily-initialised HTTP gateway metrics registry.
func Gateway() *gatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayRegistry = &gatewayMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "curio",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total gateway requests segmented by route and outcome.",
			}, []string{"route", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "curio",
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Total gateway errors segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "curio",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "curio",
				Subsystem: "gateway",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"route"}),
		}
		prometheus.MustRegister(
			gatewayRegistry.requests,
			gatewayRegistry.errors,
			gatewayRegistry.latency,
			gatewayRegistry.throttles,
		)
	})
	return gatewayRegistry
}

// Observe records a finished request. The status code is the one written to
// the response.
func (m *gatewayMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordThrottle counts a request turned away by the rate limiter.
func (m *gatewayMetrics) RecordThrottle(route string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.throttles.WithLabelValues(route).Inc()
}

// Ledger returns the registry tracking settlement and lease activity.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "curio",
				Subsystem: "ledger",
				Name:      "settlements_total",
				Help:      "Count of settled distributions segmented by kind.",
			}, []string{"kind"}),
			leases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "curio",
				Subsystem: "ledger",
				Name:      "lease_transitions_total",
				Help:      "Count of lease state transitions segmented by transition.",
			}, []string{"transition"}),
		}
		prometheus.MustRegister(ledgerRegistry.settlements, ledgerRegistry.leases)
	})
	return ledgerRegistry
}

// RecordSettlement counts a settled acquisition or sale.
func (m *ledgerMetrics) RecordSettlement(kind string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(kind).Inc()
}

// RecordLeaseTransition counts a lease transition such as "created",
// "extended", "ended" or "expired".
func (m *ledgerMetrics) RecordLeaseTransition(transition string) {
	if m == nil {
		return
	}
	m.leases.WithLabelValues(transition).Inc()
}
