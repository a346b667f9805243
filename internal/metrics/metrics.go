// Package metrics provides Prometheus instrumentation for the chat client.
// It exposes a connectivity gauge, counters for event throughput in both
// directions, and a histogram for dispatch latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connected is 1 while the transport has a live connection, 0 otherwise.
	Connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parley_connected",
		Help: "Whether the client currently has a live server connection",
	})

	// ReconnectAttemptsTotal counts automatic reconnect attempts.
	ReconnectAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parley_reconnect_attempts_total",
		Help: "Total number of automatic reconnect attempts",
	})

	// EventsDispatchedTotal counts inbound events routed to stores, labeled
	// by event name.
	EventsDispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_events_dispatched_total",
		Help: "Total number of inbound events dispatched to stores",
	}, []string{"event"})

	// EventsDroppedTotal counts inbound frames dropped as malformed.
	EventsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parley_events_dropped_total",
		Help: "Total number of inbound frames dropped as malformed",
	})

	// EmitsTotal counts outbound events, labeled by event name.
	EmitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_emits_total",
		Help: "Total number of outbound events emitted",
	}, []string{"event"})

	// EmitFailuresTotal counts outbound emits that failed, including
	// fail-fast rejections while disconnected.
	EmitFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parley_emit_failures_total",
		Help: "Total number of failed outbound emits",
	})

	// DispatchLatency records per-event dispatch latency in seconds.
	DispatchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parley_dispatch_latency_seconds",
		Help:    "Inbound event dispatch latency in seconds",
		Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
	})
)

func init() {
	prometheus.MustRegister(
		Connected,
		ReconnectAttemptsTotal,
		EventsDispatchedTotal,
		EventsDroppedTotal,
		EmitsTotal,
		EmitFailuresTotal,
		DispatchLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
