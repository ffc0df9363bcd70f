package broker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/signalbridge/metric"
)

// Metrics holds Prometheus metrics for the broker adapter
type Metrics struct {
	rpcCalls      *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec
	streamItems   *prometheus.CounterVec
	decodeErrors  *prometheus.CounterVec
	activeCalls   prometheus.Gauge
	subscriptions prometheus.Gauge
}

// newMetrics creates and registers broker metrics. A nil registry disables
// metrics collection entirely.
func newMetrics(registry *metric.MetricsRegistry, clientName string) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalbridge",
			Subsystem: "broker",
			Name:      "rpc_calls_total",
			Help:      "Total broker RPC calls by operation and outcome",
		}, []string{"client", "operation", "outcome"}),

		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "signalbridge",
			Subsystem: "broker",
			Name:      "rpc_duration_seconds",
			Help:      "Unary broker RPC round-trip duration",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}, []string{"client", "operation"}),

		streamItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalbridge",
			Subsystem: "broker",
			Name:      "stream_items_total",
			Help:      "Total items received across streaming subscriptions",
		}, []string{"client"}),

		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalbridge",
			Subsystem: "broker",
			Name:      "decode_errors_total",
			Help:      "Total payload decode failures by operation",
		}, []string{"client", "operation"}),

		activeCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "signalbridge",
			Subsystem: "broker",
			Name:      "active_calls",
			Help:      "Number of in-flight broker RPCs",
		}),

		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "signalbridge",
			Subsystem: "broker",
			Name:      "subscriptions_active",
			Help:      "Number of open streaming subscriptions",
		}),
	}

	registry.RegisterCounterVec(clientName, "rpc_calls", metrics.rpcCalls)
	registry.RegisterCounterVec(clientName, "stream_items", metrics.streamItems)
	registry.RegisterCounterVec(clientName, "decode_errors", metrics.decodeErrors)
	registry.RegisterHistogramVec(clientName, "rpc_duration", metrics.rpcDuration)
	registry.RegisterGauge(clientName, "active_calls", metrics.activeCalls)
	registry.RegisterGauge(clientName, "subscriptions_active", metrics.subscriptions)

	return metrics
}

func (m *Metrics) recordCall(clientName, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(clientName, operation, outcome).Inc()
	m.rpcDuration.WithLabelValues(clientName, operation).Observe(elapsed.Seconds())
}

func (m *Metrics) recordStreamItem(clientName string) {
	if m == nil {
		return
	}
	m.streamItems.WithLabelValues(clientName).Inc()
}

func (m *Metrics) recordDecodeError(clientName, operation string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(clientName, operation).Inc()
}

func (m *Metrics) callStarted() {
	if m == nil {
		return
	}
	m.activeCalls.Inc()
}

func (m *Metrics) callFinished() {
	if m == nil {
		return
	}
	m.activeCalls.Dec()
}

func (m *Metrics) subscriptionOpened() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}

func (m *Metrics) subscriptionClosed() {
	if m == nil {
		return
	}
	m.subscriptions.Dec()
}
