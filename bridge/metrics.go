package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/signalbridge/metric"
)

// Metrics holds Prometheus metrics for the bridge component
type Metrics struct {
	updatesRouted   *prometheus.CounterVec
	updatesSkipped  prometheus.Counter
	decodeFallbacks prometheus.Counter
	publishErrors   prometheus.Counter
	requestsServed  *prometheus.CounterVec
	publishLatency  prometheus.Histogram
	activeRoutes    prometheus.Gauge
	lastActivity    prometheus.Gauge
}

// newMetrics creates and registers bridge metrics. A nil registry disables
// metrics collection.
func newMetrics(registry *metric.MetricsRegistry, name string) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		updatesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalbridge",
			Subsystem: "bridge",
			Name:      "updates_routed_total",
			Help:      "Signal updates routed to NATS subjects",
		}, []string{"path"}),
		updatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signalbridge",
			Subsystem: "bridge",
			Name:      "updates_skipped_total",
			Help:      "Stream updates with no matching route",
		}),
		decodeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signalbridge",
			Subsystem: "bridge",
			Name:      "decode_fallbacks_total",
			Help:      "Updates published with the inferred value after a typed decode failure",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signalbridge",
			Subsystem: "bridge",
			Name:      "publish_errors_total",
			Help:      "NATS publish failures after retries",
		}),
		requestsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalbridge",
			Subsystem: "bridge",
			Name:      "requests_served_total",
			Help:      "On-demand read requests served",
		}, []string{"path"}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "signalbridge",
			Subsystem: "bridge",
			Name:      "publish_duration_seconds",
			Help:      "Time to publish an update to NATS",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		activeRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "signalbridge",
			Subsystem: "bridge",
			Name:      "routes_active",
			Help:      "Number of routes with a live subscription",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "signalbridge",
			Subsystem: "bridge",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last routed update",
		}),
	}

	registry.RegisterCounterVec(name, "updates_routed", m.updatesRouted)
	registry.RegisterCounter(name, "updates_skipped", m.updatesSkipped)
	registry.RegisterCounter(name, "decode_fallbacks", m.decodeFallbacks)
	registry.RegisterCounter(name, "publish_errors", m.publishErrors)
	registry.RegisterCounterVec(name, "requests_served", m.requestsServed)
	registry.RegisterHistogram(name, "publish_latency", m.publishLatency)
	registry.RegisterGauge(name, "routes_active", m.activeRoutes)
	registry.RegisterGauge(name, "last_activity", m.lastActivity)

	return m
}

func (m *Metrics) recordRouted(path string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.updatesRouted.WithLabelValues(path).Inc()
	m.publishLatency.Observe(elapsed.Seconds())
	m.lastActivity.SetToCurrentTime()
}

func (m *Metrics) recordSkipped() {
	if m != nil {
		m.updatesSkipped.Inc()
	}
}

func (m *Metrics) recordDecodeFallback() {
	if m != nil {
		m.decodeFallbacks.Inc()
	}
}

func (m *Metrics) recordPublishError() {
	if m != nil {
		m.publishErrors.Inc()
	}
}

func (m *Metrics) recordRequest(path string) {
	if m != nil {
		m.requestsServed.WithLabelValues(path).Inc()
	}
}

func (m *Metrics) setActiveRoutes(n int) {
	if m != nil {
		m.activeRoutes.Set(float64(n))
	}
}
