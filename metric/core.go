package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains platform-level metrics shared by every component. Domain
// metrics (broker RPC counters, bridge routing counters) live with their
// owning packages and register themselves through the registry.
type Metrics struct {
	// Component metrics
	ComponentStatus    *prometheus.GaugeVec
	SignalsReceived    *prometheus.CounterVec
	SignalsPublished   *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	HealthCheckStatus  *prometheus.GaugeVec

	// Broker connection metrics
	BrokerConnected prometheus.Gauge

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSRTT        prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "signalbridge",
				Subsystem: "component",
				Name:      "status",
				Help:      "Component status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"component"},
		),

		SignalsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "signalbridge",
				Subsystem: "signals",
				Name:      "received_total",
				Help:      "Total signal updates received from the broker",
			},
			[]string{"component", "path"},
		),

		SignalsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "signalbridge",
				Subsystem: "signals",
				Name:      "published_total",
				Help:      "Total signal updates published to the message bus",
			},
			[]string{"component", "subject"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "signalbridge",
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Signal processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"component", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "signalbridge",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "type"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "signalbridge",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		BrokerConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "signalbridge",
				Subsystem: "broker",
				Name:      "connected",
				Help:      "Data broker connection status (0=disconnected, 1=connected)",
			},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "signalbridge",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "signalbridge",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "signalbridge",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// RecordComponentStatus updates component status metric
func (c *Metrics) RecordComponentStatus(component string, status int) {
	c.ComponentStatus.WithLabelValues(component).Set(float64(status))
}

// RecordSignalReceived increments the received signal counter
func (c *Metrics) RecordSignalReceived(component, path string) {
	c.SignalsReceived.WithLabelValues(component, path).Inc()
}

// RecordSignalPublished increments the published signal counter
func (c *Metrics) RecordSignalPublished(component, subject string) {
	c.SignalsPublished.WithLabelValues(component, subject).Inc()
}

// RecordProcessingDuration records processing time
func (c *Metrics) RecordProcessingDuration(component, operation string, duration time.Duration) {
	c.ProcessingDuration.WithLabelValues(component, operation).Observe(duration.Seconds())
}

// RecordError increments error counter
func (c *Metrics) RecordError(component, errorType string) {
	c.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(value)
}

// RecordBrokerStatus updates the data broker connection status
func (c *Metrics) RecordBrokerStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.BrokerConnected.Set(value)
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSRTT updates NATS round-trip time
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}
