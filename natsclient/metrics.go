package natsclient

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/signalbridge/metric"
)

// connectionGauges mirrors the connection state into the core platform
// metrics. The zero value is a no-op.
type connectionGauges struct {
	core *metric.Metrics
}

func (g connectionGauges) recordStatus(connected bool) {
	if g.core != nil {
		g.core.RecordNATSStatus(connected)
	}
}

func (g connectionGauges) recordRTT(rtt time.Duration) {
	if g.core != nil {
		g.core.RecordNATSRTT(rtt)
	}
}

func (g connectionGauges) recordReconnect() {
	if g.core != nil {
		g.core.RecordNATSReconnect()
	}
}

// jetstreamMetrics tracks the streams created through this client. All
// methods are safe on a nil receiver (metrics disabled).
type jetstreamMetrics struct {
	streamMessages *prometheus.GaugeVec
	streamBytes    *prometheus.GaugeVec
	streamState    *prometheus.GaugeVec
	errors         *prometheus.CounterVec

	mu      sync.RWMutex
	streams map[string]jetstream.Stream
}

func newJetStreamMetrics(registry *metric.MetricsRegistry) (*jetstreamMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &jetstreamMetrics{
		streamMessages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "signalbridge",
			Subsystem: "jetstream",
			Name:      "stream_messages",
			Help:      "Current number of messages in stream",
		}, []string{"stream"}),

		streamBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "signalbridge",
			Subsystem: "jetstream",
			Name:      "stream_bytes",
			Help:      "Storage bytes used by stream",
		}, []string{"stream"}),

		streamState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "signalbridge",
			Subsystem: "jetstream",
			Name:      "stream_state",
			Help:      "Stream state (1=active, 0=inactive)",
		}, []string{"stream"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalbridge",
			Subsystem: "jetstream",
			Name:      "operation_errors_total",
			Help:      "Total number of JetStream operation errors",
		}, []string{"operation"}),

		streams: make(map[string]jetstream.Stream),
	}

	if err := registry.RegisterGaugeVec("jetstream", "stream_messages", m.streamMessages); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec("jetstream", "stream_bytes", m.streamBytes); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec("jetstream", "stream_state", m.streamState); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("jetstream", "errors", m.errors); err != nil {
		return nil, err
	}

	return m, nil
}

// trackStream adds a stream to the tracking list for metrics collection
func (m *jetstreamMetrics) trackStream(name string, stream jetstream.Stream) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[name] = stream
	m.streamState.WithLabelValues(name).Set(1)
}

// recordError records a JetStream operation error
func (m *jetstreamMetrics) recordError(operation string) {
	if m != nil {
		m.errors.WithLabelValues(operation).Inc()
	}
}

// updateStats refreshes tracked stream statistics. Called periodically by
// the background poller; unavailable streams are marked inactive.
func (m *jetstreamMetrics) updateStats(ctx context.Context) {
	if m == nil {
		return
	}

	m.mu.RLock()
	streams := make(map[string]jetstream.Stream, len(m.streams))
	for k, v := range m.streams {
		streams[k] = v
	}
	m.mu.RUnlock()

	for name, stream := range streams {
		info, err := stream.Info(ctx)
		if err != nil {
			m.streamState.WithLabelValues(name).Set(0)
			continue
		}

		m.streamMessages.WithLabelValues(name).Set(float64(info.State.Msgs))
		m.streamBytes.WithLabelValues(name).Set(float64(info.State.Bytes))
		m.streamState.WithLabelValues(name).Set(1)
	}
}

// startPoller starts a background goroutine that polls stream stats
// periodically. Returns a cancel function to stop the poller.
func (m *jetstreamMetrics) startPoller(ctx context.Context, interval time.Duration) context.CancelFunc {
	if m == nil {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.updateStats(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	return cancel
}
