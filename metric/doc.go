// Package metric provides Prometheus-based metrics collection and an HTTP
// server for SignalBridge monitoring.
//
// The package offers a centralized metrics registry managing both core
// platform metrics (component status, signal flow, broker and NATS
// connectivity) and component-specific metrics, plus an HTTP server exposing
// everything in Prometheus format.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("metrics server error: %v", err)
//	    }
//	}()
//	defer server.Stop()
//
//	core := registry.CoreMetrics()
//	core.RecordComponentStatus("bridge", 2) // running
//	core.RecordSignalReceived("bridge", "Vehicle.Speed")
//
// # Component-Specific Metrics
//
// Components register their own collectors under a per-component namespace;
// duplicate names within one component are rejected:
//
//	counter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Name: "routes_matched_total",
//	    Help: "Total updates matched to a route",
//	})
//	err := registry.RegisterCounter("bridge", "routes_matched", counter)
//
// The MetricsRegistrar interface covers all registration methods so
// components can take the registry as a narrow dependency and tests can
// substitute mocks.
//
// All core metrics use the namespace "signalbridge":
//   - signalbridge_component_status{component="..."}
//   - signalbridge_signals_received_total{component="...", path="..."}
//   - signalbridge_broker_connected
//   - signalbridge_nats_connected
//
// All registry operations are thread-safe; metric recording is lock-free.
package metric
