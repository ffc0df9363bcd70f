package health

import (
	"encoding/json"
	"net/http"
)

// Handler returns an HTTP handler serving the monitor's aggregate status as
// JSON. Responds 200 when healthy or degraded, 503 when unhealthy, so load
// balancers only evict on hard failure.
func Handler(monitor *Monitor, systemName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		aggregate := monitor.AggregateHealth(systemName)

		w.Header().Set("Content-Type", "application/json")
		if aggregate.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		if err := json.NewEncoder(w).Encode(aggregate); err != nil {
			http.Error(w, "encode health status", http.StatusInternalServerError)
		}
	})
}
