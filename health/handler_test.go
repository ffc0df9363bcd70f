package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_RegisterAndPoll(t *testing.T) {
	monitor := NewMonitor()

	healthy := true
	monitor.Register("broker", func() Status {
		if healthy {
			return NewHealthy("broker", "connected")
		}
		return NewUnhealthy("broker", "connection lost")
	})

	monitor.Poll()
	status, ok := monitor.Get("broker")
	require.True(t, ok)
	assert.True(t, status.IsHealthy())

	healthy = false
	monitor.Poll()
	status, ok = monitor.Get("broker")
	require.True(t, ok)
	assert.True(t, status.IsUnhealthy())

	// Remove drops the check as well as the status.
	monitor.Remove("broker")
	monitor.Poll()
	_, ok = monitor.Get("broker")
	assert.False(t, ok)
}

func TestHandler(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("broker", "connected")
	monitor.UpdateHealthy("nats", "connected")

	handler := Handler(monitor, "signalbridge")

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)

	var status Status
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&status))
	assert.Equal(t, "signalbridge", status.Component)
	assert.True(t, status.Healthy)
	assert.Len(t, status.SubStatuses, 2)
}

func TestHandlerUnhealthy(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateUnhealthy("broker", "connection lost")

	recorder := httptest.NewRecorder()
	Handler(monitor, "signalbridge").ServeHTTP(
		recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestHandlerDegradedStillServing(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("broker", "connected")
	monitor.UpdateDegraded("nats", "reconnecting")

	recorder := httptest.NewRecorder()
	Handler(monitor, "signalbridge").ServeHTTP(
		recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
}
