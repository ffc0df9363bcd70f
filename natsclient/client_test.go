package natsclient

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestNewClientAppliesOptions(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithMaxReconnects(3),
		WithReconnectWait(500*time.Millisecond),
		WithCircuitBreakerThreshold(2),
		WithName("bridge-test"),
		WithLogger(slog.Default()),
	)
	require.NoError(t, err)

	assert.Equal(t, 3, client.maxReconnects)
	assert.Equal(t, 500*time.Millisecond, client.reconnectWait)
	assert.Equal(t, int32(2), client.circuitThreshold)
	assert.Equal(t, "bridge-test", client.clientName)
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	client, err := NewClient("nats://invalid:4222")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		client.recordFailure()
	}
	assert.NotEqual(t, StatusCircuitOpen, client.Status())

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, int32(5), client.Failures())
}

func TestCircuitBreakerGrowsBackoff(t *testing.T) {
	client, err := NewClient("nats://invalid:4222",
		WithCircuitBreakerThreshold(1),
		WithMaxBackoff(4*time.Second),
	)
	require.NoError(t, err)

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, 2*time.Second, client.Backoff())

	// Failures while open keep growing the backoff up to the cap.
	client.recordFailure()
	assert.Equal(t, 4*time.Second, client.Backoff())
	client.recordFailure()
	assert.Equal(t, 4*time.Second, client.Backoff())
}

func TestCircuitBreakerReset(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.resetCircuit()
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, int32(0), client.Failures())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestConnectFailsFastWhenCircuitOpen(t *testing.T) {
	client, err := NewClient("nats://invalid:4222", WithCircuitBreakerThreshold(1))
	require.NoError(t, err)

	client.recordFailure()
	require.Equal(t, StatusCircuitOpen, client.Status())

	err = client.Connect(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestPublishNotConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	err = client.Publish(context.Background(), "signals.vehicle.speed", []byte(`{}`))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSubscribeNotConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	err = client.Subscribe(context.Background(), "signals.requests.>", func(context.Context, []byte) {})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestRTTNotConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestWaitForConnectionTimeout(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = client.WaitForConnection(ctx)
	assert.Error(t, err)
}

func TestConnectionOptionsIncludeAuth(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithCredentials("bridge", "secret"),
		WithToken("tok"),
		WithName("signalbridge"),
	)
	require.NoError(t, err)

	// One option each for auth, token and name on top of the base set.
	base, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	assert.Len(t, client.ConnectionOptions(), len(base.ConnectionOptions())+3)
}

func TestCloseIsIdempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Close(ctx))
	require.NoError(t, client.Close(ctx))
	assert.Equal(t, StatusDisconnected, client.Status())
}

func TestConnectionStatusString(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(99).String())
}
