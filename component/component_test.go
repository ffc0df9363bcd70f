package component

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "initialized", StateInitialized.String())
	assert.Equal(t, "started", StateStarted.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestBaseLifecycle(t *testing.T) {
	base := NewBase("bridge")
	assert.Equal(t, "bridge", base.Name())
	assert.Equal(t, StateCreated, base.State())

	base.SetState(StateInitialized)
	assert.Equal(t, StateInitialized, base.State())
	assert.False(t, base.Health().Healthy)

	base.SetState(StateStarted)
	health := base.Health()
	assert.True(t, health.Healthy)
	assert.Equal(t, 0, health.ErrorCount)

	base.SetState(StateStopped)
	assert.False(t, base.Health().Healthy)
	assert.Equal(t, time.Duration(0), base.Health().Uptime)
}

func TestBaseRecordError(t *testing.T) {
	base := NewBase("bridge")
	base.SetState(StateStarted)

	base.RecordError(nil)
	assert.Equal(t, 0, base.Health().ErrorCount)

	base.RecordError(errors.New("broker unreachable"))
	base.RecordError(errors.New("decode failed"))

	health := base.Health()
	assert.Equal(t, 2, health.ErrorCount)
	assert.Equal(t, "decode failed", health.LastError)
	assert.True(t, health.Healthy, "errors alone do not mark a component unhealthy")
}
