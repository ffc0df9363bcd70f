// Package component defines the lifecycle contract shared by SignalBridge
// components and a base type that tracks state, uptime, and error counts.
package component

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// State represents the current lifecycle state of a component
type State int

const (
	// StateCreated indicates component was created but not initialized
	StateCreated State = iota
	// StateInitialized indicates component was initialized but not started
	StateInitialized
	// StateStarted indicates component is running
	StateStarted
	// StateStopped indicates component was stopped
	StateStopped
	// StateFailed indicates component failed during lifecycle operation
	StateFailed
)

// String returns a string representation of the component state
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Component defines the lifecycle every component follows:
//   - Initialize() error                  // setup/create only, NO context
//   - Start(ctx context.Context) error    // start with context passed through
//   - Stop(timeout time.Duration) error   // graceful shutdown within timeout
//
// Components never store the start context; it arrives as a parameter and
// its cancellation signals shutdown.
type Component interface {
	Name() string
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
	Health() HealthStatus
}

// HealthStatus is a point-in-time health snapshot of one component
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// Base tracks lifecycle state, start time, and error counts for a component.
// Embed it and delegate the bookkeeping.
type Base struct {
	name string

	mu        sync.RWMutex
	state     State
	startedAt time.Time
	lastError string

	errorCount atomic.Int64
}

// NewBase creates lifecycle bookkeeping for a named component
func NewBase(name string) *Base {
	return &Base{name: name, state: StateCreated}
}

// Name returns the component name
func (b *Base) Name() string { return b.name }

// State returns the current lifecycle state
func (b *Base) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// SetState transitions the component to a new lifecycle state
func (b *Base) SetState(state State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
	if state == StateStarted {
		b.startedAt = time.Now()
	}
}

// RecordError notes a component error for health reporting
func (b *Base) RecordError(err error) {
	if err == nil {
		return
	}
	b.errorCount.Add(1)
	b.mu.Lock()
	b.lastError = err.Error()
	b.mu.Unlock()
}

// Health returns a point-in-time health snapshot. A component is healthy
// when it is in the started state.
func (b *Base) Health() HealthStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var uptime time.Duration
	if b.state == StateStarted && !b.startedAt.IsZero() {
		uptime = time.Since(b.startedAt)
	}

	return HealthStatus{
		Healthy:    b.state == StateStarted,
		LastCheck:  time.Now(),
		ErrorCount: int(b.errorCount.Load()),
		LastError:  b.lastError,
		Uptime:     uptime,
	}
}
