package broker

import (
	"context"
	"sync"
)

// pendingCalls tracks the cancel functions of in-flight RPCs so that closing
// the facade releases every transport context. Each call owns its own
// context; the set only ties their lifetimes to the facade's.
type pendingCalls struct {
	mu      sync.Mutex
	next    uint64
	cancels map[uint64]context.CancelFunc
	closed  bool
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{cancels: make(map[uint64]context.CancelFunc)}
}

// add registers a cancel function and returns its handle. Returns false when
// the set is already closed; the caller must not dispatch the call.
func (p *pendingCalls) add(cancel context.CancelFunc) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, false
	}
	p.next++
	id := p.next
	p.cancels[id] = cancel
	return id, true
}

// remove drops a completed call from the set.
func (p *pendingCalls) remove(id uint64) {
	p.mu.Lock()
	delete(p.cancels, id)
	p.mu.Unlock()
}

// close cancels every in-flight call and rejects new ones.
func (p *pendingCalls) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	cancels := make([]context.CancelFunc, 0, len(p.cancels))
	for _, cancel := range p.cancels {
		cancels = append(cancels, cancel)
	}
	p.cancels = nil
	p.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// len reports the number of in-flight calls.
func (p *pendingCalls) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cancels)
}
