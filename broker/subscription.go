package broker

import (
	"context"
	"sync"

	"github.com/c360/signalbridge/signal"
)

// Subscription is the handle for one streaming subscribe call. Items and
// errors arrive on transport goroutines; handlers registered via OnItem and
// OnError are invoked from those goroutines and must be safe to run
// concurrently with the subscriber's own execution.
//
// Items that arrive before a handler is registered are buffered and replayed
// on registration, so registering after Subscribe returns loses nothing.
type Subscription struct {
	mu      sync.Mutex
	onItem  func(*signal.Reply)
	onError func(error)
	pending []*signal.Reply
	err     error
	cancel  context.CancelFunc
	stopped bool
}

func newSubscription(cancel context.CancelFunc) *Subscription {
	return &Subscription{cancel: cancel}
}

// OnItem registers the handler for streamed replies. Buffered items are
// delivered immediately, in arrival order.
func (s *Subscription) OnItem(handler func(*signal.Reply)) *Subscription {
	s.mu.Lock()
	s.onItem = handler
	replay := s.pending
	s.pending = nil
	stopped := s.stopped
	s.mu.Unlock()

	if handler != nil && !stopped {
		for _, item := range replay {
			handler(item)
		}
	}
	return s
}

// OnError registers the handler for the terminal stream error, if any. An
// error that arrived before registration is delivered immediately.
func (s *Subscription) OnError(handler func(error)) *Subscription {
	s.mu.Lock()
	s.onError = handler
	err := s.err
	s.err = nil
	stopped := s.stopped
	s.mu.Unlock()

	if handler != nil && err != nil && !stopped {
		handler(err)
	}
	return s
}

// Stop tears the subscription down, releasing the transport context. No
// handler is invoked after Stop returns.
func (s *Subscription) Stop() {
	s.mu.Lock()
	alreadyStopped := s.stopped
	s.stopped = true
	s.pending = nil
	s.err = nil
	cancel := s.cancel
	s.mu.Unlock()

	if !alreadyStopped && cancel != nil {
		cancel()
	}
}

func (s *Subscription) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	stopped := s.stopped
	s.cancel = cancel
	s.mu.Unlock()
	if stopped && cancel != nil {
		cancel()
	}
}

// dispatch delivers one streamed reply, buffering when no handler is
// registered yet.
func (s *Subscription) dispatch(item *signal.Reply) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	handler := s.onItem
	if handler == nil {
		s.pending = append(s.pending, item)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	handler(item)
}

// dispatchError delivers the terminal stream error and marks the
// subscription finished.
func (s *Subscription) dispatchError(err error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	handler := s.onError
	if handler == nil {
		s.err = err
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	handler(err)
}
