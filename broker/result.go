package broker

import (
	"context"
	"sync"

	"github.com/c360/signalbridge/errors"
)

// Result is the handle for one asynchronous unary call. The issuing
// operation returns immediately; callers block only when they Await. A
// result completes at most once, with either a value or an error.
type Result[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newResult[T any]() *Result[T] {
	return &Result[T]{done: make(chan struct{})}
}

func (r *Result[T]) complete(value T) {
	r.once.Do(func() {
		r.value = value
		close(r.done)
	})
}

func (r *Result[T]) fail(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Await blocks until the call completes or the context is done. A context
// error does not cancel the underlying call; use the call's own context for
// that.
func (r *Result[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, errors.WrapTransient(ctx.Err(), "broker", "Await", "wait for result")
	}
}

// Done returns a channel closed when the result is available.
func (r *Result[T]) Done() <-chan struct{} { return r.done }
