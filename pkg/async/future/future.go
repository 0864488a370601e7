package future

import (
	"context"
	"sync"

	"github.com/vnykmshr/streamflow/pkg/async/execution"
)

// Void is the value type of futures that only signal completion.
type Void = struct{}

// Future is a read-only handle to a value that becomes available later.
// It completes exactly once, with either a value or an error.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	value     T
	err       error
	callbacks []func(T, error)
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Succeeded returns a future already completed with v.
func Succeeded[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.complete(v, nil)
	return f
}

// Failed returns a future already failed with err.
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}

// Async runs fn on a new goroutine and completes the returned future with its result.
func Async[T any](fn func() (T, error)) *Future[T] {
	p := NewPromise[T]()
	go func() {
		p.Complete(fn())
	}()
	return p.Future()
}

// On runs fn as a task on ectx and completes the returned future with its result.
func On[T any](ectx execution.Context, fn func() (T, error)) *Future[T] {
	p := NewPromise[T]()
	ectx.Execute(func() {
		p.Complete(fn())
	})
	return p.Future()
}

func (f *Future[T]) complete(v T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.value = v
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

// OnComplete registers cb to run once the future settles. If it already has,
// cb runs immediately on the calling goroutine; otherwise it runs on the
// goroutine that completes the future.
func (f *Future[T]) OnComplete(cb func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	cb(v, err)
}

// OnSuccess registers cb for successful completion.
func (f *Future[T]) OnSuccess(cb func(T)) {
	f.OnComplete(func(v T, err error) {
		if err == nil {
			cb(v)
		}
	})
}

// OnFailure registers cb for failed completion.
func (f *Future[T]) OnFailure(cb func(error)) {
	f.OnComplete(func(_ T, err error) {
		if err != nil {
			cb(err)
		}
	})
}

// Done returns a channel closed when the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsCompleted reports whether the future has settled.
func (f *Future[T]) IsCompleted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Map returns a future completed with fn applied to f's value. Failures pass through.
func Map[T, U any](f *Future[T], fn func(T) U) *Future[U] {
	p := NewPromise[U]()
	f.OnComplete(func(v T, err error) {
		if err != nil {
			p.Fail(err)
			return
		}
		p.Success(fn(v))
	})
	return p.Future()
}

// FlatMap chains a future-returning step after f. Failures pass through.
func FlatMap[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	p := NewPromise[U]()
	f.OnComplete(func(v T, err error) {
		if err != nil {
			p.Fail(err)
			return
		}
		p.CompleteWith(fn(v))
	})
	return p.Future()
}
