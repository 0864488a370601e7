package event

import (
	"sync"
	"sync/atomic"

	"github.com/vnykmshr/streamflow/pkg/async/execution"
	"github.com/vnykmshr/streamflow/pkg/async/future"
)

// Off releases a subscription. Calling it more than once is a no-op.
type Off func()

type subscription[T any] struct {
	id     uint64
	fn     func(T)
	once   bool
	active atomic.Bool
}

// Signal is a typed event with any number of subscribers. The zero value is
// ready to use. Handlers registered with On run synchronously inside Emit, in
// registration order.
type Signal[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []*subscription[T]
}

// On subscribes fn and returns the handle that releases it.
func (s *Signal[T]) On(fn func(T)) Off {
	return s.subscribe(fn, false)
}

// OnIn subscribes fn for delivery on ectx. A delivery that is still queued
// when the subscription is released does not run.
func (s *Signal[T]) OnIn(ectx execution.Context, fn func(T)) Off {
	var sub *subscription[T]
	sub = s.add(func(v T) {
		ectx.Execute(func() {
			if sub.active.Load() {
				fn(v)
			}
		})
	}, false)
	return s.off(sub)
}

// Once subscribes fn for the next emission only.
func (s *Signal[T]) Once(fn func(T)) Off {
	return s.subscribe(fn, true)
}

func (s *Signal[T]) subscribe(fn func(T), once bool) Off {
	return s.off(s.add(fn, once))
}

func (s *Signal[T]) add(fn func(T), once bool) *subscription[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sub := &subscription[T]{id: s.nextID, fn: fn, once: once}
	sub.active.Store(true)
	s.subs = append(s.subs, sub)
	return sub
}

func (s *Signal[T]) off(sub *subscription[T]) Off {
	return func() {
		if sub.active.CompareAndSwap(true, false) {
			s.remove(sub.id)
		}
	}
}

func (s *Signal[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers v to a snapshot of the current subscribers. Subscribers
// released while Emit is running are skipped.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	if len(s.subs) == 0 {
		s.mu.Unlock()
		return
	}
	snapshot := make([]*subscription[T], len(s.subs))
	copy(snapshot, s.subs)
	s.mu.Unlock()

	for _, sub := range snapshot {
		if sub.once {
			if !sub.active.CompareAndSwap(true, false) {
				continue
			}
			s.remove(sub.id)
		} else if !sub.active.Load() {
			continue
		}
		sub.fn(v)
	}
}

// Len returns the number of active subscribers.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Next returns a future completed with the next value emitted on s.
func Next[T any](s *Signal[T]) *future.Future[T] {
	p := future.NewPromise[T]()
	s.Once(func(v T) { p.Success(v) })
	return p.Future()
}
