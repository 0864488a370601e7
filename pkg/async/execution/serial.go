package execution

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
)

// SerialConfig holds configuration for a Serial context.
type SerialConfig struct {
	// Name identifies the context in logs.
	Name string

	// Logger receives recovered task panics. Default: zerolog.Nop().
	Logger zerolog.Logger

	// OnPanic is called with the recovered value of a non-fatal task panic.
	OnPanic func(recovered interface{})
}

// Serial is a Context backed by a single goroutine draining an unbounded
// FIFO queue. It behaves like an actor: tasks run to completion one at a time.
type Serial struct {
	config SerialConfig

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}

	executed int64 // atomic
}

// NewSerial creates and starts a Serial context with default configuration.
func NewSerial(name string) *Serial {
	return NewSerialWithConfig(SerialConfig{Name: name, Logger: zerolog.Nop()})
}

// NewSerialWithConfig creates and starts a Serial context.
func NewSerialWithConfig(config SerialConfig) *Serial {
	s := &Serial{
		config: config,
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	go s.run()

	return s
}

// Execute implements Context.Execute. Tasks submitted after Close are dropped.
func (s *Serial) Execute(task func()) {
	if !s.enqueue(task) {
		s.config.Logger.Warn().Str("context", s.config.Name).Msg("task submitted to closed execution context dropped")
	}
}

// Sync implements Context.Sync. It returns without running the task if the
// context is closed.
func (s *Serial) Sync(task func()) {
	finished := make(chan struct{})
	ok := s.enqueue(func() {
		defer close(finished)
		task()
	})
	if ok {
		<-finished
	}
}

// Close stops accepting tasks, lets queued tasks finish, and returns a channel
// that is closed once the worker goroutine has exited.
func (s *Serial) Close() <-chan struct{} {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.cond.Broadcast()
	}
	s.mu.Unlock()
	return s.done
}

// Pending returns the number of queued tasks not yet started.
func (s *Serial) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Executed returns the number of tasks started so far.
func (s *Serial) Executed() int64 {
	return atomic.LoadInt64(&s.executed)
}

func (s *Serial) enqueue(task func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.queue = append(s.queue, task)
	s.cond.Signal()
	return true
}

// run is the worker loop.
func (s *Serial) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.executeTask(task)
	}
}

// executeTask runs one task, keeping the loop alive across ordinary panics.
func (s *Serial) executeTask(task func()) {
	atomic.AddInt64(&s.executed, 1)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if sferrors.IsFatal(r) {
			panic(r)
		}
		s.config.Logger.Error().
			Str("context", s.config.Name).
			Str("panic", fmt.Sprint(r)).
			Bytes("stack", debug.Stack()).
			Msg("execution context task panicked")
		if s.config.OnPanic != nil {
			s.config.OnPanic(r)
		}
	}()

	task()
}

var _ Context = (*Serial)(nil)
