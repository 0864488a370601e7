package memory

import (
	"sync"

	"github.com/vnykmshr/streamflow/pkg/async/execution"
	"github.com/vnykmshr/streamflow/pkg/async/future"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// SinkConfig holds configuration for a Sink.
type SinkConfig struct {
	// Context, when set, settles WriteBatch and Close futures from a task on
	// that context instead of before returning.
	Context execution.Context
}

// Sink records every batch written to it.
type Sink[E any] struct {
	config SinkConfig

	mu       sync.Mutex
	batches  [][]E
	failNext error
	closeErr error
	closed   bool
}

// NewSink creates a Sink that completes writes immediately.
func NewSink[E any]() *Sink[E] {
	return NewSinkWithConfig[E](SinkConfig{})
}

// NewSinkWithConfig creates a Sink.
func NewSinkWithConfig[E any](config SinkConfig) *Sink[E] {
	return &Sink[E]{config: config}
}

// Init implements stream.Sink.
func (s *Sink[E]) Init() {}

// WriteBatch implements stream.Sink.
func (s *Sink[E]) WriteBatch(chunks []*buffer.Slice[E]) *future.Future[future.Void] {
	return s.settle(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if err := s.failNext; err != nil {
			s.failNext = nil
			return err
		}
		var batch []E
		for _, c := range chunks {
			batch = append(batch, c.Elements()...)
		}
		s.batches = append(s.batches, batch)
		return nil
	})
}

// Close implements stream.Sink.
func (s *Sink[E]) Close() *future.Future[future.Void] {
	return s.settle(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.closeErr != nil {
			return s.closeErr
		}
		s.closed = true
		return nil
	})
}

func (s *Sink[E]) settle(fn func() error) *future.Future[future.Void] {
	run := func() (future.Void, error) { return future.Void{}, fn() }
	if s.config.Context != nil {
		return future.On(s.config.Context, run)
	}
	v, err := run()
	if err != nil {
		return future.Failed[future.Void](err)
	}
	return future.Succeeded(v)
}

// FailNext makes the next WriteBatch fail with err without recording it.
func (s *Sink[E]) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// FailClose makes Close fail with err.
func (s *Sink[E]) FailClose(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeErr = err
}

// Batches returns a copy of the recorded batches.
func (s *Sink[E]) Batches() [][]E {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]E, len(s.batches))
	copy(out, s.batches)
	return out
}

// Elements returns every recorded element in write order.
func (s *Sink[E]) Elements() []E {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []E
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

// Closed reports whether Close succeeded.
func (s *Sink[E]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ stream.Sink[*buffer.Slice[int]] = (*Sink[int])(nil)
