package stream

import (
	"sync"
	"testing"

	"github.com/vnykmshr/streamflow/internal/testutil"
	"github.com/vnykmshr/streamflow/pkg/async/execution"
	"github.com/vnykmshr/streamflow/pkg/async/future"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
)

func newSerial(t *testing.T) *execution.Serial {
	t.Helper()
	ectx := execution.NewSerial(t.Name())
	t.Cleanup(func() { <-ectx.Close() })
	return ectx
}

func await[T any](t *testing.T, f *future.Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	return f.Await(ctx)
}

func rangeInts(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// sliceSource pushes data in chunks of chunkSize until a push reports
// backpressure, and ends once the data is exhausted. perRequest > 0 caps the
// number of chunks pushed per RequestRead.
type sliceSource[E any] struct {
	SourceBase[*buffer.Slice[E]]

	data       []E
	chunkSize  int
	perRequest int

	mu       sync.Mutex
	pos      int
	reading  bool
	again    bool
	ended    bool
	requests []int
	results  []bool
}

func newSliceSource[E any](data []E, chunkSize int) *sliceSource[E] {
	return &sliceSource[E]{data: data, chunkSize: chunkSize}
}

func (s *sliceSource[E]) RequestRead(size int) {
	s.mu.Lock()
	s.requests = append(s.requests, size)
	if s.reading {
		s.again = true
		s.mu.Unlock()
		return
	}
	s.reading = true
	s.mu.Unlock()

	for {
		s.pushSome()

		s.mu.Lock()
		if !s.again {
			s.reading = false
			s.mu.Unlock()
			return
		}
		s.again = false
		s.mu.Unlock()
	}
}

func (s *sliceSource[E]) pushSome() {
	pushed := 0
	for {
		s.mu.Lock()
		if s.ended {
			s.mu.Unlock()
			return
		}
		if s.pos >= len(s.data) {
			s.ended = true
			s.mu.Unlock()
			s.Pusher().End()
			return
		}
		if s.perRequest > 0 && pushed >= s.perRequest {
			s.mu.Unlock()
			return
		}
		end := s.pos + s.chunkSize
		if end > len(s.data) {
			end = len(s.data)
		}
		chunk := buffer.NewSlice(append([]E(nil), s.data[s.pos:end]...)...)
		s.pos = end
		exhausted := s.pos >= len(s.data)
		s.mu.Unlock()

		ok := s.Pusher().Push(chunk)
		pushed++

		s.mu.Lock()
		s.results = append(s.results, ok)
		s.mu.Unlock()
		if !ok && !exhausted {
			return
		}
	}
}

func (s *sliceSource[E]) Requests() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.requests...)
}

func (s *sliceSource[E]) Results() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.results...)
}

// manualSource only records the pusher; tests drive it directly.
type manualSource[C any] struct {
	SourceBase[C]

	mu       sync.Mutex
	requests []int
}

func (s *manualSource[C]) RequestRead(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, size)
}

// sliceSink records batches. While held, WriteBatch futures stay pending
// until release.
type sliceSink[E any] struct {
	mu       sync.Mutex
	batches  [][]E
	failAt   int
	writeErr error
	closeErr error
	hold     bool
	held     []*future.Promise[future.Void]
	inited   bool
	closed   bool
}

func newSliceSink[E any]() *sliceSink[E] {
	return &sliceSink[E]{failAt: -1}
}

func (s *sliceSink[E]) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inited = true
}

func (s *sliceSink[E]) WriteBatch(chunks []*buffer.Slice[E]) *future.Future[future.Void] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAt == len(s.batches) {
		s.batches = append(s.batches, nil)
		return future.Failed[future.Void](s.writeErr)
	}
	var batch []E
	for _, c := range chunks {
		batch = append(batch, c.Elements()...)
	}
	s.batches = append(s.batches, batch)

	if s.hold {
		p := future.NewPromise[future.Void]()
		s.held = append(s.held, p)
		return p.Future()
	}
	return future.Succeeded(future.Void{})
}

func (s *sliceSink[E]) Close() *future.Future[future.Void] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr != nil {
		return future.Failed[future.Void](s.closeErr)
	}
	s.closed = true
	return future.Succeeded(future.Void{})
}

// release stops holding and completes every held batch.
func (s *sliceSink[E]) release() {
	s.mu.Lock()
	held := s.held
	s.held = nil
	s.hold = false
	s.mu.Unlock()

	for _, p := range held {
		p.Success(future.Void{})
	}
}

func (s *sliceSink[E]) Batches() [][]E {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]E(nil), s.batches...)
}

func (s *sliceSink[E]) Flat() []E {
	var out []E
	for _, b := range s.Batches() {
		out = append(out, b...)
	}
	return out
}

func (s *sliceSink[E]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *sliceSink[E]) HeldCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.held)
}
