package memory

import (
	"sync"

	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// Source pushes a fixed slice in chunks of at most ChunkSize elements and
// ends once the slice is exhausted.
//
// RequestRead pushes until the requested demand is met or the readable
// reports backpressure. A request that arrives while a previous one is still
// pushing (which happens when the readable reads synchronously inside Push)
// is folded into the running one.
type Source[E any] struct {
	stream.SourceBase[*buffer.Slice[E]]

	data      []E
	chunkSize int

	mu      sync.Mutex
	pos     int
	reading bool
	again   int
	ended   bool
}

// NewSource creates a source over data. A chunkSize below 1 pushes the
// whole slice as a single chunk.
func NewSource[E any](data []E, chunkSize int) *Source[E] {
	return &Source[E]{data: data, chunkSize: chunkSize}
}

// RequestRead implements stream.Source.
func (s *Source[E]) RequestRead(size int) {
	s.mu.Lock()
	if s.reading {
		if size > s.again {
			s.again = size
		}
		s.mu.Unlock()
		return
	}
	s.reading = true
	s.mu.Unlock()

	for {
		s.fill(size)

		s.mu.Lock()
		if s.again == 0 {
			s.reading = false
			s.mu.Unlock()
			return
		}
		size = s.again
		s.again = 0
		s.mu.Unlock()
	}
}

func (s *Source[E]) fill(size int) {
	p := s.Pusher()
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
			p.End()
			return
		}
		n := s.chunkSize
		if n <= 0 || n > len(s.data)-s.pos {
			n = len(s.data) - s.pos
		}
		chunk := buffer.NewSlice(append([]E(nil), s.data[s.pos:s.pos+n]...)...)
		s.pos += n
		last := s.pos >= len(s.data)
		s.mu.Unlock()

		ok := p.Push(chunk)
		pushed += n
		if last {
			continue
		}
		if !ok || pushed >= size {
			return
		}
	}
}

// Remaining returns the number of elements not yet pushed.
func (s *Source[E]) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data) - s.pos
}

// Ended reports whether the source has signalled the end.
func (s *Source[E]) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

var _ stream.Source[*buffer.Slice[int]] = (*Source[int])(nil)
