package iox

import (
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/streamflow/pkg/async/execution"
	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// ReaderConfig holds configuration for a ReaderSource.
type ReaderConfig struct {
	// ChunkSize is the size of each read from the underlying reader.
	// Default: 32KB
	ChunkSize int

	// Logger receives read lifecycle logs. Default: zerolog.Nop().
	Logger zerolog.Logger
}

// DefaultReaderConfig returns a default configuration.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		ChunkSize: 32 * 1024,
		Logger:    zerolog.Nop(),
	}
}

// ReaderSource is a byte source backed by an io.Reader.
//
// Reads block, so they happen on a background goroutine that starts with the
// first RequestRead. Every chunk is pushed through the readable's execution
// context with Sync. When a push reports backpressure the goroutine parks
// until the next RequestRead. The goroutine exits at EOF, on a read error,
// or when the execution context has been closed.
type ReaderSource struct {
	stream.SourceBase[*buffer.Bytes]

	ectx   execution.Context
	reader io.Reader
	config ReaderConfig

	mu      sync.Mutex
	started bool
	wake    chan struct{}
	stop    chan struct{}
	stopped sync.Once
	done    chan struct{}
}

// NewReaderSource creates a source reading from r. ectx must be the
// execution context of the readable the source is attached to.
func NewReaderSource(ectx execution.Context, r io.Reader) (*ReaderSource, error) {
	return NewReaderSourceWithConfig(ectx, r, DefaultReaderConfig())
}

// NewReaderSourceWithConfig creates a source reading from r.
func NewReaderSourceWithConfig(ectx execution.Context, r io.Reader, config ReaderConfig) (*ReaderSource, error) {
	if err := validation.ValidateNotNil("iox", "Context", ectx); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil("iox", "Reader", r); err != nil {
		return nil, err
	}
	if config.ChunkSize == 0 {
		config.ChunkSize = DefaultReaderConfig().ChunkSize
	}
	if err := validation.ValidatePositive("iox", "ChunkSize", config.ChunkSize); err != nil {
		return nil, err
	}

	return &ReaderSource{
		ectx:   ectx,
		reader: r,
		config: config,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// RequestRead implements stream.Source.
func (s *ReaderSource) RequestRead(int) {
	s.mu.Lock()
	if !s.started {
		s.started = true
		s.mu.Unlock()
		go s.readLoop()
		return
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop makes a parked read goroutine exit without ending the stream. A read
// already blocked in the underlying reader finishes first.
func (s *ReaderSource) Stop() {
	s.stopped.Do(func() { close(s.stop) })
}

// Done returns a channel closed when the read goroutine has exited. It is
// never closed if no read was requested.
func (s *ReaderSource) Done() <-chan struct{} {
	return s.done
}

func (s *ReaderSource) readLoop() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		buf := make([]byte, s.config.ChunkSize)
		n, err := s.reader.Read(buf)

		if n > 0 {
			more, ok := s.push(buffer.NewBytes(buf[:n]))
			if !ok {
				s.config.Logger.Debug().Msg("execution context closed, reader stopped")
				return
			}
			if !more {
				select {
				case <-s.wake:
				case <-s.stop:
					return
				}
			}
		}

		if errors.Is(err, io.EOF) {
			s.deliver(func(p stream.Pusher[*buffer.Bytes]) { p.End() })
			return
		}
		if err != nil {
			s.config.Logger.Error().Err(err).Msg("read failed")
			s.deliver(func(p stream.Pusher[*buffer.Bytes]) {
				p.Fail(sferrors.DriverRead("iox.Read", err))
			})
			return
		}
	}
}

// push delivers one chunk. ok is false if the context no longer runs tasks.
// A wake left by a RequestRead that arrived while reading is dropped before
// the push; only requests the push itself causes may end the next park.
func (s *ReaderSource) push(chunk *buffer.Bytes) (more, ok bool) {
	ok = s.deliver(func(p stream.Pusher[*buffer.Bytes]) {
		select {
		case <-s.wake:
		default:
		}
		more = p.Push(chunk)
	})
	return more, ok
}

func (s *ReaderSource) deliver(fn func(stream.Pusher[*buffer.Bytes])) bool {
	ran := false
	s.ectx.Sync(func() {
		ran = true
		fn(s.Pusher())
	})
	return ran
}

var _ stream.Source[*buffer.Bytes] = (*ReaderSource)(nil)
