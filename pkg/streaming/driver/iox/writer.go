package iox

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/streamflow/pkg/async/future"
	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/metrics"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// Stats holds statistics about a WriterSink.
type Stats struct {
	// BytesWritten is the total number of bytes written.
	BytesWritten int64

	// BatchCount is the total number of batches written.
	BatchCount int64

	// RetryCount is the total number of retried writes.
	RetryCount int64

	// ErrorCount is the total number of batches that failed after retries.
	ErrorCount int64

	// AverageWriteTime is the average time per batch.
	AverageWriteTime time.Duration

	// TotalWriteTime is the total time spent writing.
	TotalWriteTime time.Duration

	// LastWriteTime is the timestamp of the last batch.
	LastWriteTime time.Time
}

// WriterConfig holds configuration options for a WriterSink.
type WriterConfig struct {
	// MaxRetries is the number of times to retry a failed or short write.
	// Default: 3
	MaxRetries int

	// RetryDelay is the delay between retries.
	// Default: 100ms
	RetryDelay time.Duration

	// CloseUnderlying closes the writer on Close if it implements io.Closer.
	// Default: true
	CloseUnderlying bool

	// OnError is called when a batch fails after all retries.
	OnError func(error)

	// OnFlush is called after each batch.
	OnFlush func(bytesWritten int, duration time.Duration)

	// Logger receives write failures. Default: zerolog.Nop().
	Logger zerolog.Logger

	// Metrics counts retries under the "iox" driver label. Nil disables collection.
	Metrics *metrics.Registry
}

// DefaultWriterConfig returns a default configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		MaxRetries:      3,
		RetryDelay:      100 * time.Millisecond,
		CloseUnderlying: true,
		Logger:          zerolog.Nop(),
	}
}

// WriterSink is a byte sink backed by an io.Writer. Each batch is joined and
// written on its own goroutine, so a slow writer never blocks the writable's
// execution context.
type WriterSink struct {
	underlying io.Writer
	config     WriterConfig

	closed int32 // atomic

	stats   Stats
	statsMu sync.RWMutex
}

// NewWriterSink creates a sink writing to w with default configuration.
func NewWriterSink(w io.Writer) (*WriterSink, error) {
	return NewWriterSinkWithConfig(w, DefaultWriterConfig())
}

// NewWriterSinkWithConfig creates a sink writing to w.
func NewWriterSinkWithConfig(w io.Writer, config WriterConfig) (*WriterSink, error) {
	if err := validation.ValidateNotNil("iox", "Writer", w); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("iox", "MaxRetries", config.MaxRetries); err != nil {
		return nil, err
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultWriterConfig().RetryDelay
	}

	return &WriterSink{
		underlying: w,
		config:     config,
	}, nil
}

// Init implements stream.Sink.
func (s *WriterSink) Init() {}

// WriteBatch implements stream.Sink.
func (s *WriterSink) WriteBatch(chunks []*buffer.Bytes) *future.Future[future.Void] {
	if s.IsClosed() {
		return future.Failed[future.Void](sferrors.ErrClosed)
	}

	size := 0
	for _, c := range chunks {
		size += c.Len()
	}
	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c.Elements()...)
	}

	return future.Async(func() (future.Void, error) {
		return future.Void{}, s.flush(data)
	})
}

// Close implements stream.Sink.
func (s *WriterSink) Close() *future.Future[future.Void] {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return future.Succeeded(future.Void{})
	}

	closer, ok := s.underlying.(io.Closer)
	if !ok || !s.config.CloseUnderlying {
		return future.Succeeded(future.Void{})
	}
	return future.Async(func() (future.Void, error) {
		return future.Void{}, closer.Close()
	})
}

// IsClosed returns true once Close has been called.
func (s *WriterSink) IsClosed() bool {
	return atomic.LoadInt32(&s.closed) != 0
}

// Stats returns statistics about the sink's writes.
func (s *WriterSink) Stats() Stats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	stats := s.stats
	if stats.BatchCount > 0 {
		stats.AverageWriteTime = time.Duration(int64(stats.TotalWriteTime) / stats.BatchCount)
	}
	return stats
}

func (s *WriterSink) flush(data []byte) error {
	startTime := time.Now()
	bytesWritten, err := s.writeWithRetries(data)
	duration := time.Since(startTime)

	s.updateStats(func(st *Stats) {
		st.BatchCount++
		st.BytesWritten += int64(bytesWritten)
		st.TotalWriteTime += duration
		st.LastWriteTime = time.Now()
		if err != nil {
			st.ErrorCount++
		}
	})

	if s.config.OnFlush != nil {
		s.config.OnFlush(bytesWritten, duration)
	}

	if err != nil {
		s.config.Logger.Error().Err(err).Int("bytes_written", bytesWritten).Int("bytes", len(data)).Msg("batch write failed")
		if s.config.OnError != nil {
			s.config.OnError(err)
		}
	}

	return err
}

// writeWithRetries writes data with retry logic. Short writes resume from
// where the previous attempt stopped.
func (s *WriterSink) writeWithRetries(data []byte) (int, error) {
	var totalWritten int
	var lastErr error

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			s.updateStats(func(st *Stats) { st.RetryCount++ })
			s.config.Metrics.RecordDriverRetry("iox")
			time.Sleep(s.config.RetryDelay)
		}

		written, err := s.underlying.Write(data[totalWritten:])
		totalWritten += written

		if err != nil {
			lastErr = err
			continue
		}

		if totalWritten >= len(data) {
			return totalWritten, nil
		}
		lastErr = io.ErrShortWrite
	}

	return totalWritten, lastErr
}

// updateStats safely updates statistics.
func (s *WriterSink) updateStats(updater func(*Stats)) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	updater(&s.stats)
}

var _ stream.Sink[*buffer.Bytes] = (*WriterSink)(nil)
