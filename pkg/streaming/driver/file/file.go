package file

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/streamflow/pkg/async/execution"
	"github.com/vnykmshr/streamflow/pkg/async/future"
	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
	"github.com/vnykmshr/streamflow/pkg/streaming/driver/iox"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// Config holds configuration for Open.
type Config struct {
	// Perm is used when Create makes a new file.
	// Default: 0644
	Perm os.FileMode

	// Logger receives open and close logs. Default: zerolog.Nop().
	Logger zerolog.Logger
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Perm:   0o644,
		Logger: zerolog.Nop(),
	}
}

// File is an open file that hands out byte streams. Streams created from a
// File run on the execution context it was opened with.
type File struct {
	ectx   execution.Context
	f      *os.File
	mode   Mode
	config Config

	mu      sync.Mutex
	sources []*iox.ReaderSource

	closeOnce sync.Once
	closeErr  error
}

// Open opens path with mode. The open itself happens off the caller's
// goroutine; failures complete the future with a driver open error.
func Open(ectx execution.Context, path string, mode Mode) *future.Future[*File] {
	return OpenWithConfig(ectx, path, mode, DefaultConfig())
}

// OpenWithConfig is Open with explicit configuration.
func OpenWithConfig(ectx execution.Context, path string, mode Mode, config Config) *future.Future[*File] {
	if err := validateOpen(ectx, path, mode); err != nil {
		return future.Failed[*File](sferrors.DriverOpen("file.Open", err))
	}
	if config.Perm == 0 {
		config.Perm = DefaultConfig().Perm
	}

	return future.Async(func() (*File, error) {
		f, err := os.OpenFile(path, mode.flags(), config.Perm)
		if err != nil {
			config.Logger.Error().Err(err).Str("path", path).Stringer("mode", mode).Msg("open failed")
			return nil, sferrors.DriverOpen("file.Open", err)
		}
		config.Logger.Debug().Str("path", path).Stringer("mode", mode).Msg("file opened")
		return &File{ectx: ectx, f: f, mode: mode, config: config}, nil
	})
}

func validateOpen(ectx execution.Context, path string, mode Mode) error {
	if err := validation.ValidateNotNil("file", "Context", ectx); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty("file", "Path", path); err != nil {
		return err
	}
	if !mode.CanRead() && !mode.CanWrite() {
		return sferrors.NewValidationError("file", "Mode", mode, "must allow reading or writing").
			WithHint("include ReadOnly, WriteOnly or Append")
	}
	return nil
}

// Name returns the path the file was opened with.
func (f *File) Name() string { return f.f.Name() }

// Mode returns the mode the file was opened with.
func (f *File) Mode() Mode { return f.mode }

// ReadStream returns a readable over the file contents from the current offset.
func (f *File) ReadStream() (*stream.BytesReadable, error) {
	config := stream.DefaultReadableConfig()
	config.HighWaterMark = stream.DefaultBytesHighWaterMark
	return f.ReadStreamWithConfig(config, iox.DefaultReaderConfig())
}

// ReadStreamWithConfig returns a readable over the file contents.
func (f *File) ReadStreamWithConfig(config stream.ReadableConfig, reader iox.ReaderConfig) (*stream.BytesReadable, error) {
	if !f.mode.CanRead() {
		return nil, fmt.Errorf("file %s: %w", f.Name(), sferrors.ErrInvalidConfiguration)
	}
	src, err := iox.NewReaderSourceWithConfig(f.ectx, f.f, reader)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sources = append(f.sources, src)
	f.mu.Unlock()

	if config.Name == "" {
		config.Name = f.Name()
	}
	return stream.NewSliceReadableWithConfig[byte](f.ectx, src, config)
}

// WriteStream returns a writable appending to the file. Ending the writable
// syncs and closes the file.
func (f *File) WriteStream() (*stream.BytesWritable, error) {
	return f.WriteStreamWithConfig(stream.DefaultWritableConfig(), iox.DefaultWriterConfig())
}

// WriteStreamWithConfig returns a writable appending to the file.
func (f *File) WriteStreamWithConfig(config stream.WritableConfig, writer iox.WriterConfig) (*stream.BytesWritable, error) {
	if !f.mode.CanWrite() {
		return nil, fmt.Errorf("file %s: %w", f.Name(), sferrors.ErrInvalidConfiguration)
	}
	writer.CloseUnderlying = true
	sink, err := iox.NewWriterSinkWithConfig(fileWriter{f}, writer)
	if err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = f.Name()
	}
	return stream.NewWritableWithConfig[byte](f.ectx, stream.Sink[*buffer.Bytes](sink), config)
}

// Close syncs written data and closes the file. Read streams still parked
// on backpressure are stopped without ending. Repeated calls return the
// result of the first.
func (f *File) Close() *future.Future[future.Void] {
	return future.Async(func() (future.Void, error) {
		return future.Void{}, f.close()
	})
}

func (f *File) close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		for _, src := range f.sources {
			src.Stop()
		}
		f.mu.Unlock()

		if f.mode.CanWrite() {
			if err := f.f.Sync(); err != nil {
				f.closeErr = sferrors.DriverClose("file.Sync", err)
			}
		}
		if err := f.f.Close(); err != nil && f.closeErr == nil {
			f.closeErr = sferrors.DriverClose("file.Close", err)
		}
		f.config.Logger.Debug().Str("path", f.f.Name()).Err(f.closeErr).Msg("file closed")
	})
	return f.closeErr
}

// fileWriter routes the sink's Close through File.close.
type fileWriter struct {
	f *File
}

func (w fileWriter) Write(p []byte) (int, error) { return w.f.f.Write(p) }

func (w fileWriter) Close() error { return w.f.close() }
