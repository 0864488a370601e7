package stream

import (
	"github.com/rs/zerolog"

	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/metrics"
)

const (
	// DefaultHighWaterMark is the buffer threshold, in units, for element streams.
	DefaultHighWaterMark = 1024

	// DefaultBytesHighWaterMark is the buffer threshold for byte streams.
	DefaultBytesHighWaterMark = 16 * 1024
)

// ReadableConfig holds configuration for a Readable.
type ReadableConfig struct {
	// HighWaterMark is the number of buffered units at which Push starts
	// reporting backpressure. Must be positive.
	HighWaterMark int

	// Name labels the stream in logs and metrics. Default: the stream's UUID.
	Name string

	// Logger receives lifecycle and contract-violation logs. Default: zerolog.Nop().
	Logger zerolog.Logger

	// Metrics records stream activity. Nil disables collection.
	Metrics *metrics.Registry
}

// DefaultReadableConfig returns the default readable configuration.
func DefaultReadableConfig() ReadableConfig {
	return ReadableConfig{
		HighWaterMark: DefaultHighWaterMark,
		Logger:        zerolog.Nop(),
	}
}

func (c ReadableConfig) validate() error {
	return validation.ValidatePositive("stream", "HighWaterMark", c.HighWaterMark)
}

// WritableConfig holds configuration for a Writable.
type WritableConfig struct {
	// Name labels the stream in logs and metrics. Default: the stream's UUID.
	Name string

	// Logger receives lifecycle and failure logs. Default: zerolog.Nop().
	Logger zerolog.Logger

	// Metrics records stream activity. Nil disables collection.
	Metrics *metrics.Registry
}

// DefaultWritableConfig returns the default writable configuration.
func DefaultWritableConfig() WritableConfig {
	return WritableConfig{Logger: zerolog.Nop()}
}

// PipeConfig controls a pipe connection.
type PipeConfig struct {
	// End ends the writable when the readable ends.
	End bool

	// MaxQueueDepth pauses the readable while the writable has at least this
	// many flushes queued, and resumes it on the writable's next Drain.
	// Zero disables pipe backpressure.
	MaxQueueDepth int
}

// DefaultPipeConfig returns a configuration that ends the writable with the
// readable and applies no backpressure.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{End: true}
}

func (c PipeConfig) validate() error {
	return validation.ValidateNonNegative("stream", "MaxQueueDepth", c.MaxQueueDepth)
}
