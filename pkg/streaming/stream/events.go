package stream

import (
	"github.com/google/uuid"

	"github.com/vnykmshr/streamflow/pkg/async/event"
	"github.com/vnykmshr/streamflow/pkg/async/future"
)

// Handle identifies a stream without referencing it.
type Handle struct {
	ID   uuid.UUID
	Name string
}

func newHandle(name string) Handle {
	return Handle{ID: uuid.New(), Name: name}
}

// String returns the name, or the ID when the stream is unnamed.
func (h Handle) String() string {
	if h.Name != "" {
		return h.Name
	}
	return h.ID.String()
}

// ReadableEvents are the signals a Readable emits.
type ReadableEvents[C any] struct {
	// Data carries every non-empty chunk returned by a read.
	Data event.Signal[C]

	// Readable fires after each push.
	Readable event.Signal[future.Void]

	// End fires once, when the source has no more data.
	End event.Signal[future.Void]

	// Error carries source failures and invalid unpipe requests.
	Error event.Signal[error]
}

// WritableEvents are the signals a Writable emits.
type WritableEvents struct {
	// Drain fires when the last queued flush completes.
	Drain event.Signal[future.Void]

	// Finish fires once the sink has been closed after End.
	Finish event.Signal[future.Void]

	// Pipe and Unpipe carry the handle of the readable being connected or released.
	Pipe   event.Signal[Handle]
	Unpipe event.Signal[Handle]

	// Error carries sink failures and errors forwarded from a piped readable.
	Error event.Signal[error]
}
