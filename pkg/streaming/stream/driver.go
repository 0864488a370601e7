package stream

import (
	"github.com/vnykmshr/streamflow/pkg/async/future"
	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
)

// Pusher is handed to a Source in Init. It is the only way a source driver
// delivers data into its Readable.
type Pusher[C any] interface {
	// Push appends a chunk to the readable's buffer. It returns false once
	// the buffer is at or above the high-water mark; the driver should stop
	// producing until its next RequestRead.
	Push(chunk C) bool

	// End marks the end of the data. Later pushes are ignored.
	End()

	// Fail reports a source failure. It surfaces as the readable's Error event.
	Fail(err error)
}

// Source is the driver contract behind a Readable.
//
// Init is called once, on the readable's execution context, before the first
// RequestRead. RequestRead asks for roughly size units; the driver pushes
// what it has, possibly asynchronously, and may push less or more.
type Source[C any] interface {
	Init(p Pusher[C])
	RequestRead(size int)
}

// Sink is the driver contract behind a Writable.
//
// WriteBatch is never called again before the future of the previous call
// settles. Close is called once, after every batch has completed.
type Sink[C any] interface {
	Init()
	WriteBatch(chunks []C) *future.Future[future.Void]
	Close() *future.Future[future.Void]
}

// SourceBase can be embedded by source drivers. It stores the pusher passed
// to Init and panics on RequestRead.
type SourceBase[C any] struct {
	pusher Pusher[C]
}

// Init stores p.
func (b *SourceBase[C]) Init(p Pusher[C]) {
	b.pusher = p
}

// Pusher returns the pusher stored by Init.
func (b *SourceBase[C]) Pusher() Pusher[C] {
	return b.pusher
}

// RequestRead must be implemented by the embedding driver.
func (b *SourceBase[C]) RequestRead(int) {
	panic(sferrors.NotImplemented("Source.RequestRead"))
}

// SinkBase can be embedded by sink drivers. Init is a no-op; WriteBatch and
// Close panic until overridden.
type SinkBase[C any] struct{}

// Init does nothing.
func (SinkBase[C]) Init() {}

// WriteBatch must be implemented by the embedding driver.
func (SinkBase[C]) WriteBatch([]C) *future.Future[future.Void] {
	panic(sferrors.NotImplemented("Sink.WriteBatch"))
}

// Close must be implemented by the embedding driver.
func (SinkBase[C]) Close() *future.Future[future.Void] {
	panic(sferrors.NotImplemented("Sink.Close"))
}
