package stream

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/streamflow/pkg/async/event"
	"github.com/vnykmshr/streamflow/pkg/async/execution"
	"github.com/vnykmshr/streamflow/pkg/async/future"
	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/metrics"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
)

// Readable buffers chunks pushed by a Source driver and hands them to
// consumers, either on demand (Read, ReadN) or as Data events while flowing.
//
// A Readable starts paused. Its buffer is bounded softly by the high-water
// mark: once the buffered length reaches it, Push reports backpressure and
// the driver waits for the next RequestRead, which every read issues while
// the buffer is below the mark.
//
// Data is emitted outside the readable's lock. Callers that read from more
// than one goroutine must do so inside tasks on the readable's execution
// context (Execute or Sync); that keeps Data in the order the chunks left
// the buffer.
type Readable[E any, C buffer.Buffer[E]] struct {
	handle  Handle
	ctx     execution.Context
	source  Source[C]
	factory buffer.Factory[C]
	hwm     int
	logger  zerolog.Logger
	metrics *metrics.Registry
	events  ReadableEvents[C]

	mu       sync.Mutex
	buffers  []C
	buffered int
	flow     event.Off
	ended    bool
	pipes    map[uuid.UUID]*pipeConn
}

// SliceReadable is a Readable of element slices.
type SliceReadable[E any] = Readable[E, *buffer.Slice[E]]

// BytesReadable is a Readable of byte chunks.
type BytesReadable = Readable[byte, *buffer.Bytes]

// TextReadable is a Readable of text chunks measured in runes.
type TextReadable = Readable[string, *buffer.Text]

// NewReadable creates a Readable with default configuration.
func NewReadable[E any, C buffer.Buffer[E]](ectx execution.Context, source Source[C], factory buffer.Factory[C]) (*Readable[E, C], error) {
	return NewReadableWithConfig[E](ectx, source, factory, DefaultReadableConfig())
}

// NewReadableWithConfig creates a Readable and schedules the driver's Init
// followed by an initial RequestRead of one high-water mark on ectx.
func NewReadableWithConfig[E any, C buffer.Buffer[E]](ectx execution.Context, source Source[C], factory buffer.Factory[C], config ReadableConfig) (*Readable[E, C], error) {
	if err := validation.ValidateNotNil("stream", "Context", ectx); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil("stream", "Source", source); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, sferrors.NewValidationError("stream", "Factory", nil, "cannot be nil").
			WithHint("pass a constructor for empty chunks, e.g. buffer.EmptySlice[E]")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	r := &Readable[E, C]{
		handle:  newHandle(config.Name),
		ctx:     ectx,
		source:  source,
		factory: factory,
		hwm:     config.HighWaterMark,
		metrics: config.Metrics,
		pipes:   make(map[uuid.UUID]*pipeConn),
	}
	r.logger = config.Logger.With().
		Str("stream", r.handle.String()).
		Str("side", "readable").
		Logger()

	ectx.Execute(func() {
		source.Init(pusher[E, C]{r: r})
		source.RequestRead(r.hwm)
	})

	return r, nil
}

// NewSliceReadable creates a Readable of *buffer.Slice[E] chunks.
func NewSliceReadable[E any](ectx execution.Context, source Source[*buffer.Slice[E]]) (*SliceReadable[E], error) {
	return NewReadable[E](ectx, source, buffer.EmptySlice[E])
}

// NewSliceReadableWithConfig creates a Readable of *buffer.Slice[E] chunks.
func NewSliceReadableWithConfig[E any](ectx execution.Context, source Source[*buffer.Slice[E]], config ReadableConfig) (*SliceReadable[E], error) {
	return NewReadableWithConfig[E](ectx, source, buffer.EmptySlice[E], config)
}

// NewBytesReadable creates a byte Readable with a 16 KiB high-water mark.
func NewBytesReadable(ectx execution.Context, source Source[*buffer.Bytes]) (*BytesReadable, error) {
	config := DefaultReadableConfig()
	config.HighWaterMark = DefaultBytesHighWaterMark
	return NewReadableWithConfig[byte](ectx, source, buffer.EmptyBytes, config)
}

// NewTextReadable creates a text Readable with default configuration.
func NewTextReadable(ectx execution.Context, source Source[*buffer.Text]) (*TextReadable, error) {
	return NewReadable[string](ectx, source, buffer.EmptyText)
}

// Handle returns the stream's identity.
func (r *Readable[E, C]) Handle() Handle { return r.handle }

// Events returns the readable's signals.
func (r *Readable[E, C]) Events() *ReadableEvents[C] { return &r.events }

// HighWaterMark returns the configured buffer threshold.
func (r *Readable[E, C]) HighWaterMark() int { return r.hwm }

// Buffered returns the number of units currently buffered.
func (r *Readable[E, C]) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffered
}

// Ended reports whether the source has signalled the end of its data.
func (r *Readable[E, C]) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

// Read returns everything buffered as one chunk, which may be empty. See the
// type documentation for reading from several goroutines.
func (r *Readable[E, C]) Read() C {
	r.mu.Lock()
	result := r.factory()
	for i, b := range r.buffers {
		b.DrainTo(result, buffer.All)
		var zero C
		r.buffers[i] = zero
	}
	r.buffers = r.buffers[:0]
	r.buffered = 0
	refill := r.refillLocked()
	r.mu.Unlock()

	r.afterRead(result, refill)
	return result
}

// ReadN returns exactly n units from the front of the buffer. If fewer than
// n units are buffered it returns false and leaves the buffer untouched.
// A negative n reads everything.
func (r *Readable[E, C]) ReadN(n int) (C, bool) {
	if n < 0 {
		return r.Read(), true
	}

	r.mu.Lock()
	if n > r.buffered {
		refill := r.refillLocked()
		r.mu.Unlock()

		r.requestRead(refill)
		var zero C
		return zero, false
	}

	result := r.factory()
	left := n
	for left > 0 {
		head := r.buffers[0]
		size := head.Len()
		head.DrainTo(result, left)
		if head.Len() == 0 {
			var zero C
			r.buffers[0] = zero
			r.buffers = r.buffers[1:]
		}
		left -= size
	}
	r.buffered -= n
	refill := r.refillLocked()
	r.mu.Unlock()

	r.afterRead(result, refill)
	return result, true
}

// refillLocked returns the demand to request after a read, or 0.
func (r *Readable[E, C]) refillLocked() int {
	if r.ended || r.buffered >= r.hwm {
		return 0
	}
	return r.hwm - r.buffered
}

func (r *Readable[E, C]) afterRead(result C, refill int) {
	if result.Len() > 0 {
		r.metrics.RecordRead(r.handle.String(), result.Len(), r.Buffered())
		r.events.Data.Emit(result)
	}
	r.requestRead(refill)
}

func (r *Readable[E, C]) requestRead(size int) {
	if size <= 0 {
		return
	}
	r.ctx.Execute(func() {
		r.source.RequestRead(size)
	})
}

// Pause stops flowing mode. Data keeps accumulating up to the high-water mark.
func (r *Readable[E, C]) Pause() {
	r.mu.Lock()
	off := r.flow
	r.flow = nil
	r.mu.Unlock()

	if off != nil {
		off()
	}
}

// Resume switches to flowing mode: every push is followed by a Read whose
// result is emitted as Data. Data buffered while paused is read on the
// readable's context.
func (r *Readable[E, C]) Resume() {
	r.mu.Lock()
	if r.flow != nil {
		r.mu.Unlock()
		return
	}
	r.flow = r.events.Readable.On(func(future.Void) { r.Read() })
	pending := r.buffered > 0
	r.mu.Unlock()

	if pending {
		r.ctx.Execute(func() {
			if !r.Paused() {
				r.Read()
			}
		})
	}
}

// Paused reports whether the readable is in paused mode.
func (r *Readable[E, C]) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flow == nil
}

// Drain collects every chunk the readable produces until it ends. The
// future fails with the first Error event.
func (r *Readable[E, C]) Drain() *future.Future[C] {
	p := future.NewPromise[C]()

	var (
		mu      sync.Mutex
		acc     = r.factory()
		settled bool
		offs    []event.Off
		once    sync.Once
	)
	release := func() {
		once.Do(func() {
			mu.Lock()
			subs := offs
			mu.Unlock()
			for _, off := range subs {
				off()
			}
		})
	}
	collect := func(chunk C) {
		mu.Lock()
		defer mu.Unlock()
		if !settled {
			buffer.WriteBuffer[E](acc, chunk)
		}
	}
	// finish picks up anything still buffered, then resolves.
	finish := func() {
		release()
		rest := r.Read()
		mu.Lock()
		if settled {
			mu.Unlock()
			return
		}
		settled = true
		buffer.WriteBuffer[E](acc, rest)
		result := acc
		mu.Unlock()
		p.Success(result)
	}

	mu.Lock()
	offs = append(offs,
		r.events.Data.On(collect),
		r.events.End.On(func(future.Void) { finish() }),
		r.events.Readable.On(func(future.Void) {
			if r.Paused() {
				r.Read()
			}
		}),
		r.events.Error.On(func(err error) {
			if sferrors.KindOf(err) == sferrors.KindInvalidUnpipe {
				return
			}
			release()
			mu.Lock()
			settled = true
			mu.Unlock()
			p.Fail(err)
		}),
	)
	mu.Unlock()

	if r.Ended() {
		finish()
		return p.Future()
	}

	r.ctx.Execute(func() {
		if r.Paused() {
			r.Read()
		}
	})

	return p.Future()
}

// Pipe connects the readable to w with DefaultPipeConfig and returns w.
// Piping does not resume a paused readable.
func (r *Readable[E, C]) Pipe(w *Writable[E, C]) *Writable[E, C] {
	connect(r, w, DefaultPipeConfig())
	return w
}

// PipeWithConfig connects the readable to w and returns w.
func (r *Readable[E, C]) PipeWithConfig(w *Writable[E, C], config PipeConfig) (*Writable[E, C], error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	connect(r, w, config)
	return w, nil
}

// Unpipe releases the connection to w. If w is not connected to this
// readable, an InvalidUnpipe error is emitted and nothing changes.
func (r *Readable[E, C]) Unpipe(w *Writable[E, C]) {
	r.mu.Lock()
	conn, ok := r.pipes[w.handle.ID]
	r.mu.Unlock()

	if !ok {
		err := sferrors.InvalidUnpipe("Unpipe")
		r.logger.Debug().Str("writable", w.handle.String()).Msg("unpipe of unconnected writable")
		r.metrics.RecordError(r.handle.String(), err)
		r.events.Error.Emit(err)
		return
	}
	conn.disconnect()
}

// UnpipeAll releases every pipe connection of this readable.
func (r *Readable[E, C]) UnpipeAll() {
	r.mu.Lock()
	conns := make([]*pipeConn, 0, len(r.pipes))
	for _, conn := range r.pipes {
		conns = append(conns, conn)
	}
	r.mu.Unlock()

	for _, conn := range conns {
		conn.disconnect()
	}
}

func (r *Readable[E, C]) addPipe(target uuid.UUID, conn *pipeConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipes[target] = conn
}

func (r *Readable[E, C]) dropPipe(target uuid.UUID, conn *pipeConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pipes[target] == conn {
		delete(r.pipes, target)
	}
}

func (r *Readable[E, C]) push(chunk C) bool {
	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		r.logger.Warn().Msg("push after end ignored")
		return false
	}
	if n := chunk.Len(); n > 0 {
		r.buffers = append(r.buffers, chunk)
		r.buffered += n
	}
	buffered := r.buffered
	r.mu.Unlock()

	ready := buffered < r.hwm
	r.metrics.RecordPush(r.handle.String(), buffered, !ready)
	r.events.Readable.Emit(future.Void{})
	return ready
}

func (r *Readable[E, C]) end() {
	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return
	}
	r.ended = true
	r.mu.Unlock()

	r.logger.Debug().Msg("source ended")
	r.events.End.Emit(future.Void{})
}

func (r *Readable[E, C]) fail(err error) {
	err = sferrors.DriverRead("Source", err)
	r.logger.Error().Err(err).Msg("source failed")
	r.metrics.RecordError(r.handle.String(), err)
	r.events.Error.Emit(err)
}

// pusher adapts a Readable to the Pusher interface without exposing push
// on the Readable itself.
type pusher[E any, C buffer.Buffer[E]] struct {
	r *Readable[E, C]
}

func (p pusher[E, C]) Push(chunk C) bool { return p.r.push(chunk) }
func (p pusher[E, C]) End()              { p.r.end() }
func (p pusher[E, C]) Fail(err error)    { p.r.fail(err) }
