package stream

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/streamflow/pkg/async/execution"
	"github.com/vnykmshr/streamflow/pkg/async/future"
	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/metrics"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
)

// Writable serializes writes into a Sink driver.
//
// Every uncorked Write becomes one flush operation; while corked, writes
// accumulate and Uncork submits them as a single batch. Flush operations run
// one at a time, in submission order, on the writable's execution context.
// A failed flush abandons everything queued behind it: their futures fail
// with the same error and the Error event fires.
type Writable[E any, C buffer.Buffer[E]] struct {
	handle  Handle
	ctx     execution.Context
	sink    Sink[C]
	logger  zerolog.Logger
	metrics *metrics.Registry
	events  WritableEvents

	mu      sync.Mutex
	pending []pendingWrite[C]
	ops     []*flushOp[C]
	corked  bool
	ended   bool
	finish  *future.Future[future.Void]
	pipe    *pipeConn
}

type pendingWrite[C any] struct {
	chunk   C
	promise *future.Promise[future.Void]
}

// flushOp is one WriteBatch call and the futures waiting on it.
type flushOp[C any] struct {
	chunks   []C
	promises []*future.Promise[future.Void]
	done     *future.Promise[future.Void]
}

func newFlushOp[C any](writes []pendingWrite[C]) *flushOp[C] {
	op := &flushOp[C]{
		chunks:   make([]C, len(writes)),
		promises: make([]*future.Promise[future.Void], len(writes)),
		done:     future.NewPromise[future.Void](),
	}
	for i, pw := range writes {
		op.chunks[i] = pw.chunk
		op.promises[i] = pw.promise
	}
	return op
}

func (op *flushOp[C]) complete(err error) {
	for _, p := range op.promises {
		p.Complete(future.Void{}, err)
	}
	op.done.Complete(future.Void{}, err)
}

// SliceWritable is a Writable of element slices.
type SliceWritable[E any] = Writable[E, *buffer.Slice[E]]

// BytesWritable is a Writable of byte chunks.
type BytesWritable = Writable[byte, *buffer.Bytes]

// TextWritable is a Writable of text chunks.
type TextWritable = Writable[string, *buffer.Text]

// NewWritable creates a Writable with default configuration.
func NewWritable[E any, C buffer.Buffer[E]](ectx execution.Context, sink Sink[C]) (*Writable[E, C], error) {
	return NewWritableWithConfig[E](ectx, sink, DefaultWritableConfig())
}

// NewWritableWithConfig creates a Writable and schedules the driver's Init on ectx.
func NewWritableWithConfig[E any, C buffer.Buffer[E]](ectx execution.Context, sink Sink[C], config WritableConfig) (*Writable[E, C], error) {
	if err := validation.ValidateNotNil("stream", "Context", ectx); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil("stream", "Sink", sink); err != nil {
		return nil, err
	}

	w := &Writable[E, C]{
		handle:  newHandle(config.Name),
		ctx:     ectx,
		sink:    sink,
		metrics: config.Metrics,
	}
	w.logger = config.Logger.With().
		Str("stream", w.handle.String()).
		Str("side", "writable").
		Logger()

	ectx.Execute(sink.Init)

	return w, nil
}

// NewSliceWritable creates a Writable of *buffer.Slice[E] chunks.
func NewSliceWritable[E any](ectx execution.Context, sink Sink[*buffer.Slice[E]]) (*SliceWritable[E], error) {
	return NewWritable[E](ectx, sink)
}

// NewBytesWritable creates a byte Writable.
func NewBytesWritable(ectx execution.Context, sink Sink[*buffer.Bytes]) (*BytesWritable, error) {
	return NewWritable[byte](ectx, sink)
}

// NewTextWritable creates a text Writable.
func NewTextWritable(ectx execution.Context, sink Sink[*buffer.Text]) (*TextWritable, error) {
	return NewWritable[string](ectx, sink)
}

// Handle returns the stream's identity.
func (w *Writable[E, C]) Handle() Handle { return w.handle }

// Events returns the writable's signals.
func (w *Writable[E, C]) Events() *WritableEvents { return &w.events }

// Corked reports whether writes are being held back.
func (w *Writable[E, C]) Corked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.corked
}

// QueueDepth returns the number of flush operations queued or running.
func (w *Writable[E, C]) QueueDepth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ops)
}

// Ended reports whether End has been called.
func (w *Writable[E, C]) Ended() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ended
}

// Write submits chunk. The future settles with the result of the batch that
// carries it. Writing after End fails with ErrClosed.
func (w *Writable[E, C]) Write(chunk C) *future.Future[future.Void] {
	p := future.NewPromise[future.Void]()

	w.mu.Lock()
	if w.ended {
		w.mu.Unlock()
		p.Fail(sferrors.ErrClosed)
		return p.Future()
	}
	if w.corked {
		w.pending = append(w.pending, pendingWrite[C]{chunk: chunk, promise: p})
		w.mu.Unlock()
		return p.Future()
	}
	start := w.enqueueLocked(newFlushOp([]pendingWrite[C]{{chunk: chunk, promise: p}}))
	w.mu.Unlock()

	w.schedule(start)
	return p.Future()
}

// Cork holds back subsequent writes until Uncork.
func (w *Writable[E, C]) Cork() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.corked = true
}

// Uncork submits every write held since Cork as one batch.
func (w *Writable[E, C]) Uncork() {
	w.mu.Lock()
	start := w.uncorkLocked()
	w.mu.Unlock()

	w.schedule(start)
}

func (w *Writable[E, C]) uncorkLocked() *flushOp[C] {
	if !w.corked {
		return nil
	}
	w.corked = false
	if len(w.pending) == 0 {
		return nil
	}
	op := newFlushOp(w.pending)
	w.pending = nil
	return w.enqueueLocked(op)
}

// End uncorks, waits for every queued flush and closes the sink. Finish is
// emitted once the sink is closed. Calling End again returns the same future.
func (w *Writable[E, C]) End() *future.Future[future.Void] {
	return w.end(nil)
}

// EndWith writes chunk as the final write and then ends the writable.
func (w *Writable[E, C]) EndWith(chunk C) *future.Future[future.Void] {
	return w.end(&chunk)
}

func (w *Writable[E, C]) end(chunk *C) *future.Future[future.Void] {
	w.mu.Lock()
	if w.ended {
		f := w.finish
		w.mu.Unlock()
		return f
	}
	w.ended = true

	var starts []*flushOp[C]
	if op := w.uncorkLocked(); op != nil {
		starts = append(starts, op)
	}
	if chunk != nil {
		last := pendingWrite[C]{chunk: *chunk, promise: future.NewPromise[future.Void]()}
		if op := w.enqueueLocked(newFlushOp([]pendingWrite[C]{last})); op != nil {
			starts = append(starts, op)
		}
	}
	var tail *flushOp[C]
	if len(w.ops) > 0 {
		tail = w.ops[len(w.ops)-1]
	}
	p := future.NewPromise[future.Void]()
	w.finish = p.Future()
	w.mu.Unlock()

	for _, op := range starts {
		w.schedule(op)
	}

	if tail == nil {
		w.ctx.Execute(func() { w.closeSink(p) })
		return p.Future()
	}
	tail.done.Future().OnComplete(func(_ future.Void, err error) {
		if err != nil {
			p.Fail(err)
			return
		}
		w.ctx.Execute(func() { w.closeSink(p) })
	})
	return p.Future()
}

func (w *Writable[E, C]) closeSink(p *future.Promise[future.Void]) {
	w.sink.Close().OnComplete(func(_ future.Void, err error) {
		w.ctx.Execute(func() {
			if err != nil {
				err = sferrors.DriverClose("Close", err)
				p.Fail(err)
				w.fail(err)
				return
			}
			p.Success(future.Void{})
			w.logger.Debug().Msg("finished")
			w.events.Finish.Emit(future.Void{})
		})
	})
}

// enqueueLocked appends op and returns it if it became the head, meaning
// nothing else is running and it must be started.
func (w *Writable[E, C]) enqueueLocked(op *flushOp[C]) *flushOp[C] {
	w.ops = append(w.ops, op)
	w.metrics.RecordQueueDepth(w.handle.String(), len(w.ops))
	if len(w.ops) == 1 {
		return op
	}
	return nil
}

func (w *Writable[E, C]) schedule(op *flushOp[C]) {
	if op == nil {
		return
	}
	w.ctx.Execute(func() { w.run(op) })
}

func (w *Writable[E, C]) run(op *flushOp[C]) {
	w.metrics.RecordBatch(w.handle.String(), len(op.chunks))
	w.sink.WriteBatch(op.chunks).OnComplete(func(_ future.Void, err error) {
		w.ctx.Execute(func() { w.completed(op, err) })
	})
}

// completed runs on the writable's context once op's batch has settled.
func (w *Writable[E, C]) completed(op *flushOp[C], err error) {
	if err != nil {
		w.fail(sferrors.DriverWrite("WriteBatch", err))
		return
	}
	op.complete(nil)

	w.mu.Lock()
	if len(w.ops) == 0 || w.ops[0] != op {
		// abandoned by the error path
		w.mu.Unlock()
		return
	}
	w.ops[0] = nil
	w.ops = w.ops[1:]
	var next *flushOp[C]
	if len(w.ops) > 0 {
		next = w.ops[0]
	}
	w.metrics.RecordQueueDepth(w.handle.String(), len(w.ops))
	w.mu.Unlock()

	if next != nil {
		w.run(next)
		return
	}
	w.events.Drain.Emit(future.Void{})
}

// fail clears every queued write, fails their futures with err and emits Error.
func (w *Writable[E, C]) fail(err error) {
	w.mu.Lock()
	pending := w.pending
	ops := w.ops
	w.pending = nil
	w.ops = nil
	w.metrics.RecordQueueDepth(w.handle.String(), 0)
	w.mu.Unlock()

	for _, pw := range pending {
		pw.promise.Fail(err)
	}
	for _, op := range ops {
		op.complete(err)
	}

	w.logger.Error().Err(err).
		Int("abandoned_writes", len(pending)).
		Int("abandoned_batches", len(ops)).
		Msg("writable failed")
	w.metrics.RecordError(w.handle.String(), err)
	w.events.Error.Emit(err)
}
