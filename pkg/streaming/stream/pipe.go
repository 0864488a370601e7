package stream

import (
	"sync/atomic"

	"github.com/vnykmshr/streamflow/pkg/async/event"
	"github.com/vnykmshr/streamflow/pkg/async/future"
	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
)

// pipeConn is one readable-to-writable connection. Neither side owns the
// other: the writable keeps the connection for its source handle, the
// readable keeps it under the writable's ID so it can disconnect.
type pipeConn struct {
	source Handle
	offs   []event.Off

	// disconnect tears the connection down from the writable side.
	disconnect func()
	// prune removes the readable's record.
	prune func()
	// resume undoes a pause made by the pipe.
	resume func()

	paused   atomic.Bool
	ended    atomic.Bool
	released atomic.Bool
}

func (c *pipeConn) release() {
	c.released.Store(true)
	for _, off := range c.offs {
		off()
	}
	c.prune()
	if c.paused.CompareAndSwap(true, false) {
		c.resume()
	}
}

// connect wires r's events into w. Reactions run on w's context; pauses
// and resumes of r are scheduled on r's context.
func connect[E any, C buffer.Buffer[E]](r *Readable[E, C], w *Writable[E, C], config PipeConfig) {
	conn := &pipeConn{source: r.handle}
	target := w.handle.ID

	conn.disconnect = func() { w.detach(conn) }
	conn.prune = func() { r.dropPipe(target, conn) }
	conn.resume = func() { r.ctx.Execute(r.Resume) }

	// release any previous source first so its Unpipe precedes our Pipe
	w.detachCurrent()

	conn.offs = append(conn.offs, r.events.Data.OnIn(w.ctx, func(chunk C) {
		w.Write(chunk)
		if config.MaxQueueDepth <= 0 || w.QueueDepth() < config.MaxQueueDepth {
			return
		}
		if conn.paused.Load() {
			return
		}
		depth := w.QueueDepth()
		r.ctx.Execute(func() {
			// a readable paused by its owner stays the owner's to resume
			if r.Paused() || conn.released.Load() || !conn.paused.CompareAndSwap(false, true) {
				return
			}
			w.metrics.RecordBackpressure(r.handle.String(), "pipe")
			w.logger.Debug().Str("readable", r.handle.String()).Int("queue_depth", depth).Msg("pipe paused readable")
			r.Pause()
		})
	}))

	conn.offs = append(conn.offs, r.events.Error.OnIn(w.ctx, func(err error) {
		if sferrors.KindOf(err) == sferrors.KindInvalidUnpipe {
			return
		}
		w.metrics.RecordError(w.handle.String(), err)
		w.events.Error.Emit(err)
		w.detach(conn)
	}))

	if config.End {
		conn.offs = append(conn.offs, r.events.End.OnIn(w.ctx, func(future.Void) {
			if conn.ended.CompareAndSwap(false, true) {
				w.End()
			}
		}))
	}

	if config.MaxQueueDepth > 0 {
		conn.offs = append(conn.offs, w.events.Drain.On(func(future.Void) {
			if conn.paused.CompareAndSwap(true, false) {
				w.logger.Debug().Str("readable", r.handle.String()).Msg("pipe resumed readable")
				conn.resume()
			}
		}))
	}

	r.addPipe(target, conn)
	w.attach(conn)

	// End fires once, so a readable that already ended is finished here:
	// what it still buffers is read into w first, then w is ended.
	if config.End && r.Ended() && conn.ended.CompareAndSwap(false, true) {
		r.ctx.Execute(func() {
			if conn.released.Load() {
				return
			}
			r.Read()
			w.ctx.Execute(func() { w.End() })
		})
	}
}

// attach records conn as the writable's source and emits Pipe.
func (w *Writable[E, C]) attach(conn *pipeConn) {
	w.mu.Lock()
	old := w.pipe
	w.pipe = conn
	w.mu.Unlock()

	if old != nil {
		w.teardown(old)
	}
	w.metrics.RecordPipe(w.handle.String(), "pipe")
	w.logger.Debug().Str("readable", conn.source.String()).Msg("piped")
	w.events.Pipe.Emit(conn.source)
}

// detachCurrent tears down whatever connection the writable has.
func (w *Writable[E, C]) detachCurrent() {
	w.mu.Lock()
	old := w.pipe
	w.pipe = nil
	w.mu.Unlock()

	if old != nil {
		w.teardown(old)
	}
}

// detach tears down conn if it is still the writable's connection.
func (w *Writable[E, C]) detach(conn *pipeConn) {
	w.mu.Lock()
	if w.pipe != conn {
		w.mu.Unlock()
		conn.release()
		return
	}
	w.pipe = nil
	w.mu.Unlock()

	w.teardown(conn)
}

func (w *Writable[E, C]) teardown(conn *pipeConn) {
	conn.release()
	w.metrics.RecordPipe(w.handle.String(), "unpipe")
	w.logger.Debug().Str("readable", conn.source.String()).Msg("unpiped")
	w.events.Unpipe.Emit(conn.source)
}
