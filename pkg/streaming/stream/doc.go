/*
Package stream implements backpressure-aware readable and writable streams.

A Readable pulls chunks from a Source driver into a bounded buffer and hands
them to consumers. A Writable serializes chunks into a Sink driver. Pipe
connects the two so data, errors and the end of the stream propagate without
the caller moving chunks by hand.

# Chunks

Streams are generic over an element type E and a chunk type C implementing
buffer.Buffer[E]. The length of a chunk is measured in units: elements for
buffer.Slice, bytes for buffer.Bytes, runes for buffer.Text. Aliases such as
BytesReadable and TextWritable cover the common instantiations.

# Readable

A Readable starts paused. Consumers either pull:

	chunk := r.Read()           // everything buffered, possibly empty
	chunk, ok := r.ReadN(512)   // exactly 512 units, or ok == false

or switch to flowing mode, where every push is followed by a read whose
result is emitted as a Data event:

	r.Events().Data.On(func(chunk *buffer.Bytes) { ... })
	r.Resume()

Drain collects the whole stream into one chunk:

	all, err := r.Drain().Await(ctx)

Backpressure is driven by the high-water mark. Push reports false once the
buffer holds at least HighWaterMark units, and every read issues a
RequestRead for the deficit while the buffer is below the mark.

# Writable

Each Write returns a future settled by the batch that carries the chunk.
Batches are written one at a time, in order. Cork and Uncork group writes
into a single WriteBatch call:

	w.Cork()
	w.Write(header)
	w.Write(body)
	w.Uncork() // one batch with both chunks

End waits for queued batches, closes the sink and emits Finish. If a batch
fails, every write queued behind it fails with the same error and the Error
event fires.

# Pipes

	r.Pipe(w)
	r.Resume()

Pipe forwards Data into w.Write, forwards source errors to w's Error event,
and ends w when r ends. A writable has at most one source; piping a new
readable into it releases the previous one. PipeWithConfig can additionally
pause the readable while the writable's queue is deep:

	r.PipeWithConfig(w, stream.PipeConfig{End: true, MaxQueueDepth: 4})

# Threading

Every stream belongs to an execution.Context. Driver calls, flushes, flush
completions and pipe reactions run on the owning stream's context; the
engines guard their own state with a mutex and emit events only after
releasing it, so handlers may call back into the stream.
*/
package stream
