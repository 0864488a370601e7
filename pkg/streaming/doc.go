/*
Package streaming groups the stream engine and its drivers.

  - buffer: chunk types measured in units
  - stream: Readable and Writable engines, pipes and driver interfaces
  - driver/memory, driver/iox, driver/file, driver/redis, driver/ticker: sources and sinks

A Readable is paused until Resume, Pipe plus Resume, or Drain pulls data
out of it. Pushes report backpressure once the buffer reaches the
high-water mark, and well-behaved sources stop until the next read request:

	r, _ := stream.NewBytesReadable(ectx, src)
	w, _ := stream.NewBytesWritable(ectx, sink)
	r.PipeWithConfig(w, stream.PipeConfig{End: true, MaxQueueDepth: 4})
	r.Resume()

All state changes of a stream happen on its execution context, and events
are emitted outside the stream's lock.
*/
package streaming
