/*
Package streamflow provides backpressure-aware streams for Go.

Streams move chunks of elements between drivers: a source driver pushes
chunks into a Readable, and a Writable hands batches of chunks to a sink
driver. Readables buffer up to a high-water mark and tell their source when
to stop; writables serialize flushes so batches complete in order.

Core (pkg/async, pkg/streaming):
  - execution: Serial and Inline execution contexts that own stream state
  - future: single-assignment futures and promises
  - event: typed event signals
  - buffer: Slice, Bytes and rune-counted Text chunks
  - stream: Readable, Writable, Pipe and the driver interfaces

Drivers (pkg/streaming/driver):
  - memory: slices in, recorded batches out
  - iox: any io.Reader or io.Writer
  - file: files opened with Mode flags
  - redis: Redis lists as chunk queues
  - ticker: cron-scheduled tick sources

Example usage:

	import (
		"github.com/vnykmshr/streamflow/pkg/async/execution"
		"github.com/vnykmshr/streamflow/pkg/streaming/driver/memory"
		"github.com/vnykmshr/streamflow/pkg/streaming/stream"
	)

	ectx := execution.NewSerial("copy")
	r, _ := stream.NewSliceReadable[int](ectx, memory.NewSource(data, 64))
	w, _ := stream.NewSliceWritable[int](ectx, memory.NewSink[int]())
	r.Pipe(w)
	r.Resume()

The streamcp command (cmd/streamcp) copies between file, Redis and stdio
endpoints.
*/
package streamflow
