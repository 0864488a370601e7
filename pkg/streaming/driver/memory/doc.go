// Package memory provides in-memory stream drivers.
//
// Source feeds a slice into a Readable and Sink records what a Writable
// writes. They are used for tests, examples and for adapting already
// materialized data to the stream API:
//
//	r, _ := stream.NewSliceReadable[int](ectx, memory.NewSource([]int{1, 2, 3}, 1))
//	sink := memory.NewSink[int]()
//	w, _ := stream.NewSliceWritable[int](ectx, sink)
//	r.Pipe(w)
//	r.Resume()
package memory
