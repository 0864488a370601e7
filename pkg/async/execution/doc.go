/*
Package execution provides the execution contexts streams run their work on.

A Context accepts tasks and guarantees they run one after another in
submission order. Streams schedule driver requests, flush operations and pipe
reactions on their context, so two reactions for the same stream never
overlap.

Serial is the production implementation: one goroutine per context, draining
an unbounded queue.

	ectx := execution.NewSerial("ingest")
	defer func() { <-ectx.Close() }()

	ectx.Execute(func() { fmt.Println("runs on the context goroutine") })
	ectx.Sync(func() {}) // barrier: every earlier task has finished

Inline runs tasks on the caller's goroutine and is mostly useful in tests.

There is no package-level default context. Construct one at the process entry
point and pass it to every stream.
*/
package execution
