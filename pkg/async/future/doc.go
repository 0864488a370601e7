// Package future provides a single-assignment Future/Promise pair.
//
// Streams return futures from every I/O-facing operation: a Write resolves when
// its batch reaches the sink, End when the sink is closed, Drain when the
// readable ends. Callbacks registered with OnComplete run on the goroutine that
// settles the future; use Await to block with a context.
package future
