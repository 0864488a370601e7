// Package file opens files as byte streams.
//
// Open completes asynchronously with a *File bound to an execution context.
// ReadStream and WriteStream return a BytesReadable and a BytesWritable built
// on the iox drivers:
//
//	src, err := file.Open(ectx, "in.log", file.ReadOnly).Await(ctx)
//	dst, err := file.Open(ectx, "out.log", file.WriteOnly|file.Create|file.Truncate).Await(ctx)
//
//	r, _ := src.ReadStream()
//	w, _ := dst.WriteStream()
//	r.Pipe(w)
//	r.Resume()
//
// Ending a write stream closes its file. Read streams leave the file open
// until Close.
package file
