/*
Package iox adapts io.Reader and io.Writer to stream drivers.

ReaderSource reads fixed-size chunks on a background goroutine and pushes
them into a BytesReadable; it parks while the readable reports backpressure.
WriterSink joins each batch from a BytesWritable into one write, retrying
failed and short writes:

	src, _ := iox.NewReaderSource(ectx, os.Stdin)
	r, _ := stream.NewBytesReadable(ectx, src)

	sink, _ := iox.NewWriterSinkWithConfig(os.Stdout, iox.WriterConfig{
		MaxRetries: 2,
		RetryDelay: 50 * time.Millisecond,
		OnFlush: func(n int, d time.Duration) {
			log.Printf("wrote %d bytes in %v", n, d)
		},
	})
	w, _ := stream.NewBytesWritable(ectx, sink)

	r.Pipe(w)
	r.Resume()

Once the retries are exhausted the failure reaches the writable as a driver
write error. A WriterConfig built by hand leaves CloseUnderlying off.
*/
package iox
