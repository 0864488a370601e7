// Package redis streams byte chunks through Redis lists.
//
// A ListSink appends every chunk of a batch with one RPUSH and, when its
// writable ends, sets "<key>:eof". A ListSource pops entries from the head of
// the list, polls while the list is empty and ends once the marker is set and
// the list has been drained. Together they move a stream between processes:
//
//	client, err := redis.Open(ctx, redis.Config{Addr: "localhost:6379"}).Await(ctx)
//
//	sink, _ := client.ListSink(ctx, "jobs")
//	w, _ := stream.NewBytesWritable(ectx, sink)
//
//	src, _ := client.ListSource(ectx, "jobs")
//	r, _ := stream.NewBytesReadable(ectx, src)
//
// Entries are consumed destructively, so one list feeds one reader.
package redis
