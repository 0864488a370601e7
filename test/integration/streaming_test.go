package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/vnykmshr/streamflow/internal/testutil"
	"github.com/vnykmshr/streamflow/pkg/async/event"
	"github.com/vnykmshr/streamflow/pkg/async/execution"
	"github.com/vnykmshr/streamflow/pkg/async/future"
	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/streaming/driver/file"
	"github.com/vnykmshr/streamflow/pkg/streaming/driver/iox"
	"github.com/vnykmshr/streamflow/pkg/streaming/driver/memory"
	"github.com/vnykmshr/streamflow/pkg/streaming/driver/redis"
	"github.com/vnykmshr/streamflow/pkg/streaming/driver/ticker"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

func newSerial(t *testing.T, name string) *execution.Serial {
	t.Helper()
	ectx := execution.NewSerial(name)
	t.Cleanup(func() { <-ectx.Close() })
	return ectx
}

func await[T any](t *testing.T, f *future.Future[T]) T {
	t.Helper()
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	v, err := f.Await(ctx)
	testutil.AssertNoError(t, err)
	return v
}

// TestFileThroughRedisToFile moves a file into a Redis list and back out
// into a second file, with each leg on its own execution context.
func TestFileThroughRedisToFile(t *testing.T) {
	mini, err := miniredis.Run()
	testutil.AssertNoError(t, err)
	t.Cleanup(mini.Close)

	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	content := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 500)
	testutil.AssertNoError(t, os.WriteFile(in, []byte(content), 0o600))

	ctx := context.Background()
	client := await(t, redis.Open(ctx, redis.Config{Addr: mini.Addr(), PollInterval: 5 * time.Millisecond}))
	defer client.Close()

	// leg 1: file -> redis
	upload := newSerial(t, "upload")
	src := await(t, file.Open(upload, in, file.ReadOnly))
	defer src.Close()

	rconfig := stream.DefaultReadableConfig()
	rconfig.HighWaterMark = 4096
	r, err := src.ReadStreamWithConfig(rconfig, iox.ReaderConfig{ChunkSize: 1024})
	testutil.AssertNoError(t, err)

	sink, err := client.ListSink(ctx, "transfer")
	testutil.AssertNoError(t, err)
	w, err := stream.NewBytesWritable(upload, sink)
	testutil.AssertNoError(t, err)

	uploaded := event.Next(&w.Events().Finish)
	_, err = r.PipeWithConfig(w, stream.PipeConfig{End: true, MaxQueueDepth: 2})
	testutil.AssertNoError(t, err)
	r.Resume()

	// leg 2: redis -> file, started before leg 1 finishes
	download := newSerial(t, "download")
	listSrc, err := client.ListSource(download, "transfer")
	testutil.AssertNoError(t, err)
	r2, err := stream.NewBytesReadable(download, listSrc)
	testutil.AssertNoError(t, err)

	dst := await(t, file.Open(download, out, file.WriteOnly|file.Create|file.Truncate))
	w2, err := dst.WriteStream()
	testutil.AssertNoError(t, err)

	downloaded := event.Next(&w2.Events().Finish)
	r2.Pipe(w2)
	r2.Resume()

	await(t, uploaded)
	await(t, downloaded)

	got, err := os.ReadFile(out)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, string(got), content)
	t.Logf("moved %d bytes through redis", len(got))
}

// TestFanOut pipes one readable into two writables whose sinks complete on
// different contexts.
func TestFanOut(t *testing.T) {
	ectx := newSerial(t, "fanout")
	sinkCtx := newSerial(t, "sink")

	data := make([]int, 200)
	for i := range data {
		data[i] = i
	}

	r, err := stream.NewSliceReadable[int](ectx, memory.NewSource(data, 7))
	testutil.AssertNoError(t, err)

	fast := memory.NewSink[int]()
	slow := memory.NewSinkWithConfig[int](memory.SinkConfig{Context: sinkCtx})
	wFast, err := stream.NewSliceWritable[int](ectx, fast)
	testutil.AssertNoError(t, err)
	wSlow, err := stream.NewSliceWritable[int](ectx, slow)
	testutil.AssertNoError(t, err)

	fastDone := event.Next(&wFast.Events().Finish)
	slowDone := event.Next(&wSlow.Events().Finish)

	r.Pipe(wFast)
	_, err = r.PipeWithConfig(wSlow, stream.PipeConfig{End: true, MaxQueueDepth: 3})
	testutil.AssertNoError(t, err)
	r.Resume()

	await(t, fastDone)
	await(t, slowDone)

	testutil.AssertSliceEqual(t, fast.Elements(), data)
	testutil.AssertSliceEqual(t, slow.Elements(), data)
	testutil.AssertEqual(t, fast.Closed(), true)
	testutil.AssertEqual(t, slow.Closed(), true)
}

// TestTickerIntoWriter feeds scheduled ticks through a pipe and checks that
// delivered ticks are numbered without gaps.
func TestTickerIntoWriter(t *testing.T) {
	ectx := newSerial(t, "ticker")
	sinkCtx := newSerial(t, "tick-sink")

	config := ticker.DefaultConfig()
	config.MaxTicks = 10
	config.Metrics = nil
	src, err := ticker.NewSourceWithConfig(ectx, interval(2*time.Millisecond), config)
	testutil.AssertNoError(t, err)

	rconfig := stream.DefaultReadableConfig()
	rconfig.HighWaterMark = 2
	r, err := stream.NewSliceReadableWithConfig[ticker.Tick](ectx, src, rconfig)
	testutil.AssertNoError(t, err)

	sink := memory.NewSinkWithConfig[ticker.Tick](memory.SinkConfig{Context: sinkCtx})
	w, err := stream.NewSliceWritable[ticker.Tick](ectx, sink)
	testutil.AssertNoError(t, err)

	finished := event.Next(&w.Events().Finish)
	r.Pipe(w)
	r.Resume()
	await(t, finished)

	ticks := sink.Elements()
	testutil.AssertEqual(t, len(ticks), 10)
	for i, tick := range ticks {
		testutil.AssertEqual(t, tick.Seq, uint64(i+1))
	}
	testutil.Receive(t, src.Done())
	t.Logf("delivered %d ticks, dropped %d", len(ticks), src.Dropped())
}

// TestSourceErrorReachesWriter checks that a read failure surfaces on the
// piped writable and that the sink is never closed.
func TestSourceErrorReachesWriter(t *testing.T) {
	ectx := newSerial(t, "errors")

	reader := testutil.NewMockReader("one ", "two ")
	reader.Err = testutil.ErrSimulated
	src, err := iox.NewReaderSource(ectx, reader)
	testutil.AssertNoError(t, err)
	r, err := stream.NewBytesReadable(ectx, src)
	testutil.AssertNoError(t, err)

	underlying := testutil.NewMockWriter()
	sink, err := iox.NewWriterSink(underlying)
	testutil.AssertNoError(t, err)
	w, err := stream.NewBytesWritable(ectx, sink)
	testutil.AssertNoError(t, err)

	failed := event.Next(&w.Events().Error)
	r.Pipe(w)
	r.Resume()

	err = await(t, failed)
	testutil.AssertErrorIs(t, err, sferrors.ErrDriverRead)
	testutil.AssertErrorIs(t, err, testutil.ErrSimulated)
	testutil.Receive(t, src.Done())

	testutil.Eventually(t, func() bool { return underlying.String() == "one two " }, testutil.TestTimeout, time.Millisecond)
	testutil.AssertEqual(t, underlying.Closed(), false)
}

type interval time.Duration

func (i interval) Next(t time.Time) time.Time { return t.Add(time.Duration(i)) }
