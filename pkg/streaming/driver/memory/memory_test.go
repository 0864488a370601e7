package memory

import (
	"errors"
	"testing"

	"github.com/vnykmshr/streamflow/internal/testutil"
	"github.com/vnykmshr/streamflow/pkg/async/event"
	"github.com/vnykmshr/streamflow/pkg/async/execution"
	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

func newSerial(t *testing.T) *execution.Serial {
	t.Helper()
	ectx := execution.NewSerial(t.Name())
	t.Cleanup(func() { <-ectx.Close() })
	return ectx
}

func ints(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestSourceDrainOneAtATime(t *testing.T) {
	ectx := newSerial(t)
	config := stream.DefaultReadableConfig()
	config.HighWaterMark = 2

	src := NewSource(ints(11), 1)
	r, err := stream.NewSliceReadableWithConfig[int](ectx, src, config)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	chunk, err := r.Drain().Await(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertSliceEqual(t, chunk.Elements(), ints(11))
	testutil.AssertEqual(t, src.Remaining(), 0)
	testutil.AssertEqual(t, src.Ended(), true)
}

func TestSourceRespectsBackpressure(t *testing.T) {
	ectx := newSerial(t)
	config := stream.DefaultReadableConfig()
	config.HighWaterMark = 4

	src := NewSource(ints(100), 3)
	r, err := stream.NewSliceReadableWithConfig[int](ectx, src, config)
	testutil.AssertNoError(t, err)
	ectx.Sync(func() {})

	// 3 then 6 units: the second push crosses the mark
	testutil.AssertEqual(t, r.Buffered(), 6)
	testutil.AssertEqual(t, src.Remaining(), 94)
}

func TestSourceWholeSliceAsOneChunk(t *testing.T) {
	ectx := newSerial(t)
	r, err := stream.NewSliceReadable[string](ectx, NewSource([]string{"a", "b", "c"}, 0))
	testutil.AssertNoError(t, err)
	ectx.Sync(func() {})

	testutil.AssertEqual(t, r.Ended(), true)
	testutil.AssertSliceEqual(t, r.Read().Elements(), []string{"a", "b", "c"})
}

func TestSourceEmpty(t *testing.T) {
	ectx := newSerial(t)
	r, err := stream.NewSliceReadable[int](ectx, NewSource[int](nil, 4))
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	chunk, err := r.Drain().Await(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, chunk.Len(), 0)
}

func TestPipeIntoAsyncSink(t *testing.T) {
	rctx := newSerial(t)
	wctx := newSerial(t)
	sinkCtx := newSerial(t)

	r, err := stream.NewSliceReadable[int](rctx, NewSource(ints(1000), 7))
	testutil.AssertNoError(t, err)
	sink := NewSinkWithConfig[int](SinkConfig{Context: sinkCtx})
	w, err := stream.NewSliceWritable[int](wctx, sink)
	testutil.AssertNoError(t, err)

	finished := event.Next(&w.Events().Finish)
	_, err = r.PipeWithConfig(w, stream.PipeConfig{End: true, MaxQueueDepth: 8})
	testutil.AssertNoError(t, err)
	r.Resume()

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	_, err = finished.Await(ctx)
	testutil.AssertNoError(t, err)

	testutil.AssertSliceEqual(t, sink.Elements(), ints(1000))
	testutil.AssertEqual(t, sink.Closed(), true)
}

func TestSinkFailureInjection(t *testing.T) {
	ectx := newSerial(t)
	sink := NewSink[int]()
	w, err := stream.NewSliceWritable[int](ectx, sink)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	boom := errors.New("boom")
	sink.FailNext(boom)
	_, err = w.Write(buffer.NewSlice(1)).Await(ctx)
	testutil.AssertErrorIs(t, err, sferrors.ErrDriverWrite)
	testutil.AssertErrorIs(t, err, boom)

	_, err = w.Write(buffer.NewSlice(2)).Await(ctx)
	testutil.AssertNoError(t, err)

	sink.FailClose(boom)
	_, err = w.End().Await(ctx)
	testutil.AssertErrorIs(t, err, sferrors.ErrDriverClose)
	testutil.AssertEqual(t, sink.Closed(), false)
	testutil.AssertEqual(t, len(sink.Batches()), 1)
}
