package iox

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vnykmshr/streamflow/internal/testutil"
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

func newBytesReadable(t *testing.T, ectx execution.Context, src stream.Source[*buffer.Bytes], hwm int) *stream.BytesReadable {
	t.Helper()
	config := stream.DefaultReadableConfig()
	config.HighWaterMark = hwm
	r, err := stream.NewReadableWithConfig[byte](ectx, src, buffer.EmptyBytes, config)
	testutil.AssertNoError(t, err)
	return r
}

func TestNewReaderSourceValidation(t *testing.T) {
	_, err := NewReaderSource(nil, strings.NewReader("x"))
	testutil.AssertErrorIs(t, err, sferrors.ErrInvalidConfiguration)

	_, err = NewReaderSource(execution.Inline{}, nil)
	testutil.AssertErrorIs(t, err, sferrors.ErrInvalidConfiguration)

	_, err = NewReaderSourceWithConfig(execution.Inline{}, strings.NewReader("x"), ReaderConfig{ChunkSize: -1})
	testutil.AssertErrorIs(t, err, sferrors.ErrInvalidConfiguration)
}

func TestReaderSourceDrain(t *testing.T) {
	ectx := newSerial(t)
	src, err := NewReaderSource(ectx, testutil.NewMockReader("hello ", "stream ", "world"))
	testutil.AssertNoError(t, err)
	r, err := stream.NewBytesReadable(ectx, src)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	chunk, err := r.Drain().Await(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, string(chunk.Elements()), "hello stream world")

	testutil.Receive(t, src.Done())
}

func TestReaderSourceParksOnBackpressure(t *testing.T) {
	ectx := newSerial(t)
	reader := strings.NewReader("abcdefghijkl")
	src, err := NewReaderSourceWithConfig(ectx, reader, ReaderConfig{ChunkSize: 4})
	testutil.AssertNoError(t, err)
	r := newBytesReadable(t, ectx, src, 4)

	testutil.Eventually(t, func() bool { return r.Buffered() == 4 }, testutil.TestTimeout, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	testutil.AssertEqual(t, r.Buffered(), 4)
	testutil.AssertEqual(t, reader.Len(), 8)

	var first *buffer.Bytes
	ectx.Sync(func() { first = r.Read() })
	testutil.AssertEqual(t, string(first.Elements()), "abcd")

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	rest, err := r.Drain().Await(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, string(rest.Elements()), "efghijkl")
	testutil.Receive(t, src.Done())
}

func TestReaderSourceFailure(t *testing.T) {
	ectx := newSerial(t)
	reader := testutil.NewMockReader("partial")
	reader.Err = testutil.ErrSimulated
	src, err := NewReaderSource(ectx, reader)
	testutil.AssertNoError(t, err)
	r, err := stream.NewBytesReadable(ectx, src)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	_, err = r.Drain().Await(ctx)
	testutil.AssertErrorIs(t, err, sferrors.ErrDriverRead)
	testutil.AssertErrorIs(t, err, testutil.ErrSimulated)
	testutil.Receive(t, src.Done())
}

func TestReaderSourceStop(t *testing.T) {
	ectx := newSerial(t)
	src, err := NewReaderSourceWithConfig(ectx, strings.NewReader(strings.Repeat("x", 64)), ReaderConfig{ChunkSize: 8})
	testutil.AssertNoError(t, err)
	r := newBytesReadable(t, ectx, src, 8)

	testutil.Eventually(t, func() bool { return r.Buffered() == 8 }, testutil.TestTimeout, time.Millisecond)
	src.Stop()
	src.Stop()
	testutil.Receive(t, src.Done())
	testutil.AssertEqual(t, r.Ended(), false)
}

// gatedReader blocks every Read until the test releases it.
type gatedReader struct {
	entered chan struct{}
	release chan struct{}
}

func newGatedReader() *gatedReader {
	return &gatedReader{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedReader) Read(p []byte) (int, error) {
	g.entered <- struct{}{}
	<-g.release
	return copy(p, "abcd"), nil
}

func (g *gatedReader) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("read was not started")
	}
}

// fullPusher reports backpressure on every push.
type fullPusher struct {
	mu     sync.Mutex
	pushes int
}

func (p *fullPusher) Push(*buffer.Bytes) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes++
	return false
}

func (p *fullPusher) End()       {}
func (p *fullPusher) Fail(error) {}

func (p *fullPusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushes
}

func TestReaderSourceParksDespiteEarlierRequest(t *testing.T) {
	gate := newGatedReader()
	src, err := NewReaderSourceWithConfig(execution.Inline{}, gate, ReaderConfig{ChunkSize: 4})
	testutil.AssertNoError(t, err)
	pusher := &fullPusher{}
	src.Init(pusher)

	src.RequestRead(4)
	gate.waitEntered(t)
	// requested while the read is in flight, so it is already satisfied
	src.RequestRead(4)
	gate.release <- struct{}{}

	testutil.Eventually(t, func() bool { return pusher.count() == 1 }, testutil.TestTimeout, time.Millisecond)
	select {
	case <-gate.entered:
		t.Fatal("reader continued past backpressure without a new request")
	case <-time.After(20 * time.Millisecond):
	}

	src.RequestRead(4)
	gate.waitEntered(t)
	src.Stop()
	gate.release <- struct{}{}
	testutil.Receive(t, src.Done())
	testutil.AssertEqual(t, pusher.count(), 2)
}
