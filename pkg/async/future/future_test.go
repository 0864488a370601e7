package future

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/vnykmshr/streamflow/internal/testutil"
	"github.com/vnykmshr/streamflow/pkg/async/execution"
)

func TestPromiseSettlesOnce(t *testing.T) {
	p := NewPromise[int]()

	testutil.AssertEqual(t, p.Future().IsCompleted(), false)
	testutil.AssertEqual(t, p.Success(1), true)
	testutil.AssertEqual(t, p.Success(2), false)
	testutil.AssertEqual(t, p.Fail(errors.New("late")), false)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	v, err := p.Future().Await(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, 1)
}

func TestCallbacksRunOnceInRegistrationOrder(t *testing.T) {
	p := NewPromise[string]()

	var got []string
	p.Future().OnComplete(func(v string, _ error) { got = append(got, "a:"+v) })
	p.Future().OnSuccess(func(v string) { got = append(got, "b:"+v) })
	p.Future().OnFailure(func(error) { got = append(got, "never") })

	p.Success("x")
	p.Success("y")

	// registered after completion: runs immediately
	p.Future().OnSuccess(func(v string) { got = append(got, "c:"+v) })

	testutil.AssertSliceEqual(t, got, []string{"a:x", "b:x", "c:x"})
}

func TestFailedAndSucceeded(t *testing.T) {
	boom := errors.New("boom")
	ctx := context.Background()

	_, err := Failed[int](boom).Await(ctx)
	testutil.AssertErrorIs(t, err, boom)

	v, err := Succeeded("ok").Await(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, "ok")

	var failures int
	Failed[int](boom).OnFailure(func(error) { failures++ })
	testutil.AssertEqual(t, failures, 1)
}

func TestAwaitHonorsContext(t *testing.T) {
	p := NewPromise[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Future().Await(ctx)
	testutil.AssertErrorIs(t, err, context.DeadlineExceeded)
}

func TestMapAndFlatMap(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	p := NewPromise[int]()
	s := Map(p.Future(), strconv.Itoa)
	l := FlatMap(s, func(v string) *Future[int] {
		return Async(func() (int, error) { return len(v), nil })
	})
	p.Success(1234)

	sv, err := s.Await(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, sv, "1234")

	lv, err := l.Await(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, lv, 4)
}

func TestMapPropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	called := false

	m := Map(Failed[int](boom), func(int) int { called = true; return 0 })
	fm := FlatMap(m, func(int) *Future[int] { called = true; return Succeeded(0) })

	_, err := fm.Await(context.Background())
	testutil.AssertErrorIs(t, err, boom)
	testutil.AssertEqual(t, called, false)
}

func TestCompleteWith(t *testing.T) {
	src := NewPromise[int]()
	dst := NewPromise[int]()
	dst.CompleteWith(src.Future())

	testutil.AssertEqual(t, dst.Future().IsCompleted(), false)
	src.Fail(errors.New("upstream"))

	_, err := dst.Future().Await(context.Background())
	testutil.AssertError(t, err)
}

func TestOnRunsOnContext(t *testing.T) {
	ectx := execution.NewSerial("future-test")
	defer func() { <-ectx.Close() }()

	f := On(ectx, func() (int, error) { return 42, nil })

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	v, err := f.Await(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, 42)
}

func TestConcurrentCompletion(t *testing.T) {
	p := NewPromise[int]()

	var (
		wg   sync.WaitGroup
		wins int32
		mu   sync.Mutex
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.Success(i) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	testutil.AssertEqual(t, wins, int32(1))
	testutil.Receive(t, p.Future().Done())
}
