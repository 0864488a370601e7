package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vnykmshr/streamflow/pkg/async/execution"
	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// ListSource pops list entries and pushes each one as a chunk.
//
// Polling runs on a background goroutine started by the first RequestRead.
// While the list is empty it polls every PollInterval; once the end marker
// is present and the list is empty the stream ends. Each pop takes at most
// PopCount entries and no more than the outstanding demand, counting every
// entry as at least one unit. When a push reports backpressure the goroutine
// parks until the next RequestRead.
type ListSource struct {
	stream.SourceBase[*buffer.Bytes]

	ectx   execution.Context
	rdb    goredis.UniversalClient
	key    string
	config Config

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	demand  int
	wake    chan struct{}
	done    chan struct{}
}

func newListSource(ectx execution.Context, rdb goredis.UniversalClient, key string, config Config) *ListSource {
	ctx, cancel := context.WithCancel(context.Background())
	return &ListSource{
		ectx:   ectx,
		rdb:    rdb,
		key:    key,
		config: config,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Key returns the list key.
func (s *ListSource) Key() string { return s.key }

// RequestRead implements stream.Source.
func (s *ListSource) RequestRead(size int) {
	s.mu.Lock()
	s.demand = size
	if !s.started {
		s.started = true
		s.mu.Unlock()
		go s.pollLoop()
		return
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop cancels polling without ending the stream.
func (s *ListSource) Stop() {
	s.cancel()
}

// Done returns a channel closed when the polling goroutine has exited. It is
// never closed if no read was requested.
func (s *ListSource) Done() <-chan struct{} {
	return s.done
}

func (s *ListSource) pollLoop() {
	defer close(s.done)
	log := s.config.Logger.With().Str("key", s.key).Logger()

	for {
		if s.ctx.Err() != nil {
			return
		}

		entries, ended, err := s.poll()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("list read failed")
			s.deliver(func(p stream.Pusher[*buffer.Bytes]) {
				p.Fail(sferrors.DriverRead("redis.LPop", err))
			})
			return
		}

		if len(entries) == 0 {
			if ended {
				log.Debug().Msg("list drained")
				s.deliver(func(p stream.Pusher[*buffer.Bytes]) { p.End() })
				return
			}
			if !s.sleep(s.config.PollInterval) {
				return
			}
			continue
		}

		more, ok := s.pushAll(entries)
		if !ok {
			return
		}
		if !more && !s.park() {
			return
		}
	}
}

// poll checks the end marker and then pops. The marker is written after the
// last RPUSH, so a marker seen before an empty pop means the list is complete.
func (s *ListSource) poll() (entries []string, ended bool, err error) {
	if ended, err = s.markerSet(); err != nil {
		return nil, false, err
	}
	entries, err = s.pop()
	return entries, ended, err
}

func (s *ListSource) markerSet() (bool, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.OpTimeout)
	defer cancel()
	n, err := s.rdb.Exists(ctx, s.key+eofSuffix).Result()
	return n > 0, err
}

func (s *ListSource) pop() ([]string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.OpTimeout)
	defer cancel()
	entries, err := s.rdb.LPopCount(ctx, s.key, s.popCount()).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	return entries, err
}

func (s *ListSource) popCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.demand < 1 {
		return 1
	}
	return min(s.demand, s.config.PopCount)
}

// pushAll runs on the readable's context. A RequestRead caused by one of the
// pushes lands after the demand update and the wake drain, so only stale
// state is discarded.
func (s *ListSource) pushAll(entries []string) (more, ok bool) {
	ok = s.deliver(func(p stream.Pusher[*buffer.Bytes]) {
		s.clearWake()
		more = true
		for _, e := range entries {
			s.mu.Lock()
			s.demand -= len(e)
			s.mu.Unlock()
			if !p.Push(buffer.NewBytes([]byte(e))) {
				more = false
			}
		}
	})
	return more, ok
}

func (s *ListSource) clearWake() {
	select {
	case <-s.wake:
	default:
	}
}

func (s *ListSource) park() bool {
	select {
	case <-s.wake:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *ListSource) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.wake:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *ListSource) deliver(fn func(stream.Pusher[*buffer.Bytes])) bool {
	ran := false
	s.ectx.Sync(func() {
		ran = true
		fn(s.Pusher())
	})
	return ran
}

var _ stream.Source[*buffer.Bytes] = (*ListSource)(nil)
