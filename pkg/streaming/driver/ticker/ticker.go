package ticker

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/streamflow/pkg/async/execution"
	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/metrics"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// Tick is the element a Source produces.
type Tick struct {
	// Seq numbers delivered ticks from 1. Dropped ticks do not consume a number.
	Seq  uint64
	Time time.Time
}

// Config holds configuration for a Source.
type Config struct {
	// Location is the time zone schedules are evaluated in.
	// Default: time.Local
	Location *time.Location

	// MaxTicks ends the stream after that many delivered ticks. 0 means unlimited.
	MaxTicks int

	// Logger receives dropped tick logs. Default: zerolog.Nop().
	Logger zerolog.Logger

	// Metrics counts dropped ticks under the "ticker" driver label.
	// Default: metrics.DefaultRegistry
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Location: time.Local,
		Logger:   zerolog.Nop(),
		Metrics:  metrics.DefaultRegistry,
	}
}

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse parses a cron expression with a leading seconds field, or a
// descriptor such as "@every 5s" or "@hourly".
func Parse(expr string) (cron.Schedule, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, sferrors.NewValidationError("ticker", "Schedule", expr, err.Error()).
			WithHint("use six fields: second minute hour day month weekday")
	}
	return schedule, nil
}

// Source produces one Tick per schedule activation while the readable has
// demand. Activations that find no demand are dropped and counted; ticks are
// never queued inside the source.
type Source struct {
	stream.SourceBase[*buffer.Slice[Tick]]

	ectx     execution.Context
	schedule cron.Schedule
	config   Config

	mu      sync.Mutex
	demand  int
	started bool
	seq     uint64
	dropped uint64

	stop    chan struct{}
	stopped sync.Once
	done    chan struct{}
}

// NewSource creates a Source driven by schedule.
func NewSource(ectx execution.Context, schedule cron.Schedule) (*Source, error) {
	return NewSourceWithConfig(ectx, schedule, DefaultConfig())
}

// NewSourceFromExpr parses expr with Parse and creates a Source.
func NewSourceFromExpr(ectx execution.Context, expr string, config Config) (*Source, error) {
	schedule, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return NewSourceWithConfig(ectx, schedule, config)
}

// NewSourceWithConfig creates a Source driven by schedule.
func NewSourceWithConfig(ectx execution.Context, schedule cron.Schedule, config Config) (*Source, error) {
	if err := validation.ValidateNotNil("ticker", "Context", ectx); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil("ticker", "Schedule", schedule); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("ticker", "MaxTicks", config.MaxTicks); err != nil {
		return nil, err
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	return &Source{
		ectx:     ectx,
		schedule: schedule,
		config:   config,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// RequestRead implements stream.Source. size replaces the outstanding demand.
func (s *Source) RequestRead(size int) {
	s.mu.Lock()
	s.demand = size
	start := !s.started
	s.started = true
	s.mu.Unlock()

	if start {
		go s.run()
	}
}

// Stop stops the schedule without ending the stream.
func (s *Source) Stop() {
	s.stopped.Do(func() { close(s.stop) })
}

// Done returns a channel closed once the schedule goroutine has exited.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// Dropped returns the number of activations that found no demand.
func (s *Source) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Source) run() {
	defer close(s.done)

	for {
		now := time.Now().In(s.config.Location)
		next := s.schedule.Next(now)
		if next.IsZero() {
			// the schedule has no further activations
			s.deliver(func(p stream.Pusher[*buffer.Slice[Tick]]) { p.End() })
			return
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-s.stop:
			timer.Stop()
			return
		case fired := <-timer.C:
			if !s.fire(fired.In(s.config.Location)) {
				return
			}
		}
	}
}

// fire delivers or drops one activation and reports whether to keep running.
func (s *Source) fire(at time.Time) bool {
	s.mu.Lock()
	if s.demand <= 0 {
		s.dropped++
		s.mu.Unlock()
		s.config.Metrics.RecordDriverDrop("ticker", 1)
		s.config.Logger.Debug().Time("at", at).Msg("tick dropped, no demand")
		return true
	}
	s.demand--
	s.seq++
	tick := Tick{Seq: s.seq, Time: at}
	last := s.config.MaxTicks > 0 && s.seq >= uint64(s.config.MaxTicks)
	s.mu.Unlock()

	// Demand is reset inside the task so a RequestRead queued behind it wins.
	ran := s.deliver(func(p stream.Pusher[*buffer.Slice[Tick]]) {
		if !p.Push(buffer.NewSlice(tick)) {
			s.mu.Lock()
			s.demand = 0
			s.mu.Unlock()
		}
		if last {
			p.End()
		}
	})
	return ran && !last
}

func (s *Source) deliver(fn func(stream.Pusher[*buffer.Slice[Tick]])) bool {
	ran := false
	s.ectx.Sync(func() {
		ran = true
		fn(s.Pusher())
	})
	return ran
}

func (t Tick) String() string {
	return fmt.Sprintf("tick %d at %s", t.Seq, t.Time.Format(time.RFC3339Nano))
}

var _ stream.Source[*buffer.Slice[Tick]] = (*Source)(nil)
