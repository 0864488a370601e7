package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vnykmshr/streamflow/pkg/async/future"
	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// ListSink appends each chunk as one list entry. A batch is a single RPUSH,
// so a batch lands in the list entirely or not at all. Close sets the
// "<key>:eof" marker that tells a ListSource the stream is complete.
type ListSink struct {
	rdb    goredis.UniversalClient
	key    string
	config Config
}

// Key returns the list key.
func (s *ListSink) Key() string { return s.key }

// Init implements stream.Sink.
func (s *ListSink) Init() {}

// WriteBatch implements stream.Sink.
func (s *ListSink) WriteBatch(chunks []*buffer.Bytes) *future.Future[future.Void] {
	values := make([]interface{}, 0, len(chunks))
	for _, c := range chunks {
		if c.Len() == 0 {
			continue
		}
		entry := make([]byte, c.Len())
		copy(entry, c.Elements())
		values = append(values, entry)
	}
	if len(values) == 0 {
		return future.Succeeded(future.Void{})
	}

	return future.Async(func() (future.Void, error) {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.OpTimeout)
		defer cancel()

		if err := s.rdb.RPush(ctx, s.key, values...).Err(); err != nil {
			s.config.Logger.Error().Err(err).Str("key", s.key).Int("entries", len(values)).Msg("rpush failed")
			return future.Void{}, sferrors.DriverWrite("redis.RPush", err)
		}
		return future.Void{}, nil
	})
}

// Close implements stream.Sink.
func (s *ListSink) Close() *future.Future[future.Void] {
	return future.Async(func() (future.Void, error) {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.OpTimeout)
		defer cancel()

		if err := s.rdb.Set(ctx, s.key+eofSuffix, "1", 0).Err(); err != nil {
			return future.Void{}, sferrors.DriverClose("redis.Set", err)
		}
		s.config.Logger.Debug().Str("key", s.key).Msg("list stream ended")
		return future.Void{}, nil
	})
}

var _ stream.Sink[*buffer.Bytes] = (*ListSink)(nil)
