package redis

import (
	"context"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vnykmshr/streamflow/pkg/async/execution"
	"github.com/vnykmshr/streamflow/pkg/async/future"
	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
	"github.com/vnykmshr/streamflow/pkg/common/validation"
)

// eofSuffix names the key a ListSink sets when its stream ends.
const eofSuffix = ":eof"

// Client is a connected Redis client that hands out list sinks and sources.
type Client struct {
	rdb    goredis.UniversalClient
	config Config

	mu     sync.Mutex
	closed bool
}

// Open connects to Redis and verifies the connection with PING. Failures
// complete the future with a driver open error.
func Open(ctx context.Context, config Config) *future.Future[*Client] {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return future.Failed[*Client](sferrors.DriverOpen("redis.Open", err))
	}

	return future.Async(func() (*Client, error) {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:        config.Addr,
			Password:    config.Password,
			DB:          config.DB,
			DialTimeout: config.DialTimeout,
		})

		pingCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			config.Logger.Error().Err(err).Str("addr", config.Addr).Msg("redis ping failed")
			return nil, sferrors.DriverOpen("redis.Open", fmt.Errorf("ping %s: %w", config.Addr, err))
		}

		config.Logger.Debug().Str("addr", config.Addr).Int("db", config.DB).Msg("redis client connected")
		return &Client{rdb: rdb, config: config}, nil
	})
}

// NewClient wraps an existing go-redis client. Closing the returned Client
// closes rdb.
func NewClient(rdb goredis.UniversalClient, config Config) (*Client, error) {
	if err := validation.ValidateNotNil("redis", "Client", rdb); err != nil {
		return nil, err
	}
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Client{rdb: rdb, config: config}, nil
}

// ListSink returns a sink appending chunks to the list at key. Any end
// marker left on key by an earlier stream is removed first.
func (c *Client) ListSink(ctx context.Context, key string) (*ListSink, error) {
	if err := validation.ValidateNotEmpty("redis", "Key", key); err != nil {
		return nil, err
	}
	if err := c.rdb.Del(ctx, key+eofSuffix).Err(); err != nil {
		return nil, sferrors.DriverOpen("redis.ListSink", err)
	}
	return &ListSink{rdb: c.rdb, key: key, config: c.config}, nil
}

// ListSource returns a source popping chunks from the list at key. ectx must
// be the execution context of the readable the source is attached to.
func (c *Client) ListSource(ectx execution.Context, key string) (*ListSource, error) {
	if err := validation.ValidateNotNil("redis", "Context", ectx); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotEmpty("redis", "Key", key); err != nil {
		return nil, err
	}
	return newListSource(ectx, c.rdb, key, c.config), nil
}

// Unwrap returns the underlying go-redis client.
func (c *Client) Unwrap() goredis.UniversalClient {
	return c.rdb
}

// Close closes the connection. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.rdb.Close()
}
