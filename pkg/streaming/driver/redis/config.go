package redis

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/streamflow/pkg/common/validation"
)

// Config holds Redis connection and list driver configuration.
type Config struct {
	// Addr is the Redis server address (host:port).
	Addr string `mapstructure:"addr"`

	// Password is the Redis server password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`

	// DialTimeout bounds connection setup and the initial ping.
	// Default: 5s
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// OpTimeout bounds each list command issued by a sink or source.
	// Default: 5s
	OpTimeout time.Duration `mapstructure:"op_timeout"`

	// PollInterval is how long a source waits before polling an empty list again.
	// Default: 50ms
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// PopCount caps how many entries a source pops per command.
	// Default: 64
	PopCount int `mapstructure:"pop_count"`

	// Logger receives driver logs. Default: zerolog.Nop().
	Logger zerolog.Logger `mapstructure:"-"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		OpTimeout:    5 * time.Second,
		PollInterval: 50 * time.Millisecond,
		PopCount:     64,
		Logger:       zerolog.Nop(),
	}
}

// applyDefaults sets defaults for zero-valued fields.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.OpTimeout == 0 {
		c.OpTimeout = d.OpTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = d.PollInterval
	}
	if c.PopCount == 0 {
		c.PopCount = d.PopCount
	}
}

func (c Config) validate() error {
	if err := validation.ValidateNonNegative("redis", "DB", c.DB); err != nil {
		return err
	}
	if err := validation.ValidatePositive("redis", "PopCount", c.PopCount); err != nil {
		return err
	}
	if err := validation.ValidatePositive("redis", "OpTimeout", int(c.OpTimeout)); err != nil {
		return err
	}
	return validation.ValidatePositive("redis", "PollInterval", int(c.PollInterval))
}
