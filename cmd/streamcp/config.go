package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/streaming/driver/redis"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

const envPrefix = "STREAMCP"

// Config is the resolved streamcp configuration.
// Precedence: flags, then STREAMCP_* environment, then the config file, then defaults.
type Config struct {
	From          string       `mapstructure:"from"`
	To            string       `mapstructure:"to"`
	HighWaterMark int          `mapstructure:"high_water_mark"`
	MaxQueueDepth int          `mapstructure:"max_queue_depth"`
	ChunkSize     int          `mapstructure:"chunk_size"`
	MetricsAddr   string       `mapstructure:"metrics_addr"`
	LogLevel      string       `mapstructure:"log_level"`
	LogFormat     string       `mapstructure:"log_format"`
	Redis         redis.Config `mapstructure:"redis"`
}

func (c Config) validate() error {
	if err := validation.ValidateNotEmpty("streamcp", "from", c.From); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty("streamcp", "to", c.To); err != nil {
		return err
	}
	if err := validation.ValidatePositive("streamcp", "high_water_mark", c.HighWaterMark); err != nil {
		return err
	}
	if err := validation.ValidatePositive("streamcp", "chunk_size", c.ChunkSize); err != nil {
		return err
	}
	return validation.ValidateNonNegative("streamcp", "max_queue_depth", c.MaxQueueDepth)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("streamcp", pflag.ContinueOnError)
	fs.String("from", "", "source endpoint: file:<path>, redis:<key> or - for stdin")
	fs.String("to", "", "destination endpoint: file:<path>, redis:<key> or - for stdout")
	fs.Int("high-water-mark", stream.DefaultBytesHighWaterMark, "readable buffer threshold in bytes")
	fs.Int("max-queue-depth", 4, "pause the source while this many flushes are queued (0 disables)")
	fs.Int("chunk-size", 32*1024, "read size for file and stdin sources")
	fs.String("redis-addr", redis.DefaultConfig().Addr, "redis server address")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address while copying")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-format", "console", "log format: console or json")
	fs.String("config", "", "config file (yaml, json or toml)")
	fs.String("env-file", "", "dotenv file loaded before reading the environment (default .env if present)")
	return fs
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"from":            "from",
	"to":              "to",
	"high-water-mark": "high_water_mark",
	"max-queue-depth": "max_queue_depth",
	"chunk-size":      "chunk_size",
	"redis-addr":      "redis.addr",
	"metrics-addr":    "metrics_addr",
	"log-level":       "log_level",
	"log-format":      "log_format",
}

func loadConfig(args []string) (Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	envFile, _ := fs.GetString("env-file")
	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	rd := redis.DefaultConfig()
	v.SetDefault("high_water_mark", stream.DefaultBytesHighWaterMark)
	v.SetDefault("max_queue_depth", 4)
	v.SetDefault("chunk_size", 32*1024)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("from", "")
	v.SetDefault("to", "")
	v.SetDefault("redis.addr", rd.Addr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", rd.DialTimeout)
	v.SetDefault("redis.op_timeout", rd.OpTimeout)
	v.SetDefault("redis.poll_interval", rd.PollInterval)
	v.SetDefault("redis.pop_count", rd.PopCount)
}

// loadEnvFile loads path, or ./.env when path is empty and the file exists.
// Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// endpoint is a parsed --from or --to value.
type endpoint struct {
	kind   string
	target string
}

const (
	kindFile  = "file"
	kindRedis = "redis"
	kindStdio = "stdio"
)

func parseEndpoint(s string) (endpoint, error) {
	if s == "-" {
		return endpoint{kind: kindStdio}, nil
	}
	kind, target, ok := strings.Cut(s, ":")
	if !ok || target == "" {
		return endpoint{}, fmt.Errorf("endpoint %q: want file:<path>, redis:<key> or -", s)
	}
	switch kind {
	case kindFile, kindRedis:
		return endpoint{kind: kind, target: target}, nil
	default:
		return endpoint{}, fmt.Errorf("endpoint %q: unknown scheme %q", s, kind)
	}
}

func (e endpoint) String() string {
	if e.kind == kindStdio {
		return "-"
	}
	return e.kind + ":" + e.target
}

