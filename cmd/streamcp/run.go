package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/streamflow/pkg/async/execution"
	"github.com/vnykmshr/streamflow/pkg/async/future"
	"github.com/vnykmshr/streamflow/pkg/metrics"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
	"github.com/vnykmshr/streamflow/pkg/streaming/driver/file"
	"github.com/vnykmshr/streamflow/pkg/streaming/driver/iox"
	"github.com/vnykmshr/streamflow/pkg/streaming/driver/redis"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// copier owns the resources of one copy.
type copier struct {
	cfg  Config
	log  zerolog.Logger
	ectx *execution.Serial

	redis    *redis.Client
	cleanups []func()
}

// run copies cfg.From to cfg.To and returns once the destination has
// finished, either stream failed, or ctx is done.
func run(ctx context.Context, cfg Config, log zerolog.Logger) error {
	from, err := parseEndpoint(cfg.From)
	if err != nil {
		return err
	}
	to, err := parseEndpoint(cfg.To)
	if err != nil {
		return err
	}

	c := &copier{
		cfg:  cfg,
		log:  log,
		ectx: execution.NewSerialWithConfig(execution.SerialConfig{Name: "streamcp", Logger: log}),
	}
	defer c.close()

	if cfg.MetricsAddr != "" {
		c.serveMetrics(cfg.MetricsAddr)
	}

	r, err := c.openReadable(ctx, from)
	if err != nil {
		return err
	}
	w, err := c.openWritable(ctx, to)
	if err != nil {
		return err
	}

	done := future.NewPromise[future.Void]()
	w.Events().Finish.Once(func(future.Void) { done.Success(future.Void{}) })
	w.Events().Error.Once(func(err error) { done.Fail(err) })

	start := time.Now()
	if _, err := r.PipeWithConfig(w, stream.PipeConfig{End: true, MaxQueueDepth: cfg.MaxQueueDepth}); err != nil {
		return err
	}
	r.Resume()
	log.Info().Stringer("from", from).Stringer("to", to).Msg("copy started")

	if _, err := done.Future().Await(ctx); err != nil {
		r.UnpipeAll()
		return err
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("copy finished")
	return nil
}

func (c *copier) readableConfig(name string) stream.ReadableConfig {
	config := stream.DefaultReadableConfig()
	config.HighWaterMark = c.cfg.HighWaterMark
	config.Name = name
	config.Logger = c.log
	config.Metrics = metrics.DefaultRegistry
	return config
}

func (c *copier) writableConfig(name string) stream.WritableConfig {
	config := stream.DefaultWritableConfig()
	config.Name = name
	config.Logger = c.log
	config.Metrics = metrics.DefaultRegistry
	return config
}

func (c *copier) openReadable(ctx context.Context, e endpoint) (*stream.BytesReadable, error) {
	reader := iox.ReaderConfig{ChunkSize: c.cfg.ChunkSize, Logger: c.log}

	switch e.kind {
	case kindFile:
		f, err := c.openFile(ctx, e.target, file.ReadOnly)
		if err != nil {
			return nil, err
		}
		return f.ReadStreamWithConfig(c.readableConfig(e.String()), reader)

	case kindRedis:
		client, err := c.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		src, err := client.ListSource(c.ectx, e.target)
		if err != nil {
			return nil, err
		}
		c.cleanups = append(c.cleanups, src.Stop)
		return stream.NewSliceReadableWithConfig[byte](c.ectx, src, c.readableConfig(e.String()))

	default:
		src, err := iox.NewReaderSourceWithConfig(c.ectx, os.Stdin, reader)
		if err != nil {
			return nil, err
		}
		c.cleanups = append(c.cleanups, src.Stop)
		return stream.NewSliceReadableWithConfig[byte](c.ectx, src, c.readableConfig("stdin"))
	}
}

func (c *copier) openWritable(ctx context.Context, e endpoint) (*stream.BytesWritable, error) {
	writer := iox.DefaultWriterConfig()
	writer.Logger = c.log
	writer.Metrics = metrics.DefaultRegistry

	switch e.kind {
	case kindFile:
		f, err := c.openFile(ctx, e.target, file.WriteOnly|file.Create|file.Truncate)
		if err != nil {
			return nil, err
		}
		return f.WriteStreamWithConfig(c.writableConfig(e.String()), writer)

	case kindRedis:
		client, err := c.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		sink, err := client.ListSink(ctx, e.target)
		if err != nil {
			return nil, err
		}
		return stream.NewWritableWithConfig[byte](c.ectx, stream.Sink[*buffer.Bytes](sink), c.writableConfig(e.String()))

	default:
		writer.CloseUnderlying = false
		sink, err := iox.NewWriterSinkWithConfig(os.Stdout, writer)
		if err != nil {
			return nil, err
		}
		return stream.NewWritableWithConfig[byte](c.ectx, stream.Sink[*buffer.Bytes](sink), c.writableConfig("stdout"))
	}
}

func (c *copier) openFile(ctx context.Context, path string, mode file.Mode) (*file.File, error) {
	config := file.DefaultConfig()
	config.Logger = c.log
	f, err := file.OpenWithConfig(c.ectx, path, mode, config).Await(ctx)
	if err != nil {
		return nil, err
	}
	c.cleanups = append(c.cleanups, func() {
		if _, err := f.Close().Await(context.Background()); err != nil {
			c.log.Warn().Err(err).Str("path", path).Msg("close failed")
		}
	})
	return f, nil
}

func (c *copier) redisClient(ctx context.Context) (*redis.Client, error) {
	if c.redis != nil {
		return c.redis, nil
	}
	config := c.cfg.Redis
	config.Logger = c.log
	client, err := redis.Open(ctx, config).Await(ctx)
	if err != nil {
		return nil, err
	}
	c.redis = client
	return client, nil
}

func (c *copier) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	c.cleanups = append(c.cleanups, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

// close releases resources in reverse order of acquisition and then drains
// the execution context.
func (c *copier) close() {
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		c.cleanups[i]()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.log.Warn().Err(err).Msg("redis close failed")
		}
	}
	<-c.ectx.Close()
}

