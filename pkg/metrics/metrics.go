// Package metrics provides Prometheus instrumentation for streamflow components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	sferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
)

// Registry holds all metric instances for streamflow components.
//
// A nil *Registry is valid and records nothing, so components can hold one
// unconditionally.
type Registry struct {
	// Readable Metrics
	ChunksPushed  *prometheus.CounterVec
	UnitsRead     *prometheus.CounterVec
	BufferedUnits *prometheus.GaugeVec

	// Writable Metrics
	WriterBatches *prometheus.CounterVec
	WriterChunks  *prometheus.CounterVec
	QueueDepth    *prometheus.GaugeVec

	// Flow Metrics
	BackpressureEvents *prometheus.CounterVec
	PipeEvents         *prometheus.CounterVec
	StreamErrors       *prometheus.CounterVec

	// Driver Metrics
	DriverRetries *prometheus.CounterVec
	DriverDropped *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by streamflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	config := DefaultConfig()
	config.Registry = reg
	return NewRegistryWithConfig(config)
}

// NewRegistryWithConfig creates a registry from config. It returns nil when
// metrics are disabled.
func NewRegistryWithConfig(config Config) *Registry {
	if !config.Enabled {
		return nil
	}
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := config.Namespace
	if ns == "" {
		ns = "streamflow"
	}
	factory := promauto.With(reg)

	counter := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   subsystem,
				Name:        name,
				Help:        help,
				ConstLabels: config.Labels,
			},
			labels,
		)
	}
	gauge := func(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   subsystem,
				Name:        name,
				Help:        help,
				ConstLabels: config.Labels,
			},
			labels,
		)
	}

	return &Registry{
		// Readable Metrics
		ChunksPushed:  counter("readable", "chunks_pushed_total", "Total number of chunks pushed by source drivers", "stream"),
		UnitsRead:     counter("readable", "units_read_total", "Total number of units handed to consumers", "stream"),
		BufferedUnits: gauge("readable", "buffered_units", "Units currently buffered in a readable", "stream"),

		// Writable Metrics
		WriterBatches: counter("writable", "batches_total", "Total number of batches handed to sink drivers", "stream"),
		WriterChunks:  counter("writable", "chunks_total", "Total number of chunks handed to sink drivers", "stream"),
		QueueDepth:    gauge("writable", "queue_depth", "Flush operations queued or running", "stream"),

		// Flow Metrics
		BackpressureEvents: counter("backpressure", "events_total", "Total number of backpressure signals", "stream", "source"),
		PipeEvents:         counter("pipe", "events_total", "Total number of pipe and unpipe events", "stream", "event"),
		StreamErrors:       counter("stream", "errors_total", "Total number of stream errors by kind", "stream", "kind"),

		// Driver Metrics
		DriverRetries: counter("driver", "retries_total", "Total number of driver write retries", "driver"),
		DriverDropped: counter("driver", "dropped_total", "Total number of items a driver discarded", "driver"),
	}
}

// RecordPush records one pushed chunk and the resulting buffer level. full
// reports that the push crossed the high-water mark.
func (r *Registry) RecordPush(stream string, buffered int, full bool) {
	if r == nil {
		return
	}
	r.ChunksPushed.WithLabelValues(stream).Inc()
	r.BufferedUnits.WithLabelValues(stream).Set(float64(buffered))
	if full {
		r.BackpressureEvents.WithLabelValues(stream, "push").Inc()
	}
}

// RecordRead records units handed to a consumer and the remaining buffer level.
func (r *Registry) RecordRead(stream string, units, buffered int) {
	if r == nil {
		return
	}
	r.UnitsRead.WithLabelValues(stream).Add(float64(units))
	r.BufferedUnits.WithLabelValues(stream).Set(float64(buffered))
}

// RecordBatch records one WriteBatch call of the given size.
func (r *Registry) RecordBatch(stream string, chunks int) {
	if r == nil {
		return
	}
	r.WriterBatches.WithLabelValues(stream).Inc()
	r.WriterChunks.WithLabelValues(stream).Add(float64(chunks))
}

// RecordQueueDepth sets the current number of flush operations.
func (r *Registry) RecordQueueDepth(stream string, depth int) {
	if r == nil {
		return
	}
	r.QueueDepth.WithLabelValues(stream).Set(float64(depth))
}

// RecordBackpressure records a pause requested by a pipe or other consumer.
func (r *Registry) RecordBackpressure(stream, source string) {
	if r == nil {
		return
	}
	r.BackpressureEvents.WithLabelValues(stream, source).Inc()
}

// RecordPipe records a pipe lifecycle event ("pipe" or "unpipe").
func (r *Registry) RecordPipe(stream, event string) {
	if r == nil {
		return
	}
	r.PipeEvents.WithLabelValues(stream, event).Inc()
}

// RecordError records an error under its stream error kind.
func (r *Registry) RecordError(stream string, err error) {
	if r == nil || err == nil {
		return
	}
	r.StreamErrors.WithLabelValues(stream, sferrors.KindOf(err).String()).Inc()
}

// RecordDriverRetry records one retried driver operation.
func (r *Registry) RecordDriverRetry(driver string) {
	if r == nil {
		return
	}
	r.DriverRetries.WithLabelValues(driver).Inc()
}

// RecordDriverDrop records n items a driver discarded.
func (r *Registry) RecordDriverDrop(driver string, n int) {
	if r == nil {
		return
	}
	r.DriverDropped.WithLabelValues(driver).Add(float64(n))
}
