// Package metrics provides Prometheus instrumentation for streamflow components.
//
// Readables, writables and drivers accept a *Registry in their configuration.
// A nil registry disables collection, which is the default for every
// component; metrics are opt-in.
//
// # Quick Start
//
//	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)
//
//	cfg := stream.DefaultReadableConfig()
//	cfg.Metrics = reg
//	r, err := stream.NewSliceReadableWithConfig[int](ectx, src, cfg)
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation, or change the namespace:
//
//	reg := metrics.NewRegistryWithConfig(metrics.Config{
//		Enabled:   true,
//		Registry:  prometheus.NewRegistry(),
//		Namespace: "ingest",
//		Labels:    prometheus.Labels{"service": "importer"},
//	})
//
// # Available Metrics
//
// ## Readable Metrics
//
//   - streamflow_readable_chunks_pushed_total{stream}: chunks pushed by source drivers
//   - streamflow_readable_units_read_total{stream}: units handed to consumers
//   - streamflow_readable_buffered_units{stream}: units currently buffered
//
// ## Writable Metrics
//
//   - streamflow_writable_batches_total{stream}: WriteBatch calls
//   - streamflow_writable_chunks_total{stream}: chunks handed to sinks
//   - streamflow_writable_queue_depth{stream}: flush operations queued or running
//
// ## Flow Metrics
//
//   - streamflow_backpressure_events_total{stream,source}: pushes over the
//     high-water mark (source="push") and pipe pauses (source="pipe")
//   - streamflow_pipe_events_total{stream,event}: pipe and unpipe events
//   - streamflow_stream_errors_total{stream,kind}: errors by kind
//
// ## Driver Metrics
//
//   - streamflow_driver_retries_total{driver}: retried driver writes
//   - streamflow_driver_dropped_total{driver}: items a driver discarded
//
// The stream label is the stream's name when one is configured, otherwise
// its UUID.
package metrics
