// Package metrics provides Prometheus instrumentation for fast-gzip components.
//
// Readers and writers accept an optional *Registry in their Config. A nil
// Registry disables collection, so the zero Config records nothing.
//
// # Quick Start
//
//	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)
//
//	cfg := reader.DefaultConfig()
//	cfg.Metrics = reg
//	r, err := reader.OpenWithConfig("access.log.gz", cfg)
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":9100", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry, namespace, or constant labels:
//
//	reg := metrics.NewRegistryWithConfig(metrics.Config{
//		Enabled:   true,
//		Registry:  prometheus.NewRegistry(),
//		Namespace: "ingest",
//		Labels:    prometheus.Labels{"host": hostname},
//	})
//
// # Available Metrics
//
// ## Reader Metrics
//
//   - fgzip_reader_chunks_total: decompressed chunks handed to the line parser
//   - fgzip_reader_bytes_total: decompressed bytes produced
//   - fgzip_reader_lines_total: lines returned to callers
//   - fgzip_reader_producer_retries_total: retried decompressor reads
//   - fgzip_reader_producer_failures_total: streams that ended with a decompression error
//   - fgzip_reader_chunk_wait_seconds: time the parser waited for the next chunk
//   - fgzip_reader_open: readers whose producer is still alive
//   - fgzip_backpressure_events_total: sends that waited on a full channel
//
// ## Writer Metrics
//
//   - fgzip_writer_flushes_total: buffer flushes into the compressor
//   - fgzip_writer_bytes_written_total: uncompressed bytes handed to the compressor
//   - fgzip_writer_errors_total: failed compressor writes
//
// # Labels
//
//   - reader_name, writer_name, channel_name: Config.Name of the component
//   - format: the configured compression format of a reader
package metrics
