// Package metrics provides Prometheus instrumentation for fast-gzip readers and writers.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for fast-gzip components.
//
// Every method is safe to call on a nil *Registry, which records nothing.
// Components hold a nil Registry unless metrics were configured.
type Registry struct {
	// Reader metrics
	ChunksProduced    *prometheus.CounterVec
	BytesDecompressed *prometheus.CounterVec
	LinesEmitted      *prometheus.CounterVec
	ProducerRetries   *prometheus.CounterVec
	ProducerFailures  *prometheus.CounterVec
	ChunkWaitTime     *prometheus.HistogramVec
	OpenReaders       *prometheus.GaugeVec

	// Channel metrics
	BackpressureEvents *prometheus.CounterVec

	// Writer metrics
	WriterFlushes      *prometheus.CounterVec
	WriterBytesWritten *prometheus.CounterVec
	WriterErrors       *prometheus.CounterVec
}

// DefaultRegistry returns the registry registered with
// prometheus.DefaultRegisterer, creating it on first use. The command line
// tool serves it on /metrics.
var DefaultRegistry = sync.OnceValue(func() *Registry {
	return NewRegistry(prometheus.DefaultRegisterer)
})

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	cfg := DefaultConfig()
	cfg.Registry = reg
	return NewRegistryWithConfig(cfg)
}

// NewRegistryWithConfig creates a registry honoring the namespace and constant
// labels of config. A disabled config yields a nil Registry.
func NewRegistryWithConfig(config Config) *Registry {
	if !config.Enabled {
		return nil
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Namespace == "" {
		config.Namespace = DefaultConfig().Namespace
	}

	factory := promauto.With(config.Registry)
	ns := config.Namespace
	labels := config.Labels

	return &Registry{
		ChunksProduced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "reader",
				Name:        "chunks_total",
				Help:        "Total number of decompressed chunks handed to the line parser",
				ConstLabels: labels,
			},
			[]string{"reader_name"},
		),

		BytesDecompressed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "reader",
				Name:        "bytes_total",
				Help:        "Total decompressed bytes produced",
				ConstLabels: labels,
			},
			[]string{"reader_name"},
		),

		LinesEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "reader",
				Name:        "lines_total",
				Help:        "Total number of lines returned to callers",
				ConstLabels: labels,
			},
			[]string{"reader_name"},
		),

		ProducerRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "reader",
				Name:        "producer_retries_total",
				Help:        "Total number of retried decompressor reads",
				ConstLabels: labels,
			},
			[]string{"reader_name"},
		),

		ProducerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "reader",
				Name:        "producer_failures_total",
				Help:        "Total number of streams that ended with a decompression error",
				ConstLabels: labels,
			},
			[]string{"reader_name"},
		),

		ChunkWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "reader",
				Name:        "chunk_wait_seconds",
				Help:        "Time the line parser spent waiting for the next chunk",
				Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 10),
				ConstLabels: labels,
			},
			[]string{"reader_name"},
		),

		OpenReaders: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "reader",
				Name:        "open",
				Help:        "Number of readers whose producer has not been torn down",
				ConstLabels: labels,
			},
			[]string{"format"},
		),

		BackpressureEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "backpressure",
				Name:        "events_total",
				Help:        "Total number of sends that waited on a full channel",
				ConstLabels: labels,
			},
			[]string{"channel_name"},
		),

		WriterFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "writer",
				Name:        "flushes_total",
				Help:        "Total number of writer flushes",
				ConstLabels: labels,
			},
			[]string{"writer_name"},
		),

		WriterBytesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "writer",
				Name:        "bytes_written_total",
				Help:        "Total uncompressed bytes handed to the compressor",
				ConstLabels: labels,
			},
			[]string{"writer_name"},
		),

		WriterErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "writer",
				Name:        "errors_total",
				Help:        "Total number of failed compressor writes",
				ConstLabels: labels,
			},
			[]string{"writer_name"},
		),
	}
}

// ChunkProduced records one chunk of n decompressed bytes.
func (r *Registry) ChunkProduced(name string, n int) {
	if r == nil {
		return
	}
	r.ChunksProduced.WithLabelValues(name).Inc()
	r.BytesDecompressed.WithLabelValues(name).Add(float64(n))
}

func (r *Registry) ProducerRetry(name string) {
	if r == nil {
		return
	}
	r.ProducerRetries.WithLabelValues(name).Inc()
}

func (r *Registry) ProducerFailure(name string) {
	if r == nil {
		return
	}
	r.ProducerFailures.WithLabelValues(name).Inc()
}

func (r *Registry) LineEmitted(name string) {
	if r == nil {
		return
	}
	r.LinesEmitted.WithLabelValues(name).Inc()
}

// ChunkWait observes how long a receive on the chunk channel blocked.
func (r *Registry) ChunkWait(name string, d time.Duration) {
	if r == nil {
		return
	}
	r.ChunkWaitTime.WithLabelValues(name).Observe(d.Seconds())
}

func (r *Registry) Backpressure(name string) {
	if r == nil {
		return
	}
	r.BackpressureEvents.WithLabelValues(name).Inc()
}

// ReaderOpened and ReaderClosed bracket the lifetime of a reader's producer.
func (r *Registry) ReaderOpened(format string) {
	if r == nil {
		return
	}
	r.OpenReaders.WithLabelValues(format).Inc()
}

func (r *Registry) ReaderClosed(format string) {
	if r == nil {
		return
	}
	r.OpenReaders.WithLabelValues(format).Dec()
}

// WriterFlushed records a flush that handed n bytes to the compressor.
func (r *Registry) WriterFlushed(name string, n int) {
	if r == nil {
		return
	}
	r.WriterFlushes.WithLabelValues(name).Inc()
	r.WriterBytesWritten.WithLabelValues(name).Add(float64(n))
}

func (r *Registry) WriterError(name string) {
	if r == nil {
		return
	}
	r.WriterErrors.WithLabelValues(name).Inc()
}
