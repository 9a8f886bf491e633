// Package metrics provides Prometheus instrumentation for the dispatch
// layer. Collectors are created via NewDispatch and handed to dispatchers
// and the async runtime; expose them with promhttp in the host process.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the dispatch metrics collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "mobius").
	Namespace string

	// Subsystem is the metrics subsystem (default: "dispatch").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for dispatch duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Option configures the dispatch metrics collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "mobius",
		Subsystem: "dispatch",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Dispatch holds the collectors for event dispatch.
type Dispatch struct {
	eventsTotal   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	handlerPanics prometheus.Counter
	queueDepth    prometheus.Gauge
}

// NewDispatch creates and registers the dispatch collectors.
//
// Metrics:
//   - <ns>_<sub>_events_total{route, status}: events by route and outcome
//   - <ns>_<sub>_duration_seconds{route}: handler execution duration
//   - <ns>_<sub>_handler_panics_total: recovered handler panics
//   - <ns>_<sub>_queue_depth: events queued but not yet handled
func NewDispatch(opts ...Option) *Dispatch {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Dispatch{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_total",
			Help:        "Total number of events dispatched",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "duration_seconds",
			Help:        "Handler execution duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		handlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handler_panics_total",
			Help:        "Total number of recovered handler panics",
			ConstLabels: config.ConstLabels,
		}),

		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "queue_depth",
			Help:        "Events queued but not yet handled",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// ObserveDispatch records one dispatched event.
func (d *Dispatch) ObserveDispatch(route, status string, elapsed time.Duration) {
	if d == nil {
		return
	}
	d.eventsTotal.WithLabelValues(route, status).Inc()
	d.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RecordDrop records an event dropped without a handler run.
func (d *Dispatch) RecordDrop(route, reason string) {
	if d == nil {
		return
	}
	d.eventsTotal.WithLabelValues(route, reason).Inc()
}

// RecordPanic records a recovered handler panic.
func (d *Dispatch) RecordPanic() {
	if d == nil {
		return
	}
	d.handlerPanics.Inc()
}

// SetQueueDepth updates the queue depth gauge.
func (d *Dispatch) SetQueueDepth(n int) {
	if d == nil {
		return
	}
	d.queueDepth.Set(float64(n))
}
