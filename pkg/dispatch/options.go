package dispatch

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/saturn77/mobius-go/pkg/metrics"
)

const defaultNoticeBuffer = 64

type config struct {
	logger       *slog.Logger
	metrics      *metrics.Dispatch
	tracer       trace.Tracer
	noticeBuffer int
}

func defaultOptions() config {
	return config{
		logger:       slog.Default(),
		noticeBuffer: defaultNoticeBuffer,
	}
}

// Option configures a dispatcher or runtime.
type Option func(*config)

// WithLogger sets the logger used for dropped events and handler panics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics attaches Prometheus collectors. Nil disables recording.
func WithMetrics(m *metrics.Dispatch) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithTracer enables an OpenTelemetry span per handled event, using the
// named tracer from the global provider.
func WithTracer(name string) Option {
	return func(c *config) {
		c.tracer = otel.Tracer(name)
	}
}

// WithNoticeBuffer sets the lifecycle channel capacity (default 64).
// Notices that would overflow the buffer are dropped and logged, so a
// consumer that needs every notice must keep draining.
func WithNoticeBuffer(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.noticeBuffer = n
		}
	}
}
