package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/saturn77/mobius-go/pkg/signals"
)

// Routed is implemented by event types that participate in the async
// runtime; the returned string selects the handler.
type Routed interface {
	Route() string
}

// NoticeKind distinguishes the lifecycle stages of a routed event.
type NoticeKind uint8

const (
	// NoticeLoading is emitted just before a handler runs.
	NoticeLoading NoticeKind = iota + 1

	// NoticeSuccess is emitted after a handler returns normally.
	NoticeSuccess
)

// String returns a human-readable name for the notice kind.
func (k NoticeKind) String() string {
	switch k {
	case NoticeLoading:
		return "loading"
	case NoticeSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Notice is one lifecycle emission on the runtime's auxiliary channel.
// Every successfully handled event produces exactly one Loading followed
// by exactly one Success for its route.
type Notice struct {
	Kind  NoticeKind
	Route string
}

// Runtime dispatches routed events to registered handlers, one at a
// time, on the goroutine running Run. Events whose route has no handler
// are dropped silently; events submitted after shutdown are never
// handled.
type Runtime[E Routed] struct {
	sig  *signals.Signal[E]
	slot *signals.Slot[E]

	hmu      sync.RWMutex
	handlers map[string]func(context.Context, E)

	notices  chan Notice
	shutdown chan struct{}
	sdOnce   sync.Once

	conf config
}

// Handle is the producer side of a Runtime: it submits events and
// requests shutdown. Handles are safe for concurrent use.
type Handle[E Routed] struct {
	rt *Runtime[E]
}

// NewRuntime creates a runtime together with its handle and lifecycle
// channel. The lifecycle channel is closed when Run returns.
func NewRuntime[E Routed](opts ...Option) (*Runtime[E], *Handle[E], <-chan Notice) {
	conf := defaultOptions()
	for _, opt := range opts {
		opt(&conf)
	}

	sig, slot := signals.NewPair[E]()
	r := &Runtime[E]{
		sig:      sig,
		slot:     slot,
		handlers: make(map[string]func(context.Context, E)),
		notices:  make(chan Notice, conf.noticeBuffer),
		shutdown: make(chan struct{}),
		conf:     conf,
	}
	return r, &Handle[E]{rt: r}, r.notices
}

// RegisterHandler binds fn to a route. Registering the same route again
// replaces the previous handler (last write wins).
func (r *Runtime[E]) RegisterHandler(route string, fn func(context.Context, E)) {
	r.hmu.Lock()
	defer r.hmu.Unlock()
	r.handlers[route] = fn
}

// Run drains the slot until shutdown is requested or ctx is done. Each
// event is handled to completion before the next is pulled; in-flight
// handlers are never cancelled, only the pull of the next event is
// suppressed. On return the slot is closed and the lifecycle channel is
// closed.
func (r *Runtime[E]) Run(ctx context.Context) {
	defer close(r.notices)
	defer r.slot.Close()

	for {
		select {
		case <-r.shutdown:
			return
		case <-ctx.Done():
			return
		case e, ok := <-r.slot.Events():
			if !ok {
				return
			}
			r.dispatch(ctx, e)
		}
	}
}

func (r *Runtime[E]) dispatch(ctx context.Context, e E) {
	// The select above picks arbitrarily among ready cases; re-check so
	// an event racing a shutdown request is dropped, not handled.
	select {
	case <-r.shutdown:
		return
	default:
	}

	r.conf.metrics.SetQueueDepth(r.sig.Pending())

	route := e.Route()
	r.hmu.RLock()
	fn, ok := r.handlers[route]
	r.hmu.RUnlock()
	if !ok {
		r.conf.metrics.RecordDrop(route, "unknown_route")
		r.conf.logger.Debug("dispatch: no handler for route", "route", route)
		return
	}

	r.emit(Notice{Kind: NoticeLoading, Route: route})

	hctx := ctx
	var span trace.Span
	if r.conf.tracer != nil {
		hctx, span = r.conf.tracer.Start(ctx, "mobius.dispatch",
			trace.WithAttributes(attribute.String("mobius.route", route)))
	}

	start := time.Now()
	panicked := r.invoke(hctx, fn, e)
	elapsed := time.Since(start)

	if span != nil {
		if panicked {
			span.SetStatus(codes.Error, "handler panicked")
		}
		span.End()
	}

	if panicked {
		r.conf.metrics.RecordPanic()
		r.conf.metrics.ObserveDispatch(route, "panic", elapsed)
		return
	}
	r.conf.metrics.ObserveDispatch(route, "success", elapsed)
	r.emit(Notice{Kind: NoticeSuccess, Route: route})
}

// emit delivers a lifecycle notice without ever blocking the dispatch
// loop. A consumer that stops draining loses notices, not events.
func (r *Runtime[E]) emit(n Notice) {
	select {
	case r.notices <- n:
	default:
		r.conf.logger.Warn("dispatch: lifecycle notice dropped",
			"kind", n.Kind.String(),
			"route", n.Route)
	}
}

func (r *Runtime[E]) invoke(ctx context.Context, fn func(context.Context, E), e E) (panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
			r.conf.logger.Error("dispatch: handler panicked",
				"route", e.Route(),
				"panic", rec,
				"stack", string(debug.Stack()))
		}
	}()
	fn(ctx, e)
	return false
}

// Send submits an event. While shutdown is pending the event is dropped
// silently; after Run has returned the send reports the slot as closed.
func (h *Handle[E]) Send(e E) error {
	select {
	case <-h.rt.shutdown:
		return nil
	default:
	}
	return h.rt.sig.Send(e)
}

// Shutdown requests cooperative shutdown. The in-flight handler (if any)
// runs to completion; Run then returns. Shutdown is idempotent and safe
// from any goroutine.
func (h *Handle[E]) Shutdown() {
	h.rt.sdOnce.Do(func() {
		close(h.rt.shutdown)
	})
}
