package signals

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/saturn77/mobius-go/internal/queue"
)

// Slot is the consumer handle of a signal/slot pair. Exactly one of
// Start, StartContext, or direct consumption of Events() may be used.
type Slot[E any] struct {
	q *queue.Queue[E]

	started atomic.Bool
	done    chan struct{}
	closeMu sync.Once

	logger *slog.Logger
}

func newSlot[E any](q *queue.Queue[E]) *Slot[E] {
	return &Slot[E]{
		q:      q,
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
}

// WithLogger sets the logger used to report handler panics. Returns the
// slot for chaining; call before Start.
func (s *Slot[E]) WithLogger(l *slog.Logger) *Slot[E] {
	if l != nil {
		s.logger = l
	}
	return s
}

// Start spawns the worker goroutine. It drains the queue and invokes fn
// serially for each event; a slow handler backs pressure into the queue.
// A panicking handler is recovered and logged, and the worker keeps
// draining. Start panics if the slot was already started.
func (s *Slot[E]) Start(fn func(E)) {
	if s.started.Swap(true) {
		panic("signals: slot already started")
	}
	go func() {
		defer close(s.done)
		for e := range s.q.C() {
			s.invoke(fn, e)
		}
	}()
}

// StartContext spawns a worker bound to ctx. The handler receives ctx and
// each drained event; when ctx is done the worker stops pulling and
// exits, leaving any in-flight handler to run to completion. Queued
// events remaining at cancellation are dropped.
func (s *Slot[E]) StartContext(ctx context.Context, fn func(context.Context, E)) {
	if s.started.Swap(true) {
		panic("signals: slot already started")
	}
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-s.q.C():
				if !ok {
					return
				}
				s.invoke(func(e E) { fn(ctx, e) }, e)
			}
		}
	}()
}

func (s *Slot[E]) invoke(fn func(E), e E) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("signals: handler panicked",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn(e)
}

// Events exposes the slot's queue for direct consumption, for callers
// that drain the slot themselves instead of binding a handler. The
// channel closes after Close once buffered events are consumed.
// Single-consumer: do not combine with Start/StartContext.
func (s *Slot[E]) Events() <-chan E {
	return s.q.C()
}

// Close closes the queue. Signals see send failures from this point on;
// events already queued are still delivered to the worker before it
// exits. Close is idempotent.
func (s *Slot[E]) Close() {
	s.closeMu.Do(func() {
		s.q.Close()
	})
}

// Done is closed when the worker goroutine has exited. It never closes
// if the slot was not started.
func (s *Slot[E]) Done() <-chan struct{} {
	return s.done
}
