package reactive

import (
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/saturn77/mobius-go/internal/queue"
)

// PanicHandler is invoked when a change callback panics on its monitor
// goroutine. The stack is captured at the recovery point.
type PanicHandler func(recovered any, stack []byte)

var (
	panicMu sync.RWMutex
	panicFn PanicHandler = func(recovered any, stack []byte) {
		slog.Error("reactive: change callback panicked",
			"panic", recovered,
			"stack", string(stack))
	}
)

// SetPanicHandler replaces the package-wide handler for callback panics.
// Passing nil restores logging via slog.
func SetPanicHandler(fn PanicHandler) {
	panicMu.Lock()
	defer panicMu.Unlock()
	if fn == nil {
		fn = func(recovered any, stack []byte) {
			slog.Error("reactive: change callback panicked",
				"panic", recovered,
				"stack", string(stack))
		}
	}
	panicFn = fn
}

func handlePanic(recovered any, stack []byte) {
	panicMu.RLock()
	fn := panicFn
	panicMu.RUnlock()
	fn(recovered, stack)
}

// Subscription ties a change callback to the monitor goroutine that runs
// it. Every write to the observed value pushes one ping onto the
// subscription's queue; the monitor drains pings and invokes the callback
// once per ping, serialized.
//
// Cancel stops the monitor. A panicking callback terminates its own
// monitor (reported through the panic handler) without affecting other
// subscribers.
type Subscription struct {
	id    uint64
	pings *queue.Queue[struct{}]
	done  chan struct{}
	once  sync.Once
}

func newSubscription(fn func()) *Subscription {
	s := &Subscription{
		id:    nextID(),
		pings: queue.New[struct{}](),
		done:  make(chan struct{}),
	}
	go s.monitor(fn)
	return s
}

// newCanceledSubscription returns a subscription whose monitor never ran,
// for registrations against an already-closed observable.
func newCanceledSubscription() *Subscription {
	s := &Subscription{
		id:    nextID(),
		pings: queue.New[struct{}](),
		done:  make(chan struct{}),
	}
	s.pings.Close()
	close(s.done)
	return s
}

func (s *Subscription) monitor(fn func()) {
	defer close(s.done)
	// A monitor lost to a panic must also stop its queue so the
	// observable prunes the subscription on the next write.
	defer s.Cancel()
	defer func() {
		if r := recover(); r != nil {
			handlePanic(r, debug.Stack())
		}
	}()
	for range s.pings.C() {
		fn()
	}
}

// ping wakes the monitor once. Reports false when the subscription has
// been canceled.
func (s *Subscription) ping() bool {
	return s.pings.Push(struct{}{})
}

// ID returns the unique identifier for this subscription.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Cancel detaches the callback. Pings already queued are still delivered;
// the monitor exits afterwards. Cancel is idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.pings.Close()
	})
}

// Done is closed once the monitor goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
