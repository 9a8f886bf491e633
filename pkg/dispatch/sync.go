package dispatch

import (
	"runtime/debug"
	"sync"
	"time"
)

// SyncDispatcher maps channel names to handler lists and fans events out
// inline on the calling goroutine. Handlers run in registration order;
// the table lock is released before any handler runs, so handlers may
// register further slots or send further events.
//
// There is no unregister: a registered handler lives as long as the
// dispatcher.
type SyncDispatcher[E any] struct {
	mu    sync.Mutex
	slots map[string][]func(E)

	conf config
}

// NewSyncDispatcher creates an empty dispatcher.
func NewSyncDispatcher[E any](opts ...Option) *SyncDispatcher[E] {
	conf := defaultOptions()
	for _, opt := range opts {
		opt(&conf)
	}
	return &SyncDispatcher[E]{
		slots: make(map[string][]func(E)),
		conf:  conf,
	}
}

// RegisterSlot appends fn to the handler list for name.
func (d *SyncDispatcher[E]) RegisterSlot(name string, fn func(E)) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slots[name] = append(d.slots[name], fn)
}

// Send invokes every handler registered under name with e, in
// registration order, on the caller's goroutine. A panicking handler is
// recovered and logged; the remaining handlers still run.
func (d *SyncDispatcher[E]) Send(name string, e E) {
	d.mu.Lock()
	registered := d.slots[name]
	handlers := make([]func(E), len(registered))
	copy(handlers, registered)
	d.mu.Unlock()

	if len(handlers) == 0 {
		d.conf.metrics.RecordDrop(name, "no_handlers")
		return
	}

	start := time.Now()
	status := "success"
	for _, fn := range handlers {
		if panicked := d.invoke(fn, e); panicked {
			status = "panic"
		}
	}
	d.conf.metrics.ObserveDispatch(name, status, time.Since(start))
}

func (d *SyncDispatcher[E]) invoke(fn func(E), e E) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			d.conf.metrics.RecordPanic()
			d.conf.logger.Error("dispatch: sync handler panicked",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn(e)
	return false
}
