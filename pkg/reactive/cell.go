package reactive

import "sync"

// Cell is a thread-safe container for a single value of arbitrary type.
// Readers observe either the pre-write or post-write value, never a torn
// intermediate. Every completed write pings each registered subscriber
// exactly once; notifications are dispatched with the value lock released,
// so a subscriber may read the cell it observes without deadlocking.
//
// By default a write whose value equals the old value still notifies.
// WithEquality opts a cell into dedup for callers that want
// change-only semantics.
type Cell[T any] struct {
	base core

	mu    sync.RWMutex
	value T

	// equal, when non-nil, suppresses notification for writes that
	// compare equal to the current value.
	equal func(T, T) bool
}

// NewCell creates a cell containing the given initial value.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		base: core{
			id: nextID(),
		},
		value: initial,
	}
}

// Get returns a copy of the current value. It never fails.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the current value and notifies subscribers. The value lock
// is released before notification.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	if c.equal != nil && c.equal(c.value, v) {
		c.mu.Unlock()
		return
	}
	c.value = v
	c.mu.Unlock()

	c.base.notify()
}

// Update atomically reads and replaces the value, then notifies. If fn
// panics the lock is released, the stored value is unchanged, and no
// notification fires; the panic propagates to the caller.
func (c *Cell[T]) Update(fn func(T) T) {
	changed := true
	func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		next := fn(c.value)
		if c.equal != nil && c.equal(c.value, next) {
			changed = false
			return
		}
		c.value = next
	}()
	if changed {
		c.base.notify()
	}
}

// WithLock gives fn exclusive access to the stored value for in-place
// mutation. The lock is held only for the duration of fn; one
// notification fires after it returns. A panic inside fn releases the
// lock, skips the notification, and propagates.
func (c *Cell[T]) WithLock(fn func(*T)) {
	func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		fn(&c.value)
	}()
	c.base.notify()
}

// OnChange registers fn to run after every write. The callback runs on a
// dedicated monitor goroutine, serialized per subscription; there is no
// ordering guarantee between subscriptions. Cancel the returned
// subscription to detach.
func (c *Cell[T]) OnChange(fn func()) *Subscription {
	return c.base.attach(fn)
}

// WithEquality configures the cell to skip notification when a written
// value compares equal to the current one. Returns the cell for chaining.
func (c *Cell[T]) WithEquality(fn func(T, T) bool) *Cell[T] {
	c.equal = fn
	return c
}

// Equal reports whether two cells currently hold equal values.
func (c *Cell[T]) Equal(other *Cell[T]) bool {
	return valuesEqual(c.Get(), other.Get())
}

// ID returns the unique identifier for this cell.
func (c *Cell[T]) ID() uint64 {
	return c.base.id
}

// Close cancels every subscription; their monitor goroutines exit once
// queued pings are delivered. The value itself remains readable.
func (c *Cell[T]) Close() {
	c.base.close()
}
