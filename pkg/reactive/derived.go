package reactive

import "sync"

// Derived is a read-only value computed from a set of observable
// dependencies. The compute closure runs once at construction and again
// whenever any dependency announces a change; the result lands in a
// backing cell, so Get always returns the latest pushed value and Derived
// is itself observable (derivation chains compose).
//
// Consistency is eventual: there is no transactional snapshot across
// dependencies, and a diamond (two dependencies fed by one upstream cell)
// may recompute once per edge.
type Derived[T any] struct {
	out     *Cell[T]
	compute func() T

	subs []*Subscription
	once sync.Once
}

// NewDerived evaluates compute once for the initial value and subscribes
// to every dependency. The dependency set is fixed at construction.
func NewDerived[T any](deps []Observable, compute func() T) *Derived[T] {
	d := &Derived[T]{
		out:     NewCell(compute()),
		compute: compute,
	}
	for _, dep := range deps {
		d.subs = append(d.subs, dep.OnChange(d.refresh))
	}
	return d
}

// refresh re-evaluates the computation against the current dependency
// snapshot. It runs on a dependency's monitor goroutine and takes only
// the derived cell's own lock, never the dependency's.
func (d *Derived[T]) refresh() {
	d.out.Set(d.compute())
}

// Get returns the cached value.
func (d *Derived[T]) Get() T {
	return d.out.Get()
}

// OnChange registers fn to run after every recomputation.
func (d *Derived[T]) OnChange(fn func()) *Subscription {
	return d.out.OnChange(fn)
}

// ID returns the unique identifier of the backing cell.
func (d *Derived[T]) ID() uint64 {
	return d.out.ID()
}

// Close tears down the dependency subscriptions and the backing cell's
// own subscribers. Close is idempotent.
func (d *Derived[T]) Close() {
	d.once.Do(func() {
		for _, s := range d.subs {
			s.Cancel()
		}
		d.out.Close()
	})
}
