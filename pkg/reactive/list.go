package reactive

import "sync"

// List is an ordered mutable collection with the same subscribe/notify
// contract as Cell: every mutation fires one coarse "list changed"
// notification after the mutation is visible. Out-of-range index
// operations are no-ops and do not notify.
type List[T any] struct {
	base core

	mu    sync.RWMutex
	items []T
}

// NewList creates an empty list.
func NewList[T any]() *List[T] {
	return &List[T]{
		base: core{
			id: nextID(),
		},
	}
}

// Push appends an item.
func (l *List[T]) Push(item T) {
	l.mu.Lock()
	l.items = append(l.items, item)
	l.mu.Unlock()
	l.base.notify()
}

// RemoveAt removes the item at index i. Does nothing if i is out of
// bounds.
func (l *List[T]) RemoveAt(i int) {
	l.mu.Lock()
	if i < 0 || i >= len(l.items) {
		l.mu.Unlock()
		return
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.mu.Unlock()
	l.base.notify()
}

// InsertAt inserts an item at index i, clamping to the valid range.
func (l *List[T]) InsertAt(i int, item T) {
	l.mu.Lock()
	if i < 0 {
		i = 0
	}
	if i >= len(l.items) {
		l.items = append(l.items, item)
	} else {
		l.items = append(l.items[:i+1], l.items[i:]...)
		l.items[i] = item
	}
	l.mu.Unlock()
	l.base.notify()
}

// Set replaces the item at index i. Does nothing if i is out of bounds.
func (l *List[T]) Set(i int, item T) {
	l.mu.Lock()
	if i < 0 || i >= len(l.items) {
		l.mu.Unlock()
		return
	}
	l.items[i] = item
	l.mu.Unlock()
	l.base.notify()
}

// Clear removes all items.
func (l *List[T]) Clear() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
	l.base.notify()
}

// Filter keeps only items satisfying the predicate.
func (l *List[T]) Filter(keep func(T) bool) {
	l.mu.Lock()
	kept := l.items[:0]
	for _, item := range l.items {
		if keep(item) {
			kept = append(kept, item)
		}
	}
	l.items = kept
	l.mu.Unlock()
	l.base.notify()
}

// All returns a copy of the current contents.
func (l *List[T]) All() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of items.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// OnChange registers fn to run after every mutation.
func (l *List[T]) OnChange(fn func()) *Subscription {
	return l.base.attach(fn)
}

// ID returns the unique identifier for this list.
func (l *List[T]) ID() uint64 {
	return l.base.id
}

// Close cancels every subscription.
func (l *List[T]) Close() {
	l.base.close()
}
