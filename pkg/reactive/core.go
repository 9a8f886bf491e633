package reactive

import "sync"

// Observable is anything that announces coarse change notifications.
// Cell, Derived, and List all satisfy it, so any of them can feed a
// Derived dependency list.
type Observable interface {
	OnChange(fn func()) *Subscription
}

// core provides type-erased subscriber management. It is embedded in
// Cell, Derived's backing cell, and List to share the change-bus logic.
type core struct {
	id uint64

	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

// attach registers a callback and starts its monitor goroutine.
// Registrations against a closed observable yield an already-canceled
// subscription.
func (c *core) attach(fn func()) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return newCanceledSubscription()
	}
	s := newSubscription(fn)
	c.subs = append(c.subs, s)
	return s
}

// notify pings every live subscriber. Canceled subscriptions are pruned.
// Callers must not hold the value lock: callbacks run on their monitor
// goroutines and may read the observable.
func (c *core) notify() {
	c.mu.Lock()
	subs := make([]*Subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	var dead []uint64
	for _, s := range subs {
		if !s.ping() {
			dead = append(dead, s.id)
		}
	}
	if len(dead) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range dead {
		for i, s := range c.subs {
			if s.id == id {
				c.subs[i] = c.subs[len(c.subs)-1]
				c.subs = c.subs[:len(c.subs)-1]
				break
			}
		}
	}
}

// close cancels every subscription and rejects future registrations.
func (c *core) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
}
