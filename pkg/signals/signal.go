package signals

import (
	"errors"
	"fmt"

	"github.com/saturn77/mobius-go/internal/queue"
)

// ErrSlotClosed is reported when a signal is used after its slot has been
// closed. Use errors.Is against send errors to detect it.
var ErrSlotClosed = errors.New("signals: slot closed")

// SendError carries an event that could not be delivered back to the
// caller. It wraps ErrSlotClosed.
type SendError[E any] struct {
	// Event is the undelivered event.
	Event E
}

// Error implements the error interface.
func (e *SendError[E]) Error() string {
	return fmt.Sprintf("signals: send on closed slot (event %v undelivered)", e.Event)
}

// Unwrap supports errors.Is(err, ErrSlotClosed).
func (e *SendError[E]) Unwrap() error {
	return ErrSlotClosed
}

// Signal is the producer handle of a signal/slot pair. All copies of a
// Signal share the same queue, so it can be handed to any number of
// producing goroutines.
type Signal[E any] struct {
	q *queue.Queue[E]
}

// NewPair creates a signal/slot pair wired by an unbounded FIFO.
func NewPair[E any]() (*Signal[E], *Slot[E]) {
	q := queue.New[E]()
	return &Signal[E]{q: q}, newSlot(q)
}

// Send enqueues an event. It never blocks. After the slot has been
// closed it returns a *SendError carrying the event.
func (s *Signal[E]) Send(e E) error {
	if !s.q.Push(e) {
		return &SendError[E]{Event: e}
	}
	return nil
}

// SendMany enqueues events in order, stopping at the first failure.
func (s *Signal[E]) SendMany(events ...E) error {
	for _, e := range events {
		if err := s.Send(e); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports the number of events queued but not yet handled.
func (s *Signal[E]) Pending() int {
	return s.q.Len()
}
