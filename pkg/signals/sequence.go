package signals

import "sync/atomic"

// Sequenced wraps an event with the global sequence number stamped at
// send time. The priority dispatcher uses it to restore a total order
// across producers.
type Sequenced[E any] struct {
	Seq   uint64
	Event E
}

// Sequencer hands out sequence numbers starting at zero. One sequencer
// is shared by every producer that feeds the same priority dispatcher.
type Sequencer struct {
	next atomic.Uint64
}

// NewSequencer creates a sequencer whose first number is 0.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1) - 1
}

// SequencedSignal stamps each event with a sequence number from a shared
// sequencer before sending. The stamp and the enqueue are not atomic
// together; a producer that needs its stamps to stay in queue order must
// not interleave Send calls on the same handle across goroutines.
type SequencedSignal[E any] struct {
	seq *Sequencer
	sig *Signal[Sequenced[E]]
}

// NewSequencedSignal binds a signal to a sequencer.
func NewSequencedSignal[E any](seq *Sequencer, sig *Signal[Sequenced[E]]) *SequencedSignal[E] {
	return &SequencedSignal[E]{seq: seq, sig: sig}
}

// Send stamps e and enqueues it.
func (s *SequencedSignal[E]) Send(e E) error {
	return s.sig.Send(Sequenced[E]{Seq: s.seq.Next(), Event: e})
}

// SendWithSeq enqueues e under an explicit sequence number, for callers
// that obtained the stamp earlier (or replay paths).
func (s *SequencedSignal[E]) SendWithSeq(seq uint64, e E) error {
	return s.sig.Send(Sequenced[E]{Seq: seq, Event: e})
}
