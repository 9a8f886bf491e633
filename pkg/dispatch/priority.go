package dispatch

import (
	"sync"

	"github.com/saturn77/mobius-go/pkg/signals"
)

// PriorityDispatcher drains any number of input slots carrying sequenced
// events and forwards them to one output signal in strict sequence
// order, starting at 0. The effect is a total order across producers
// that honours each producer's submission order.
//
// A gap in the sequence blocks forwarding until the missing message
// arrives or every input closes. Forwarding failures are logged and the
// message dropped; the expected counter still advances.
type PriorityDispatcher[E any] struct {
	out    *signals.Signal[signals.Sequenced[E]]
	inputs []*signals.Slot[signals.Sequenced[E]]

	mu      sync.Mutex
	cond    *sync.Cond
	pending map[uint64]E
	next    uint64
	open    int
	stopped bool

	started bool
	done    chan struct{}

	conf config
}

// NewPriorityDispatcher wires inputs to out. Call Start to begin
// forwarding.
func NewPriorityDispatcher[E any](out *signals.Signal[signals.Sequenced[E]], inputs []*signals.Slot[signals.Sequenced[E]], opts ...Option) *PriorityDispatcher[E] {
	conf := defaultOptions()
	for _, opt := range opts {
		opt(&conf)
	}
	p := &PriorityDispatcher[E]{
		out:     out,
		inputs:  inputs,
		pending: make(map[uint64]E),
		open:    len(inputs),
		done:    make(chan struct{}),
		conf:    conf,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start spawns one drain goroutine per input and the forwarder. It may
// be called once.
func (p *PriorityDispatcher[E]) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		panic("dispatch: priority dispatcher already started")
	}
	p.started = true
	p.mu.Unlock()

	for _, in := range p.inputs {
		go p.drain(in)
	}
	go p.forward()
}

// drain collects one input's messages into the shared reorder buffer.
func (p *PriorityDispatcher[E]) drain(in *signals.Slot[signals.Sequenced[E]]) {
	for e := range in.Events() {
		p.mu.Lock()
		p.pending[e.Seq] = e.Event
		p.cond.Signal()
		p.mu.Unlock()
	}
	p.mu.Lock()
	p.open--
	p.cond.Signal()
	p.mu.Unlock()
}

// forward emits pending messages in sequence order.
func (p *PriorityDispatcher[E]) forward() {
	defer close(p.done)
	for {
		p.mu.Lock()
		for {
			if p.stopped {
				p.mu.Unlock()
				return
			}
			if _, ok := p.pending[p.next]; ok {
				break
			}
			if p.open == 0 {
				// All inputs closed and the next sequence will never
				// arrive; anything still buffered is unreachable.
				p.mu.Unlock()
				return
			}
			p.cond.Wait()
		}
		e := p.pending[p.next]
		delete(p.pending, p.next)
		seq := p.next
		p.next++
		p.mu.Unlock()

		if err := p.out.Send(signals.Sequenced[E]{Seq: seq, Event: e}); err != nil {
			p.conf.logger.Error("dispatch: priority forward failed, message dropped",
				"seq", seq,
				"error", err)
		}
	}
}

// Close stops forwarding and closes the input slots. Producers see send
// failures thereafter. Close is idempotent.
func (p *PriorityDispatcher[E]) Close() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, in := range p.inputs {
		in.Close()
	}
}

// Done is closed when the forwarder has exited.
func (p *PriorityDispatcher[E]) Done() <-chan struct{} {
	return p.done
}
