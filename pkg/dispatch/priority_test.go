package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/saturn77/mobius-go/pkg/signals"
)

func TestPriorityDispatcherReorders(t *testing.T) {
	out, outSlot := signals.NewPair[signals.Sequenced[string]]()

	sigA, slotA := signals.NewPair[signals.Sequenced[string]]()
	sigB, slotB := signals.NewPair[signals.Sequenced[string]]()

	pd := NewPriorityDispatcher[string](out, []*signals.Slot[signals.Sequenced[string]]{slotA, slotB})
	pd.Start()

	// Producer A holds sequences 0 and 2, producer B holds 1 and 3.
	// A submits first, so 2 arrives before 1; the dispatcher must
	// still emit 0,1,2,3.
	sigA.Send(signals.Sequenced[string]{Seq: 0, Event: "a0"})
	sigA.Send(signals.Sequenced[string]{Seq: 2, Event: "a2"})
	sigB.Send(signals.Sequenced[string]{Seq: 1, Event: "b1"})
	sigB.Send(signals.Sequenced[string]{Seq: 3, Event: "b3"})

	var got []signals.Sequenced[string]
	for len(got) < 4 {
		select {
		case e := <-outSlot.Events():
			got = append(got, e)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out with %d of 4 messages", len(got))
		}
	}

	want := []string{"a0", "b1", "a2", "b3"}
	for i, e := range got {
		if e.Seq != uint64(i) {
			t.Errorf("message %d: expected seq %d, got %d", i, i, e.Seq)
		}
		if e.Event != want[i] {
			t.Errorf("message %d: expected %s, got %s", i, want[i], e.Event)
		}
	}
	pd.Close()
}

func TestPriorityDispatcherBlocksOnGap(t *testing.T) {
	out, outSlot := signals.NewPair[signals.Sequenced[int]]()
	sig, slot := signals.NewPair[signals.Sequenced[int]]()

	pd := NewPriorityDispatcher[int](out, []*signals.Slot[signals.Sequenced[int]]{slot})
	pd.Start()
	defer pd.Close()

	sig.Send(signals.Sequenced[int]{Seq: 1, Event: 11})

	select {
	case e := <-outSlot.Events():
		t.Fatalf("seq %d forwarded past a gap at 0", e.Seq)
	case <-time.After(50 * time.Millisecond):
	}

	sig.Send(signals.Sequenced[int]{Seq: 0, Event: 10})

	for i, want := range []int{10, 11} {
		select {
		case e := <-outSlot.Events():
			if e.Event != want {
				t.Errorf("message %d: expected %d, got %d", i, want, e.Event)
			}
		case <-time.After(time.Second):
			t.Fatalf("message %d never arrived after gap filled", i)
		}
	}
}

func TestPriorityDispatcherManyProducers(t *testing.T) {
	const producers = 4
	const perProducer = 50

	out, outSlot := signals.NewPair[signals.Sequenced[int]]()

	var seq signals.Sequencer
	var sigs []*signals.SequencedSignal[int]
	var slots []*signals.Slot[signals.Sequenced[int]]
	for i := 0; i < producers; i++ {
		s, sl := signals.NewPair[signals.Sequenced[int]]()
		sigs = append(sigs, signals.NewSequencedSignal(&seq, s))
		slots = append(slots, sl)
	}

	pd := NewPriorityDispatcher[int](out, slots)
	pd.Start()

	var wg sync.WaitGroup
	for i, s := range sigs {
		wg.Add(1)
		go func(id int, s *signals.SequencedSignal[int]) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				s.Send(id*1000 + j)
			}
		}(i, s)
	}
	wg.Wait()

	total := producers * perProducer
	for i := 0; i < total; i++ {
		select {
		case e := <-outSlot.Events():
			if e.Seq != uint64(i) {
				t.Fatalf("message %d: expected seq %d, got %d", i, i, e.Seq)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out at message %d of %d", i, total)
		}
	}
	pd.Close()
}

func TestPriorityDispatcherCloseStopsForwarder(t *testing.T) {
	out, _ := signals.NewPair[signals.Sequenced[int]]()
	sig, slot := signals.NewPair[signals.Sequenced[int]]()

	pd := NewPriorityDispatcher[int](out, []*signals.Slot[signals.Sequenced[int]]{slot})
	pd.Start()

	pd.Close()
	pd.Close()

	select {
	case <-pd.Done():
	case <-time.After(time.Second):
		t.Fatal("forwarder did not exit after Close")
	}

	if err := sig.Send(signals.Sequenced[int]{Seq: 0, Event: 1}); err == nil {
		t.Error("send to a closed input should fail")
	}
}

func TestPriorityDispatcherExitsWhenInputsClose(t *testing.T) {
	out, outSlot := signals.NewPair[signals.Sequenced[int]]()
	sig, slot := signals.NewPair[signals.Sequenced[int]]()

	pd := NewPriorityDispatcher[int](out, []*signals.Slot[signals.Sequenced[int]]{slot})
	pd.Start()

	sig.Send(signals.Sequenced[int]{Seq: 0, Event: 7})
	slot.Close()

	select {
	case e := <-outSlot.Events():
		if e.Event != 7 {
			t.Errorf("expected 7, got %d", e.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("buffered message not flushed before exit")
	}

	select {
	case <-pd.Done():
	case <-time.After(time.Second):
		t.Fatal("forwarder did not exit after inputs closed")
	}
}
