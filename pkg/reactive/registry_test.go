package reactive

import "testing"

func TestRegistryRetains(t *testing.T) {
	r := NewRegistry()

	r.Register(NewCell(1))
	r.Register(NewCell("x"))
	if got := r.Len(); got != 2 {
		t.Errorf("expected 2 retained values, got %d", got)
	}
}

func TestRegistryNamed(t *testing.T) {
	r := NewRegistry()

	first := NewCell(1)
	second := NewCell(2)
	r.RegisterNamed("count", first)
	r.RegisterNamed("count", second)

	v, ok := r.Lookup("count")
	if !ok {
		t.Fatal("expected named entry")
	}
	if v.(*Cell[int]) != second {
		t.Error("re-registering a name should replace the entry")
	}
	if got := r.Len(); got != 1 {
		t.Errorf("expected 1 retained value, got %d", got)
	}

	if _, ok := r.Lookup("missing"); ok {
		t.Error("lookup of unknown name should report false")
	}
}
