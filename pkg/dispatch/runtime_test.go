package dispatch

import (
	"context"
	"testing"
	"time"
)

// appEvent is the routed event type used across runtime tests.
type appEvent struct {
	route   string
	payload string
}

func (e appEvent) Route() string { return e.route }

func collectNotices(t *testing.T, ch <-chan Notice, n int) []Notice {
	t.Helper()
	var got []Notice
	for len(got) < n {
		select {
		case notice, ok := <-ch:
			if !ok {
				t.Fatalf("lifecycle channel closed after %d notices, wanted %d", len(got), n)
			}
			got = append(got, notice)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d notices, wanted %d", len(got), n)
		}
	}
	return got
}

func TestRuntimeRoutedPing(t *testing.T) {
	rt, handle, notices := NewRuntime[appEvent]()

	pinged := make(chan struct{})
	rt.RegisterHandler("ping", func(ctx context.Context, e appEvent) {
		close(pinged)
	})

	runDone := make(chan struct{})
	go func() {
		rt.Run(context.Background())
		close(runDone)
	}()

	if err := handle.Send(appEvent{route: "ping"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case <-pinged:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}

	got := collectNotices(t, notices, 2)
	if got[0].Kind != NoticeLoading || got[0].Route != "ping" {
		t.Errorf("expected Loading(ping) first, got %+v", got[0])
	}
	if got[1].Kind != NoticeSuccess || got[1].Route != "ping" {
		t.Errorf("expected Success(ping) second, got %+v", got[1])
	}

	handle.Shutdown()
	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after shutdown")
	}
}

func TestRuntimeUnknownRouteDropped(t *testing.T) {
	rt, handle, notices := NewRuntime[appEvent]()

	runDone := make(chan struct{})
	go func() {
		rt.Run(context.Background())
		close(runDone)
	}()

	handle.Send(appEvent{route: "ghost", payload: "hi"})
	time.Sleep(50 * time.Millisecond)
	handle.Shutdown()

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}

	// Channel is closed by Run; it must yield no notices.
	for notice := range notices {
		t.Errorf("unexpected lifecycle notice %+v for unrouted event", notice)
	}
}

func TestRuntimeLifecyclePerEvent(t *testing.T) {
	rt, handle, notices := NewRuntime[appEvent]()
	rt.RegisterHandler("a", func(ctx context.Context, e appEvent) {})
	rt.RegisterHandler("b", func(ctx context.Context, e appEvent) {})

	go rt.Run(context.Background())
	defer handle.Shutdown()

	handle.Send(appEvent{route: "a"})
	handle.Send(appEvent{route: "b"})
	handle.Send(appEvent{route: "a"})

	got := collectNotices(t, notices, 6)
	wantRoutes := []string{"a", "a", "b", "b", "a", "a"}
	for i, notice := range got {
		if notice.Route != wantRoutes[i] {
			t.Errorf("notice %d: expected route %s, got %s", i, wantRoutes[i], notice.Route)
		}
		wantKind := NoticeLoading
		if i%2 == 1 {
			wantKind = NoticeSuccess
		}
		if notice.Kind != wantKind {
			t.Errorf("notice %d: expected %s, got %s", i, wantKind, notice.Kind)
		}
	}
}

func TestRuntimeEventsAfterShutdownNotHandled(t *testing.T) {
	rt, handle, _ := NewRuntime[appEvent]()

	handled := make(chan string, 8)
	rt.RegisterHandler("x", func(ctx context.Context, e appEvent) {
		handled <- e.payload
	})

	runDone := make(chan struct{})
	go func() {
		rt.Run(context.Background())
		close(runDone)
	}()

	handle.Shutdown()
	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after shutdown")
	}

	if err := handle.Send(appEvent{route: "x", payload: "late"}); err != nil {
		t.Fatalf("post-shutdown send should be silently dropped, got %v", err)
	}

	select {
	case p := <-handled:
		t.Errorf("event %q handled after shutdown", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRuntimeLastHandlerWins(t *testing.T) {
	rt, handle, _ := NewRuntime[appEvent]()

	which := make(chan string, 1)
	rt.RegisterHandler("x", func(ctx context.Context, e appEvent) { which <- "first" })
	rt.RegisterHandler("x", func(ctx context.Context, e appEvent) { which <- "second" })

	go rt.Run(context.Background())
	defer handle.Shutdown()

	handle.Send(appEvent{route: "x"})

	select {
	case got := <-which:
		if got != "second" {
			t.Errorf("expected the replacing handler, got %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no handler ran")
	}
}

func TestRuntimeHandlerPanicKeepsRunning(t *testing.T) {
	rt, handle, notices := NewRuntime[appEvent]()

	handled := make(chan struct{}, 1)
	rt.RegisterHandler("bad", func(ctx context.Context, e appEvent) { panic("boom") })
	rt.RegisterHandler("good", func(ctx context.Context, e appEvent) { handled <- struct{}{} })

	go rt.Run(context.Background())
	defer handle.Shutdown()

	handle.Send(appEvent{route: "bad"})
	handle.Send(appEvent{route: "good"})

	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("runtime stopped after handler panic")
	}

	// bad: Loading only (no Success); good: Loading + Success.
	got := collectNotices(t, notices, 3)
	if got[0].Kind != NoticeLoading || got[0].Route != "bad" {
		t.Errorf("expected Loading(bad), got %+v", got[0])
	}
	if got[1].Kind != NoticeLoading || got[1].Route != "good" {
		t.Errorf("panicking handler must not emit Success; got %+v", got[1])
	}
	if got[2].Kind != NoticeSuccess || got[2].Route != "good" {
		t.Errorf("expected Success(good), got %+v", got[2])
	}
}

func TestRuntimeContextCancelStopsRun(t *testing.T) {
	rt, _, _ := NewRuntime[appEvent]()

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		rt.Run(ctx)
		close(runDone)
	}()

	cancel()
	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

func TestRuntimeShutdownIdempotent(t *testing.T) {
	rt, handle, _ := NewRuntime[appEvent]()
	go rt.Run(context.Background())

	handle.Shutdown()
	handle.Shutdown()
}
