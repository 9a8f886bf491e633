package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/saturn77/mobius-go/pkg/signals"
)

func newTestServer(t *testing.T) (*Server, *signals.Slot[RemoteEvent], *httptest.Server) {
	t.Helper()
	inbound, inboundSlot := signals.NewPair[RemoteEvent]()
	srv := NewServer(inbound, Config{})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		inboundSlot.Close()
	})
	return srv, inboundSlot, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialTestClient(t *testing.T, ts *httptest.Server) (*Client, *signals.Slot[RemoteEvent]) {
	t.Helper()
	received, receivedSlot := signals.NewPair[RemoteEvent]()
	client, err := Dial(context.Background(), wsURL(ts), received, ClientConfig{})
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	go client.Run(context.Background())
	t.Cleanup(func() {
		client.Close()
		receivedSlot.Close()
	})
	return client, receivedSlot
}

func waitConnected(t *testing.T, srv *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for srv.Subscribers() < n {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d subscribers connected", srv.Subscribers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func recvEvent(t *testing.T, slot *signals.Slot[RemoteEvent]) RemoteEvent {
	t.Helper()
	select {
	case e := <-slot.Events():
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return RemoteEvent{}
	}
}

func TestHealthz(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	srv, _, ts := newTestServer(t)
	_, receivedSlot := dialTestClient(t, ts)
	waitConnected(t, srv, 1)

	payload, _ := json.Marshal(map[string]int{"count": 3})
	if err := srv.Publish(RemoteEvent{Channel: "counter", Payload: payload}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	e := recvEvent(t, receivedSlot)
	if e.Channel != "counter" {
		t.Errorf("expected channel counter, got %s", e.Channel)
	}
	var got map[string]int
	if err := json.Unmarshal(e.Payload, &got); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if got["count"] != 3 {
		t.Errorf("expected count 3, got %d", got["count"])
	}
}

func TestPublishFansOut(t *testing.T) {
	srv, _, ts := newTestServer(t)
	_, slotA := dialTestClient(t, ts)
	_, slotB := dialTestClient(t, ts)
	waitConnected(t, srv, 2)

	srv.Publish(RemoteEvent{Channel: "tick"})

	if e := recvEvent(t, slotA); e.Channel != "tick" {
		t.Errorf("subscriber A: expected tick, got %s", e.Channel)
	}
	if e := recvEvent(t, slotB); e.Channel != "tick" {
		t.Errorf("subscriber B: expected tick, got %s", e.Channel)
	}
}

func TestClientSendReachesServer(t *testing.T) {
	srv, inboundSlot, ts := newTestServer(t)
	client, _ := dialTestClient(t, ts)
	waitConnected(t, srv, 1)

	if err := client.Send(RemoteEvent{Channel: "submit", Payload: json.RawMessage(`"hi"`)}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	e := recvEvent(t, inboundSlot)
	if e.Channel != "submit" {
		t.Errorf("expected channel submit, got %s", e.Channel)
	}
	if string(e.Payload) != `"hi"` {
		t.Errorf("expected payload %q, got %q", `"hi"`, e.Payload)
	}
}

func TestBadFrameDoesNotKillConnection(t *testing.T) {
	srv, inboundSlot, ts := newTestServer(t)
	client, _ := dialTestClient(t, ts)
	waitConnected(t, srv, 1)

	// Missing channel: decoded, rejected, logged; connection survives.
	client.Send(RemoteEvent{Channel: ""})
	if err := client.Send(RemoteEvent{Channel: "ok"}); err != nil {
		t.Fatalf("send after bad frame failed: %v", err)
	}

	if e := recvEvent(t, inboundSlot); e.Channel != "ok" {
		t.Errorf("expected channel ok, got %s", e.Channel)
	}
	if srv.Subscribers() != 1 {
		t.Errorf("expected 1 subscriber, got %d", srv.Subscribers())
	}
}

func TestServerCloseDisconnectsSubscribers(t *testing.T) {
	srv, _, ts := newTestServer(t)
	client, _ := dialTestClient(t, ts)
	waitConnected(t, srv, 1)

	srv.Close()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not observe server close")
	}
}

func TestClientCloseRemovesSubscriber(t *testing.T) {
	srv, _, ts := newTestServer(t)
	client, _ := dialTestClient(t, ts)
	waitConnected(t, srv, 1)

	client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber not removed, count %d", srv.Subscribers())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventCodec(t *testing.T) {
	data, err := EncodeEvent(RemoteEvent{Channel: "x", Payload: json.RawMessage(`{"a":1}`)})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	e, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if e.Channel != "x" || string(e.Payload) != `{"a":1}` {
		t.Errorf("round trip mismatch: %+v", e)
	}

	if _, err := DecodeEvent([]byte(`{"payload":1}`)); err == nil {
		t.Error("expected error for frame without channel")
	}
	if _, err := DecodeEvent([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed frame")
	}
}
