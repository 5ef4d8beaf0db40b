package stream

import (
	"encoding/json"
	"testing"
)

func TestHubDispatchOrder(t *testing.T) {
	h := NewHub()
	var got []string

	h.Subscribe(EventNewMessage, func(f Frame) { got = append(got, "first") })
	h.Subscribe(EventNewMessage, func(f Frame) { got = append(got, "second") })
	h.Subscribe(TypeAll, func(f Frame) { got = append(got, "all") })
	h.Subscribe(EventConversationUpdate, func(f Frame) { got = append(got, "update") })

	h.Publish(Frame{Type: EventNewMessage, Data: json.RawMessage(`{}`)})

	want := []string{"first", "second", "all"}
	if len(got) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestHubUnsubscribeIdempotent(t *testing.T) {
	h := NewHub()
	var calls int

	unsub := h.Subscribe(EventNewMessage, func(f Frame) { calls++ })
	h.Publish(Frame{Type: EventNewMessage})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}

	unsub()
	unsub() // second call must be a no-op
	h.Publish(Frame{Type: EventNewMessage})
	if calls != 1 {
		t.Errorf("expected no calls after unsubscribe, got %d", calls)
	}
}

func TestHubUnsubscribeLeavesOthers(t *testing.T) {
	h := NewHub()
	var a, b int

	unsubA := h.Subscribe(EventNewMessage, func(f Frame) { a++ })
	h.Subscribe(EventNewMessage, func(f Frame) { b++ })

	unsubA()
	h.Publish(Frame{Type: EventNewMessage})

	if a != 0 {
		t.Errorf("expected unsubscribed handler not called, got %d", a)
	}
	if b != 1 {
		t.Errorf("expected remaining handler called once, got %d", b)
	}
}

func TestHubConnectedFlag(t *testing.T) {
	h := NewHub()
	if h.Connected() {
		t.Error("expected disconnected initially")
	}
	h.SetConnected(true)
	if !h.Connected() {
		t.Error("expected connected after SetConnected(true)")
	}
	h.SetConnected(false)
	if h.Connected() {
		t.Error("expected disconnected after SetConnected(false)")
	}
}
