package statushub

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubStartBroadcastStop(t *testing.T) {
	h := NewHub(HubOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Stop()

	if !strings.HasPrefix(h.URL(), "ws://127.0.0.1:") {
		t.Fatalf("URL() = %q, want ws://127.0.0.1:<port>/events", h.URL())
	}

	conn, _, err := websocket.DefaultDialer.Dial(h.URL(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.ConnectionCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.ConnectionCount() != 1 {
		t.Fatalf("ConnectionCount() = %d, want 1", h.ConnectionCount())
	}

	h.Broadcast(Event{Type: EventRebuildStarted, Message: "go build"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	ev, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Type != EventRebuildStarted || ev.Message != "go build" {
		t.Errorf("event = %+v, want {Type:%v Message:\"go build\"}", ev, EventRebuildStarted)
	}
}

func TestBroadcastWithNoClientsIsNoOp(t *testing.T) {
	h := NewHub(HubOptions{})
	h.Broadcast(Event{Type: EventRebuildFailed, Message: "no observers yet"})
}
