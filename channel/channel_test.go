package channel

import (
	"testing"
	"time"
)

func TestSendTryRecvRoundTrip(t *testing.T) {
	id := "/hrchan-basic"
	owner, err := New[int](true, id)
	if err != nil {
		t.Fatalf("New owner: %v", err)
	}
	defer owner.Close()

	reloadable, err := New[int](false, id)
	if err != nil {
		t.Fatalf("New reloadable: %v", err)
	}
	defer reloadable.Close()

	if _, ok := reloadable.TryRecv(); ok {
		t.Fatal("TryRecv on empty channel: want ok=false")
	}

	owner.Send(42)
	value, ok := reloadable.TryRecv()
	if !ok || value != 42 {
		t.Fatalf("TryRecv = (%d, %v), want (42, true)", value, ok)
	}

	if _, ok := reloadable.TryRecv(); ok {
		t.Fatal("second TryRecv after drain: want ok=false")
	}
}

func TestSendOverwritesUnreadValue(t *testing.T) {
	id := "/hrchan-overwrite"
	owner, err := New[string](true, id)
	if err != nil {
		t.Fatalf("New owner: %v", err)
	}
	defer owner.Close()
	reloadable, err := New[string](false, id)
	if err != nil {
		t.Fatalf("New reloadable: %v", err)
	}
	defer reloadable.Close()

	owner.Send("first")
	owner.Send("second")

	value, ok := reloadable.TryRecv()
	if !ok || value != "second" {
		t.Fatalf("TryRecv = (%q, %v), want (\"second\", true)", value, ok)
	}
}

func TestRecvBlocksUntilSend(t *testing.T) {
	id := "/hrchan-recv-blocks"
	owner, err := New[int](true, id)
	if err != nil {
		t.Fatalf("New owner: %v", err)
	}
	defer owner.Close()
	reloadable, err := New[int](false, id)
	if err != nil {
		t.Fatalf("New reloadable: %v", err)
	}
	defer reloadable.Close()

	got := make(chan int, 1)
	go func() { got <- reloadable.Recv() }()

	time.Sleep(20 * time.Millisecond)
	owner.Send(7)

	select {
	case v := <-got:
		if v != 7 {
			t.Fatalf("Recv = %d, want 7", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Recv never returned")
	}
}

func TestConcurrentRecvPanics(t *testing.T) {
	id := "/hrchan-concurrent-recv"
	owner, err := New[int](true, id)
	if err != nil {
		t.Fatalf("New owner: %v", err)
	}
	defer owner.Close()

	go func() {
		defer func() { recover() }()
		owner.Recv()
	}()
	time.Sleep(20 * time.Millisecond)

	defer func() {
		if recover() == nil {
			t.Fatal("second concurrent Recv: want panic")
		}
	}()
	owner.Recv()
}
