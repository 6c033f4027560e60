package sse

import (
	"testing"
	"time"
)

func TestHub_BroadcastReachesRegisteredClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := make(Client, 4)
	hub.Register(client)

	hub.Broadcast([]byte("event-1"))

	select {
	case msg := <-client:
		if string(msg) != "event-1" {
			t.Errorf("message = %q, want event-1", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received within 1s")
	}
}

func TestHub_UnregisterClosesClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := make(Client, 4)
	hub.Register(client)
	hub.Unregister(client)

	select {
	case _, ok := <-client:
		if ok {
			t.Error("received message after unregister, want closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("client channel not closed within 1s")
	}
}

func TestHub_SlowClientDoesNotBlockBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Unbuffered client that never reads.
	slow := make(Client)
	hub.Register(slow)

	fast := make(Client, 4)
	hub.Register(fast)

	done := make(chan struct{})
	go func() {
		hub.Broadcast([]byte("event-1"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a slow client")
	}

	select {
	case msg := <-fast:
		if string(msg) != "event-1" {
			t.Errorf("message = %q, want event-1", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("fast client did not receive message")
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := make(Client, 1)
	b := make(Client, 1)
	hub.Register(a)
	hub.Register(b)

	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.Unregister(a)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}
