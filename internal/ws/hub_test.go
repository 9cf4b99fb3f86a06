package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(testLogger(), 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	a, b := NewClient(hub, nil), NewClient(hub, nil)
	hub.Register(a)
	hub.Register(b)
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.Unregister(a)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	if err := a.Emit(EventState, nil); !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed after unregister, got %v", err)
	}
}

func TestHub_SessionLimit(t *testing.T) {
	hub := NewHub(testLogger(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	a, b := NewClient(hub, nil), NewClient(hub, nil)
	hub.Register(a)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Register(b)
	waitFor(t, func() bool { return errors.Is(b.Emit(EventState, nil), ErrClientClosed) })

	if hub.ClientCount() != 1 {
		t.Errorf("count = %d, want 1", hub.ClientCount())
	}
	if !hub.Full() {
		t.Error("hub at its limit should report Full")
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub(testLogger(), 10)
	go hub.Run(context.Background())

	c := NewClient(hub, nil)
	hub.Register(c)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	// Nothing drains the send buffer here, so shutdown waits for the timeout.
	hub.Shutdown()

	if hub.ClientCount() != 0 {
		t.Errorf("count = %d after shutdown", hub.ClientCount())
	}

	var got []Event
	for msg := range c.send {
		var evt Event
		if err := json.Unmarshal(msg, &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, evt)
	}
	if len(got) != 1 || got[0].Type != EventShutdown {
		t.Errorf("events = %+v", got)
	}
}

func TestClient_EmitSequence(t *testing.T) {
	c := NewClient(NewHub(testLogger(), 1), nil)

	for i := 0; i < 3; i++ {
		if err := c.Emit(EventGraphStats, map[string]int{"n": i}); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}

	for want := uint64(1); want <= 3; want++ {
		var evt Event
		if err := json.Unmarshal(<-c.send, &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if evt.ID != want || evt.Type != EventGraphStats {
			t.Errorf("event = %+v, want id %d", evt, want)
		}
	}
}

func TestClient_EmitFull(t *testing.T) {
	c := NewClient(NewHub(testLogger(), 1), nil)

	for i := 0; i < clientSendBuffer; i++ {
		if err := c.Emit(EventState, i); err != nil {
			t.Fatalf("Emit %d: %v", i, err)
		}
	}
	if err := c.Emit(EventState, "overflow"); !errors.Is(err, ErrSendFull) {
		t.Errorf("expected ErrSendFull, got %v", err)
	}
}
