package chat

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	v1 "gather/shared/contracts/chat/v1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func drain(t *testing.T, l *Listener) []v1.Payload {
	t.Helper()

	var got []v1.Payload
	for {
		select {
		case p := <-l.Send:
			got = append(got, p)
		default:
			return got
		}
	}
}

func TestRegistryPublishDeliversOncePerListener(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testLogger(), nil)

	a := NewListener("evt-1", "u-a", "Alice", 8)
	b := NewListener("evt-1", "u-b", "Bob", 8)
	other := NewListener("evt-2", "u-c", "Cara", 8)

	reg.Subscribe("evt-1", a)
	reg.Subscribe("evt-1", b)
	reg.Subscribe("evt-2", other)

	reg.Publish("evt-1", userJoinedPayload("u-x", "Xena", time.Now()))

	for _, l := range []*Listener{a, b} {
		got := drain(t, l)
		if len(got) != 1 {
			t.Fatalf("listener %s: expected 1 payload, got %d", l.UserID, len(got))
		}
		if got[0].Type != v1.TypeUserJoined || got[0].UserID != "u-x" {
			t.Fatalf("listener %s: unexpected payload %+v", l.UserID, got[0])
		}
	}
	if got := drain(t, other); len(got) != 0 {
		t.Fatalf("evt-2 listener must not receive evt-1 payloads, got %d", len(got))
	}
}

func TestRegistryPublishExcludesListener(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testLogger(), nil)

	a := NewListener("evt-1", "u-a", "Alice", 8)
	b := NewListener("evt-1", "u-b", "Bob", 8)
	reg.Subscribe("evt-1", a)
	reg.Subscribe("evt-1", b)

	reg.Publish("evt-1", userJoinedPayload("u-b", "Bob", time.Now()), ExcludeListener(b))

	if got := drain(t, a); len(got) != 1 {
		t.Fatalf("expected excluded-publish to reach the other listener, got %d payloads", len(got))
	}
	if got := drain(t, b); len(got) != 0 {
		t.Fatalf("excluded listener must not receive its own notification, got %d payloads", len(got))
	}
}

func TestRegistryUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testLogger(), nil)

	a := NewListener("evt-1", "u-a", "Alice", 8)
	sub := reg.Subscribe("evt-1", a)

	if n := reg.ListenerCount("evt-1"); n != 1 {
		t.Fatalf("listener count: got %d want 1", n)
	}

	reg.Unsubscribe(sub)
	reg.Unsubscribe(sub) // idempotent

	if n := reg.ListenerCount("evt-1"); n != 0 {
		t.Fatalf("listener count after unsubscribe: got %d want 0", n)
	}
	if n := reg.RoomCount(); n != 0 {
		t.Fatalf("empty room must be removed, room count=%d", n)
	}

	select {
	case <-a.Done():
	default:
		t.Fatalf("unsubscribe must close the listener")
	}

	reg.Publish("evt-1", connectionPayload(time.Now()))
	if got := drain(t, a); len(got) != 0 {
		t.Fatalf("no delivery after unsubscribe, got %d payloads", len(got))
	}
}

func TestRegistryPublishDropsOnFullQueue(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testLogger(), nil)

	slow := NewListener("evt-1", "u-slow", "Slow", 1)
	reg.Subscribe("evt-1", slow)

	// Second publish finds the queue full and must drop, not block or panic.
	reg.Publish("evt-1", connectionPayload(time.Now()))
	reg.Publish("evt-1", connectionPayload(time.Now()))

	if got := drain(t, slow); len(got) != 1 {
		t.Fatalf("expected exactly the queued payload, got %d", len(got))
	}
}

func TestRegistryPublishSkipsClosedListener(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testLogger(), nil)

	closed := NewListener("evt-1", "u-a", "Alice", 8)
	reg.Subscribe("evt-1", closed)
	closed.Close()

	reg.Publish("evt-1", connectionPayload(time.Now()))

	if got := drain(t, closed); len(got) != 0 {
		t.Fatalf("closed listener must not receive payloads, got %d", len(got))
	}
}

func TestRegistrySubscribeRacingLastUnsubscribe(t *testing.T) {
	t.Parallel()

	// A subscribe landing while the room's last listener unsubscribes must
	// leave the new listener in a room Publish can still reach. Losing that
	// race used to insert the listener into a room object already removed
	// from the registry, leaving it silent forever.
	reg := NewRegistry(testLogger(), nil)

	for i := 0; i < 2000; i++ {
		a := NewListener("evt-1", "u-a", "Alice", 4)
		subA := reg.Subscribe("evt-1", a)

		b := NewListener("evt-1", "u-b", "Bob", 4)
		var subB *Subscription

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Unsubscribe(subA)
		}()
		go func() {
			defer wg.Done()
			subB = reg.Subscribe("evt-1", b)
		}()
		wg.Wait()

		if n := reg.ListenerCount("evt-1"); n != 1 {
			t.Fatalf("iteration %d: listener count after race: got %d want 1", i, n)
		}
		if n := reg.RoomCount(); n != 1 {
			t.Fatalf("iteration %d: room count after race: got %d want 1", i, n)
		}

		reg.Publish("evt-1", connectionPayload(time.Now()))
		if got := drain(t, b); len(got) != 1 {
			t.Fatalf("iteration %d: publish must reach the surviving listener, got %d payloads", i, len(got))
		}

		reg.Unsubscribe(subB)
	}

	if n := reg.RoomCount(); n != 0 {
		t.Fatalf("room count after cleanup: got %d want 0", n)
	}
}

func TestRegistryConcurrentChurn(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(testLogger(), nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				reg.Publish("evt-1", connectionPayload(time.Now()))
			}
		}
	}()

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l := NewListener("evt-1", "u", "U", 4)
				sub := reg.Subscribe("evt-1", l)
				drain(t, l)
				reg.Unsubscribe(sub)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()

	if n := reg.ListenerCount("evt-1"); n != 0 {
		t.Fatalf("listener count after churn: got %d want 0", n)
	}
}
