package events

import (
	"context"
	"testing"

	"love-sync-backend/internal/models"
)

func TestLocalBusDeliversToSubscribers(t *testing.T) {
	bus := NewLocalBus()
	var got []string

	unsubscribe, err := bus.Subscribe(func(ev SessionChanged) { got = append(got, ev.SessionID) })
	if err != nil {
		t.Fatal(err)
	}

	bus.Publish(context.Background(), SessionChanged{SessionID: "a", Status: models.StatusResponded})
	unsubscribe()
	bus.Publish(context.Background(), SessionChanged{SessionID: "b"})

	if len(got) != 1 || got[0] != "a" {
		t.Errorf("delivered %v, want [a]", got)
	}
}

func TestLocalBusClose(t *testing.T) {
	bus := NewLocalBus()
	calls := 0
	bus.Subscribe(func(SessionChanged) { calls++ })
	bus.Close()
	bus.Publish(context.Background(), SessionChanged{SessionID: "a"})
	if calls != 0 {
		t.Errorf("handler called %d times after Close", calls)
	}
}

func TestNATSSubject(t *testing.T) {
	b := &NATSBus{prefix: "lovesync.sessions"}
	if got := b.Subject("abc"); got != "lovesync.sessions.abc" {
		t.Errorf("Subject = %s", got)
	}
}
