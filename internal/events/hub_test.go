package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// startHub runs a hub until the test ends
func startHub(t *testing.T, cfg HubConfig) *Hub {
	t.Helper()
	hub := NewHub(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return hub
}

func receive(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("Subscriber channel closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")
	}
	return Event{}
}

func expectNothing(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("Expected no event, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

// ============================================================================
// Routing
// ============================================================================

func TestHub_RoutesByProjectAndUser(t *testing.T) {
	hub := startHub(t, HubConfig{HeartbeatInterval: time.Hour})

	projectA, _ := hub.Subscribe(Subscription{ProjectID: 1})
	defer projectA.Close()
	projectB, _ := hub.Subscribe(Subscription{ProjectID: 2})
	defer projectB.Close()
	user, _ := hub.Subscribe(Subscription{UserID: 7})
	defer user.Close()

	if err := hub.SendEvent(Event{Type: EventCardCreated, ProjectID: 1, EntityID: 10}); err != nil {
		t.Fatalf("SendEvent failed: %v", err)
	}
	ev := receive(t, projectA)
	if ev.EntityID != 10 || ev.Timestamp.IsZero() {
		t.Errorf("Unexpected event %+v", ev)
	}
	expectNothing(t, projectB)
	expectNothing(t, user)

	// User-targeted events skip project streams
	if err := hub.SendEvent(Event{Type: EventNotificationCreated, ProjectID: 1, UserID: 7}); err != nil {
		t.Fatalf("SendEvent failed: %v", err)
	}
	if ev := receive(t, user); ev.Type != EventNotificationCreated {
		t.Errorf("Expected notification event, got %s", ev.Type)
	}
	expectNothing(t, projectA)
}

func TestHub_SequenceIsMonotonic(t *testing.T) {
	hub := startHub(t, HubConfig{HeartbeatInterval: time.Hour, ClientBuffer: 20})
	sub, _ := hub.Subscribe(Subscription{ProjectID: 1})
	defer sub.Close()

	for i := 0; i < 5; i++ {
		if err := hub.SendEvent(Event{Type: EventCardUpdated, ProjectID: 1}); err != nil {
			t.Fatalf("SendEvent failed: %v", err)
		}
	}

	var last int64
	for i := 0; i < 5; i++ {
		ev := receive(t, sub)
		if ev.SequenceID <= last {
			t.Fatalf("Expected increasing sequence ids, got %d after %d", ev.SequenceID, last)
		}
		last = ev.SequenceID
	}
}

func TestHub_SlowClientDropsEvents(t *testing.T) {
	hub := startHub(t, HubConfig{HeartbeatInterval: time.Hour, ClientBuffer: 1})
	slow, _ := hub.Subscribe(Subscription{ProjectID: 1})
	defer slow.Close()

	for i := 0; i < 3; i++ {
		if err := hub.SendEvent(Event{Type: EventCardUpdated, ProjectID: 1}); err != nil {
			t.Fatalf("SendEvent failed: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Metrics().EventsDropped < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	snap := hub.Metrics()
	if snap.EventsDropped != 2 || snap.EventsSent != 1 {
		t.Errorf("Expected 1 sent and 2 dropped, got %+v", snap)
	}
}

func TestHub_HeartbeatReachesEveryone(t *testing.T) {
	hub := startHub(t, HubConfig{HeartbeatInterval: 10 * time.Millisecond})
	sub, _ := hub.Subscribe(Subscription{UserID: 3})
	defer sub.Close()

	if ev := receive(t, sub); ev.Type != EventPing {
		t.Errorf("Expected ping, got %s", ev.Type)
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestHub_ShutdownClosesSubscribers(t *testing.T) {
	hub := NewHub(HubConfig{}, nil)
	sub, err := hub.Subscribe(Subscription{ProjectID: 1})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if got := hub.Metrics().ConnectedClients; got != 1 {
		t.Errorf("Expected 1 connected client, got %d", got)
	}

	hub.Shutdown()
	hub.Shutdown() // idempotent

	if _, ok := <-sub.Events(); ok {
		t.Error("Expected subscriber channel to be closed")
	}
	sub.Close() // closing after shutdown must not panic

	if err := hub.SendEvent(Event{Type: EventCardCreated, ProjectID: 1}); !errors.Is(err, ErrHubClosed) {
		t.Errorf("Expected ErrHubClosed, got %v", err)
	}
	if _, err := hub.Subscribe(Subscription{ProjectID: 1}); !errors.Is(err, ErrHubClosed) {
		t.Errorf("Expected ErrHubClosed on subscribe, got %v", err)
	}
}

func TestHub_SubscribeRacingShutdown(t *testing.T) {
	for round := 0; round < 50; round++ {
		hub := NewHub(HubConfig{}, nil)

		const workers = 16
		subs := make([]*Subscriber, workers)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				sub, err := hub.Subscribe(Subscription{ProjectID: 1})
				if err != nil && !errors.Is(err, ErrHubClosed) {
					t.Errorf("Unexpected subscribe error: %v", err)
				}
				subs[i] = sub
			}(i)
		}
		close(start)
		hub.Shutdown()
		wg.Wait()

		// Every stream handed out must end, whichever side won the race.
		for i, sub := range subs {
			if sub == nil {
				continue
			}
			select {
			case _, ok := <-sub.Events():
				if ok {
					t.Fatalf("Round %d: subscriber %d received an event after shutdown", round, i)
				}
			case <-time.After(time.Second):
				t.Fatalf("Round %d: subscriber %d was left open after shutdown", round, i)
			}
		}
		if got := hub.Metrics().ConnectedClients; got != 0 {
			t.Fatalf("Round %d: expected 0 connected clients, got %d", round, got)
		}
	}
}

func TestHub_BroadcastFull(t *testing.T) {
	hub := NewHub(HubConfig{BroadcastBuffer: 1}, nil)
	defer hub.Shutdown()

	if err := hub.SendEvent(Event{Type: EventCardCreated, ProjectID: 1}); err != nil {
		t.Fatalf("First SendEvent failed: %v", err)
	}
	if err := hub.SendEvent(Event{Type: EventCardCreated, ProjectID: 1}); !errors.Is(err, ErrBroadcastFull) {
		t.Errorf("Expected ErrBroadcastFull without a running loop, got %v", err)
	}
}

func TestSubscription_Matches(t *testing.T) {
	tests := []struct {
		name string
		sub  Subscription
		ev   Event
		want bool
	}{
		{"same project", Subscription{ProjectID: 1}, Event{ProjectID: 1}, true},
		{"other project", Subscription{ProjectID: 1}, Event{ProjectID: 2}, false},
		{"user event on project stream", Subscription{ProjectID: 1}, Event{ProjectID: 1, UserID: 4}, false},
		{"own user event", Subscription{UserID: 4}, Event{UserID: 4}, true},
		{"someone else's event", Subscription{UserID: 4}, Event{UserID: 5}, false},
		{"ping", Subscription{UserID: 4}, Event{Type: EventPing}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.matches(tt.ev); got != tt.want {
				t.Errorf("matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
