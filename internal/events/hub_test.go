package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopfront/storefront/pkg/enums"
)

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := NewHub(nil)
	hub.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	hub.newID = func() string { return "evt-1" }

	var got []Event
	cancel := hub.Subscribe(func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	if err := hub.Publish(context.Background(), enums.EventCartChanged, map[string]int{"totalQuantity": 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 1 || got[0].Type != enums.EventCartChanged || got[0].ID != "evt-1" {
		t.Fatalf("unexpected events %+v", got)
	}

	cancel()
	cancel()
	if hub.Subscribers() != 0 {
		t.Fatalf("expected no subscribers after cancel")
	}
	if err := hub.Publish(context.Background(), enums.EventCartCleared, nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("cancelled subscriber still received events")
	}
}

func TestHubCombinesHandlerErrorsAndRecoversPanics(t *testing.T) {
	hub := NewHub(nil)
	delivered := 0
	hub.Subscribe(func(context.Context, Event) error { return errors.New("first") })
	hub.Subscribe(func(context.Context, Event) error { panic("boom") })
	hub.Subscribe(func(context.Context, Event) error {
		delivered++
		return nil
	})

	err := hub.Publish(context.Background(), enums.EventOrderPlaced, nil)
	if err == nil {
		t.Fatal("expected combined error")
	}
	if delivered != 1 {
		t.Fatalf("healthy subscriber should still receive the event")
	}
}

func TestHubFailedPublishesOperationFailed(t *testing.T) {
	hub := NewHub(nil)
	var payload OperationFailed
	hub.Subscribe(func(_ context.Context, e Event) error {
		if e.Type == enums.EventOperationFailed {
			payload = e.Payload.(OperationFailed)
		}
		return nil
	})

	hub.Failed(context.Background(), "add_to_cart", "Failed to add product to cart")
	if payload.Message != "Failed to add product to cart" || payload.Operation != "add_to_cart" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

type stubPublisher struct {
	mu    sync.Mutex
	types []string
	err   error
}

func (s *stubPublisher) Publish(_ context.Context, eventType string, _ time.Time, _ any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = append(s.types, eventType)
	return "id", s.err
}

func TestForwarderRelaysSelectedTypes(t *testing.T) {
	hub := NewHub(nil)
	pub := &stubPublisher{}
	forwarder := NewForwarder(hub, pub, nil, enums.EventOrderPlaced)

	ctx, cancel := context.WithCancel(context.Background())
	_ = hub.Publish(ctx, enums.EventCartChanged, nil)
	_ = hub.Publish(ctx, enums.EventOrderPlaced, map[string]int{"id": 1})
	cancel()

	forwarder.Close()
	if len(pub.types) != 1 || pub.types[0] != string(enums.EventOrderPlaced) {
		t.Fatalf("unexpected forwarded types %v", pub.types)
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("forwarder should unsubscribe on close")
	}
}

func TestForwarderSwallowsPublishErrors(t *testing.T) {
	hub := NewHub(nil)
	pub := &stubPublisher{err: errors.New("unavailable")}
	forwarder := NewForwarder(hub, pub, nil, enums.EventOrderPlaced)

	if err := hub.Publish(context.Background(), enums.EventOrderPlaced, nil); err != nil {
		t.Fatalf("publish should not fail when forwarding fails: %v", err)
	}
	forwarder.Close()
}

func TestForwarderDropsEventsAfterClose(t *testing.T) {
	hub := NewHub(nil)
	pub := &stubPublisher{}
	forwarder := NewForwarder(hub, pub, nil, enums.EventOrderPlaced)
	forwarder.Close()

	if err := forwarder.handle(context.Background(), Event{Type: enums.EventOrderPlaced}); err != nil {
		t.Fatalf("handle after close: %v", err)
	}
	forwarder.Close()
	if len(pub.types) != 0 {
		t.Fatalf("expected no forwarded events after close, got %v", pub.types)
	}
}

func TestForwarderCloseRacesPublish(t *testing.T) {
	hub := NewHub(nil)
	pub := &stubPublisher{}
	forwarder := NewForwarder(hub, pub, nil, enums.EventOrderPlaced)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = hub.Publish(context.Background(), enums.EventOrderPlaced, j)
			}
		}()
	}
	forwarder.Close()
	wg.Wait()
	forwarder.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.types) > 8*50 {
		t.Fatalf("forwarded more events than published: %d", len(pub.types))
	}
}
