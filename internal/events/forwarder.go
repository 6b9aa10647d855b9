package events

import (
	"context"
	"sync"
	"time"

	"github.com/shopfront/storefront/pkg/enums"
	"github.com/shopfront/storefront/pkg/logger"
)

type eventPublisher interface {
	Publish(ctx context.Context, eventType string, occurredAt time.Time, data any) (string, error)
}

// Forwarder relays selected hub events to an external publisher in the background.
type Forwarder struct {
	pub         eventPublisher
	logg        *logger.Logger
	types       map[enums.EventType]struct{}
	mu          sync.Mutex
	closed      bool
	wg          sync.WaitGroup
	unsubscribe func()
}

// NewForwarder subscribes to hub and forwards events of the given types.
func NewForwarder(hub *Hub, pub eventPublisher, logg *logger.Logger, eventTypes ...enums.EventType) *Forwarder {
	if logg == nil {
		logg = logger.Nop()
	}
	f := &Forwarder{
		pub:   pub,
		logg:  logg,
		types: make(map[enums.EventType]struct{}, len(eventTypes)),
	}
	for _, t := range eventTypes {
		f.types[t] = struct{}{}
	}
	f.unsubscribe = hub.Subscribe(f.handle)
	return f
}

func (f *Forwarder) handle(ctx context.Context, event Event) error {
	if _, ok := f.types[event.Type]; !ok {
		return nil
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.wg.Add(1)
	f.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	go func() {
		defer f.wg.Done()
		eventCtx := f.logg.WithFields(detached, map[string]any{
			"event_type": string(event.Type),
			"event_id":   event.ID,
		})
		if _, err := f.pub.Publish(eventCtx, string(event.Type), event.OccurredAt, event.Payload); err != nil {
			f.logg.Error(eventCtx, "forwarding event failed", err)
			return
		}
		f.logg.Debug(eventCtx, "event forwarded")
	}()
	return nil
}

// Close stops forwarding and waits for in-flight publishes. Events delivered
// after Close are dropped.
func (f *Forwarder) Close() {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	if f.unsubscribe != nil {
		f.unsubscribe()
	}
	f.wg.Wait()
}
