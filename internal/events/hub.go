// Package events delivers storefront notifications to registered observers.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/shopfront/storefront/pkg/enums"
	"github.com/shopfront/storefront/pkg/logger"
)

// Event is one notification emitted by the cart, checkout or order components.
type Event struct {
	ID         string          `json:"id"`
	Type       enums.EventType `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    any             `json:"payload,omitempty"`
}

// Handler observes published events. Handlers run synchronously on the publisher's goroutine.
type Handler func(ctx context.Context, event Event) error

// OperationFailed is the payload of operation.failed notifications.
type OperationFailed struct {
	Operation string `json:"operation"`
	Message   string `json:"message"`
}

// Hub fans events out to every subscriber.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]Handler
	nextID uint64
	logg   *logger.Logger
	now    func() time.Time
	newID  func() string
}

// NewHub returns a hub with no subscribers.
func NewHub(logg *logger.Logger) *Hub {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Hub{
		subs:  make(map[uint64]Handler),
		logg:  logg,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Subscribe registers fn and returns a function that removes it.
func (h *Hub) Subscribe(fn Handler) func() {
	if fn == nil {
		return func() {}
	}
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of registered handlers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers an event to every subscriber. Handler failures and panics
// are logged and combined into the returned error; delivery continues.
func (h *Hub) Publish(ctx context.Context, eventType enums.EventType, payload any) error {
	event := Event{
		ID:         h.newID(),
		Type:       eventType,
		OccurredAt: h.now().UTC(),
		Payload:    payload,
	}

	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs))
	for _, fn := range h.subs {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	var errs error
	for _, fn := range handlers {
		if err := h.deliver(ctx, fn, event); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		h.logg.WarnErr(h.logg.WithField(ctx, "event_type", string(eventType)), "event handler failed", errs)
	}
	return errs
}

// Failed publishes an operation.failed notification.
func (h *Hub) Failed(ctx context.Context, operation, message string) {
	_ = h.Publish(ctx, enums.EventOperationFailed, OperationFailed{Operation: operation, Message: message})
}

func (h *Hub) deliver(ctx context.Context, fn Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panic: %v", r)
		}
	}()
	return fn(ctx, event)
}
