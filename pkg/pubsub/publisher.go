package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

const (
	envelopeVersion       = 1
	defaultPublishTimeout = 15 * time.Second
)

// Envelope is the stable payload structure written to the orders topic.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// EventPublisher wraps envelopes around storefront events and publishes them to one topic.
type EventPublisher struct {
	pub     publisher
	stop    func()
	timeout time.Duration
	newID   func() string
}

// NewEventPublisher publishes to the client's orders topic.
func NewEventPublisher(client *Client) (*EventPublisher, error) {
	if client == nil {
		return nil, errors.New("pubsub client is required")
	}
	raw := client.OrdersPublisher()
	if raw == nil {
		return nil, errNoTopic
	}
	return &EventPublisher{
		pub:     &gcpPublisher{Publisher: raw},
		stop:    raw.Stop,
		timeout: defaultPublishTimeout,
		newID:   func() string { return uuid.NewString() },
	}, nil
}

// Publish marshals data into an envelope and waits for the server ack.
func (p *EventPublisher) Publish(ctx context.Context, eventType string, occurredAt time.Time, data any) (string, error) {
	if p == nil || p.pub == nil {
		return "", errors.New("event publisher not initialized")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal event data: %w", err)
	}
	envelope := Envelope{
		Version:    envelopeVersion,
		EventID:    p.newID(),
		EventType:  eventType,
		OccurredAt: occurredAt.UTC(),
		Data:       payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_id":    envelope.EventID,
			"event_type":  eventType,
			"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	result := p.pub.Publish(publishCtx, msg)
	if result == nil {
		return "", errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return "", fmt.Errorf("publish %s: %w", eventType, err)
	}
	return envelope.EventID, nil
}

// Close flushes pending messages.
func (p *EventPublisher) Close() {
	if p == nil || p.stop == nil {
		return
	}
	p.stop()
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
