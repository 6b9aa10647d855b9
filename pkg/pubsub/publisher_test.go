package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/require"
)

type stubResult struct {
	id  string
	err error
}

func (r stubResult) Get(context.Context) (string, error) { return r.id, r.err }

type stubPublisher struct {
	messages []*gcppubsub.Message
	err      error
}

func (s *stubPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	s.messages = append(s.messages, msg)
	return stubResult{id: "server-1", err: s.err}
}

func newTestPublisher(stub *stubPublisher) *EventPublisher {
	return &EventPublisher{
		pub:     stub,
		timeout: time.Second,
		newID:   func() string { return "evt-1" },
	}
}

func TestEventPublisher_WrapsEnvelope(t *testing.T) {
	stub := &stubPublisher{}
	pub := newTestPublisher(stub)
	occurred := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	id, err := pub.Publish(context.Background(), "order.placed", occurred, map[string]any{"orderId": 42})
	require.NoError(t, err)
	require.Equal(t, "evt-1", id)
	require.Len(t, stub.messages, 1)

	msg := stub.messages[0]
	require.Equal(t, "order.placed", msg.Attributes["event_type"])
	require.Equal(t, "evt-1", msg.Attributes["event_id"])

	var envelope Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.Equal(t, occurred, envelope.OccurredAt)
	require.JSONEq(t, `{"orderId":42}`, string(envelope.Data))
}

func TestEventPublisher_PropagatesPublishError(t *testing.T) {
	stub := &stubPublisher{err: errors.New("unavailable")}
	pub := newTestPublisher(stub)

	_, err := pub.Publish(context.Background(), "order.placed", time.Now(), map[string]any{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unavailable")
}

func TestEventPublisher_Nil(t *testing.T) {
	var pub *EventPublisher
	_, err := pub.Publish(context.Background(), "order.placed", time.Now(), nil)
	require.Error(t, err)
	pub.Close()
}

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "shop"}
	require.Equal(t, "projects/shop/topics/orders", c.topicResourceName("orders"))
	require.Equal(t, "projects/x/topics/y", c.topicResourceName("projects/x/topics/y"))
	require.Equal(t, "", c.topicResourceName(" "))
}
