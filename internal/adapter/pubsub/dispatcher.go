package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
)

// DeliveredTopicPrefix is joined with the message kind to form the routing key.
const DeliveredTopicPrefix = "klaviyo.delivered."

// Delivered is the record published after a message was fully forwarded.
type Delivered struct {
	MessageID   string          `json:"message_id"`
	Kind        string          `json:"kind"`
	Outcomes    []model.Outcome `json:"outcomes"`
	DeliveredAt time.Time       `json:"delivered_at"`
}

// OutcomeDispatcher defines the high-level contract for outgoing delivery records.
// This allows the handler to stay agnostic of the transport implementation.
type OutcomeDispatcher interface {
	Publish(ctx context.Context, msgID string, kind model.Kind, outcomes []model.Outcome) error
	Publisher() message.Publisher
}

type outcomeDispatcher struct {
	publisher message.Publisher
}

// NewOutcomeDispatcher returns the interface instead of the pointer to the struct.
func NewOutcomeDispatcher(pub message.Publisher) OutcomeDispatcher {
	return &outcomeDispatcher{publisher: pub}
}

func (d *outcomeDispatcher) Publish(ctx context.Context, msgID string, kind model.Kind, outcomes []model.Outcome) error {
	payload, err := json.Marshal(Delivered{
		MessageID:   msgID,
		Kind:        kind.String(),
		Outcomes:    outcomes,
		DeliveredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("outcome dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	topic := DeliveredTopicPrefix + kind.String()
	if err := d.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("outcome dispatcher: failed to publish to topic %s: %w", topic, err)
	}

	return nil
}

func (d *outcomeDispatcher) Publisher() message.Publisher {
	return d.publisher
}
