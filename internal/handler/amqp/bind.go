package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
)

// DomainHandler defines the functional signature for business logic.
type DomainHandler[T any] func(ctx context.Context, payload *T) (model.Kind, []model.Outcome, error)

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to Domain logic, handling Panic Recovery, Decoding and Ack policy.
func Bind[T any](h *MessageHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		// [DECODING]
		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
			return nil // ACK: Poison Pill protection.
		}

		// [EXECUTION]
		kind, outcomes, err := fn(msg.Context(), payload)
		if err != nil {
			if model.IsTerminal(err) {
				h.logger.Warn("MESSAGE_REJECTED", "err", err, "msg_id", msg.UUID)
				return nil // ACK: Redelivery cannot fix bad input or settings.
			}
			return err // NACK: Transport and destination failures trigger Retry policy.
		}

		// [OUTCOME_DISPATCH]
		// Klaviyo already accepted the calls; a lost record must not resend them.
		if err := h.dispatcher.Publish(msg.Context(), msg.UUID, kind, outcomes); err != nil {
			h.logger.Warn("OUTCOME_DISPATCH_FAILED", "err", err, "msg_id", msg.UUID)
		}

		return nil
	}
}
