package amqp

import (
	"context"
	"fmt"
	"strings"

	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
	"github.com/webitel/klaviyo-delivery-service/internal/service/dto"
)

// [ON_IDENTIFY]
func (h *MessageHandler) OnIdentifyV1(ctx context.Context, raw *dto.MessageV1) (model.Kind, []model.Outcome, error) {
	return h.forward(ctx, raw, dto.TypeIdentify)
}

// [ON_TRACK]
// Order completed events arrive on the track topic and are told apart by event name.
func (h *MessageHandler) OnTrackV1(ctx context.Context, raw *dto.MessageV1) (model.Kind, []model.Outcome, error) {
	return h.forward(ctx, raw, dto.TypeTrack)
}

func (h *MessageHandler) forward(ctx context.Context, raw *dto.MessageV1, want string) (model.Kind, []model.Outcome, error) {
	if raw.Type == "" {
		raw.Type = want
	}
	if !strings.EqualFold(raw.Type, want) {
		return 0, nil, &model.ValidationError{Reason: fmt.Sprintf("%s message on %s topic", raw.Type, want)}
	}

	msg, err := raw.ToDomain()
	if err != nil {
		return 0, nil, err
	}

	outcomes, err := h.forwarder.Forward(ctx, msg)
	return msg.Kind(), outcomes, err
}
