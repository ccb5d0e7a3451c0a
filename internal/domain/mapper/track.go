package mapper

import (
	"time"

	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
)

// Track builds the /track payload for a plain track event.
func Track(msg *model.Track, s model.Settings) *model.EventPayload {
	std := model.Properties{}
	if msg.Revenue != nil {
		std["$value"] = *msg.Revenue
	}

	// [IDEMPOTENCY] Explicit alias first, order id as a fallback.
	if id := msg.Property("eventId", "event_id"); id != "" {
		std["$event_id"] = id
	} else if id := msg.Property("orderId", "order_id"); id != "" {
		std["$event_id"] = id
	}

	return &model.EventPayload{
		Token:              s.APIKey,
		Event:              msg.Event,
		Properties:         model.Merge(msg.Properties, std),
		Time:               unixTime(msg.Timestamp),
		CustomerProperties: customerProperties(msg.Identity, s),
	}
}

func customerProperties(id model.Identity, s model.Settings) model.Properties {
	std := model.Properties{"$email": id.Email}
	if !s.EnforceEmail {
		std["$id"] = id.CustomerID()
	}
	return model.Merge(nil, std)
}

func unixTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
