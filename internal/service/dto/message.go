// internal/service/dto/message.go
package dto

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
)

// IntegrationName is the key looked up under "integrations" for per-message options.
const IntegrationName = "Klaviyo"

const (
	TypeIdentify = "identify"
	TypeTrack    = "track"
)

// [PIPELINE_V1] NORMALIZED MESSAGE AS EMITTED BY THE ANALYTICS PIPELINE
type MessageV1 struct {
	Type         string                     `json:"type"`
	MessageID    string                     `json:"messageId"`
	UserID       any                        `json:"userId"`
	AnonymousID  any                        `json:"anonymousId"`
	SessionID    string                     `json:"sessionId"`
	Event        string                     `json:"event"`
	Traits       map[string]any             `json:"traits"`
	Properties   map[string]any             `json:"properties"`
	Context      ContextDTO                 `json:"context"`
	Integrations map[string]json.RawMessage `json:"integrations"`
	Timestamp    string                     `json:"timestamp"`
}

type ContextDTO struct {
	Traits map[string]any `json:"traits"`
}

type OptionsDTO struct {
	ListID       string `json:"listId"`
	ConfirmOptin *bool  `json:"confirmOptin"`
}

// Decode parses a raw payload straight into a domain message.
func Decode(data []byte) (model.Message, error) {
	var raw MessageV1
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &model.ValidationError{Reason: fmt.Sprintf("malformed message: %v", err)}
	}
	return raw.ToDomain()
}

// ToDomain performs the tagged-variant split: identify, track or order completed.
func (d *MessageV1) ToDomain() (model.Message, error) {
	switch strings.ToLower(d.Type) {
	case TypeIdentify:
		return d.toIdentify(), nil
	case TypeTrack:
		return d.toTrack()
	default:
		return nil, &model.ValidationError{Reason: fmt.Sprintf("unsupported message type %q", d.Type)}
	}
}

func (d *MessageV1) identity(bag map[string]any) model.Identity {
	id := model.Identity{
		UserID:      model.StringOf(d.UserID),
		AnonymousID: model.StringOf(d.AnonymousID),
		SessionID:   d.SessionID,
	}

	// [EMAIL_RESOLUTION] payload bag, then context traits, then an email-shaped user id
	switch {
	case model.StringOf(bag["email"]) != "":
		id.Email = model.StringOf(bag["email"])
	case model.StringOf(d.Context.Traits["email"]) != "":
		id.Email = model.StringOf(d.Context.Traits["email"])
	case strings.Contains(id.UserID, "@"):
		id.Email = id.UserID
	}

	return id
}

func (d *MessageV1) toIdentify() *model.Identify {
	return &model.Identify{
		Identity:  d.identity(d.Traits),
		Traits:    maps.Clone(d.Traits),
		Options:   d.options(),
		Timestamp: d.timestamp(),
	}
}

func (d *MessageV1) toTrack() (model.Message, error) {
	if d.Event == "" {
		return nil, &model.ValidationError{Reason: "track message has no event name"}
	}

	track := model.Track{
		Identity:   d.identity(d.Properties),
		Event:      d.Event,
		Properties: maps.Clone(d.Properties),
		Options:    d.options(),
		Timestamp:  d.timestamp(),
	}
	if v, ok := model.FloatOf(d.Properties["revenue"]); ok {
		track.Revenue = &v
	}

	if !model.IsOrderCompleted(d.Event) {
		return &track, nil
	}

	// [REVENUE_FALLBACK] Completed orders report total when revenue is absent
	if track.Revenue == nil {
		if v, ok := model.FloatOf(d.Properties["total"]); ok {
			track.Revenue = &v
		}
	}

	products, err := d.products()
	if err != nil {
		return nil, err
	}

	return &model.OrderCompleted{
		Track:    track,
		OrderID:  track.Property("orderId", "order_id"),
		Products: products,
	}, nil
}

func (d *MessageV1) products() ([]model.Product, error) {
	raw, _ := d.Properties["products"].([]any)
	res := make([]model.Product, 0, len(raw))
	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &model.ValidationError{Reason: fmt.Sprintf("product %d is not an object", i)}
		}
		res = append(res, mapProduct(obj))
	}
	return res, nil
}

func mapProduct(obj map[string]any) model.Product {
	p := model.Product{
		ProductID:  firstString(obj, "product_id", "productId", "id"),
		LineItemID: firstString(obj, "line_item_id", "lineItemId"),
		SKU:        firstString(obj, "sku"),
		Name:       firstString(obj, "name"),
		Category:   firstString(obj, "category"),
		URL:        firstString(obj, "url"),
		ImageURL:   firstString(obj, "image_url", "imageUrl"),
		Quantity:   1,
		Properties: maps.Clone(obj),
	}
	if v, ok := model.FloatOf(obj["price"]); ok {
		p.Price = v
	}
	if v, ok := model.FloatOf(obj["quantity"]); ok {
		p.Quantity = int64(v)
	}
	return p
}

func (d *MessageV1) options() model.Options {
	for name, raw := range d.Integrations {
		if !strings.EqualFold(name, IntegrationName) {
			continue
		}
		var opts OptionsDTO
		// "Klaviyo": true is a plain enable flag without options
		if err := json.Unmarshal(raw, &opts); err != nil {
			return model.Options{}
		}
		return model.Options{ListID: opts.ListID, ConfirmOptin: opts.ConfirmOptin}
	}
	return model.Options{}
}

func (d *MessageV1) timestamp() time.Time {
	t, err := time.Parse(time.RFC3339, d.Timestamp)
	if err != nil {
		return time.Now()
	}
	return t
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := model.StringOf(obj[k]); v != "" {
			return v
		}
	}
	return ""
}
