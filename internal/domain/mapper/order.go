package mapper

import (
	"fmt"
	"maps"

	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
)

const (
	PlacedOrderEvent    = "Placed Order"
	OrderedProductEvent = "Ordered Product"
)

// Standard order fields that are re-expressed in Klaviyo terms.
var orderDenylist = keySet(
	"orderId", "order_id",
	"eventId", "event_id",
	"total", "revenue", "value",
	"coupon", "discount",
	"products",
)

// Standard line item fields that are re-expressed in Klaviyo terms.
var productDenylist = keySet(
	"product_id", "productId", "id",
	"line_item_id", "lineItemId",
	"sku", "name", "category",
	"price", "quantity",
	"url", "image_url", "imageUrl",
)

// OrderCompleted decomposes an order into one "Placed Order" payload and
// one "Ordered Product" payload per line item, in line item order. All
// payloads share the order timestamp and customer properties.
func OrderCompleted(msg *model.OrderCompleted, s model.Settings) (*model.EventPayload, []*model.EventPayload, error) {
	if msg.OrderID == "" {
		return nil, nil, &model.ValidationError{Reason: "order completed event has no order id"}
	}

	var (
		ts         = unixTime(msg.Timestamp)
		customer   = customerProperties(msg.Identity, s)
		n          = len(msg.Products)
		categories = make([]string, 0, n)
		names      = make([]string, 0, n)
		items      = make([]model.Properties, 0, n)
		products   = make([]*model.EventPayload, 0, n)
		seen       = make(map[string]struct{}, n)
	)

	for i, p := range msg.Products {
		id := p.Identifier()
		if id == "" {
			return nil, nil, &model.ValidationError{
				Reason: fmt.Sprintf("product %d of order %s has no product id, line item id or sku", i, msg.OrderID),
			}
		}

		// [IDEMPOTENCY] the destination drops repeated event ids silently
		if _, dup := seen[id]; dup {
			return nil, nil, &model.ValidationError{
				Reason: fmt.Sprintf("product %d of order %s repeats line item id %q", i, msg.OrderID, id),
			}
		}
		seen[id] = struct{}{}

		categories = append(categories, p.Category)
		names = append(names, p.Name)
		items = append(items, itemSummary(p))

		products = append(products, &model.EventPayload{
			Token:              s.APIKey,
			Event:              OrderedProductEvent,
			Properties:         model.Merge(model.Without(p.Properties, productDenylist), productProperties(msg.OrderID, id, p)),
			Time:               ts,
			CustomerProperties: maps.Clone(customer),
		})
	}

	std := model.Properties{
		"$event_id":     msg.OrderID,
		"Categories":    categories,
		"Item Names":    names,
		"Items":         items,
		"Discount Code": msg.Property("coupon"),
	}
	if msg.Revenue != nil {
		std["$value"] = *msg.Revenue
	}
	if d, ok := model.FloatOf(msg.Properties["discount"]); ok {
		std["Discount Value"] = d
	}

	order := &model.EventPayload{
		Token:              s.APIKey,
		Event:              PlacedOrderEvent,
		Properties:         model.Merge(model.Without(msg.Properties, orderDenylist), std),
		Time:               ts,
		CustomerProperties: customer,
	}

	return order, products, nil
}

// ProductEventID is the per line item idempotency key.
func ProductEventID(orderID, productID string) string {
	return orderID + "_" + productID
}

func productProperties(orderID, id string, p model.Product) model.Properties {
	return model.Properties{
		"$event_id":   ProductEventID(orderID, id),
		"$value":      p.Price,
		"Name":        p.Name,
		"Quantity":    p.Quantity,
		"Categories":  []string{p.Category},
		"SKU":         p.SKU,
		"Product URL": p.URL,
		"Image URL":   p.ImageURL,
	}
}

func itemSummary(p model.Product) model.Properties {
	item := model.Properties{
		"SKU":        p.SKU,
		"Name":       p.Name,
		"Quantity":   p.Quantity,
		"Item Price": p.Price,
		"Row Total":  rowTotal(p.Price, p.Quantity),
		"Categories": []string{p.Category},
	}
	if p.URL != "" {
		item["Product URL"] = p.URL
	}
	if p.ImageURL != "" {
		item["Image URL"] = p.ImageURL
	}
	return item
}

func keySet(keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
