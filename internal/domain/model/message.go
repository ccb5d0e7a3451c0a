package model

import (
	"strings"
	"time"
)

// Interface guards
var (
	_ Message = (*Identify)(nil)
	_ Message = (*Track)(nil)
	_ Message = (*OrderCompleted)(nil)
)

// [IDENTIFY] ESTABLISHES OR UPDATES A PERSON PROFILE
type Identify struct {
	Identity
	Traits    map[string]any
	Options   Options
	Timestamp time.Time
}

func (m *Identify) Kind() Kind              { return KindIdentify }
func (m *Identify) GetIdentity() Identity   { return m.Identity }
func (m *Identify) GetTimestamp() time.Time { return m.Timestamp }
func (m *Identify) GetOptions() Options     { return m.Options }

// Trait returns a trait value as string, following nested maps for dotted paths.
func (m *Identify) Trait(path string) string {
	var cur any = m.Traits
	for part := range strings.SplitSeq(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[part]
	}
	return stringOf(cur)
}

// FirstName falls back to the first word of traits.name.
func (m *Identify) FirstName() string {
	if v := m.Trait("firstName"); v != "" {
		return v
	}
	if v := m.Trait("first_name"); v != "" {
		return v
	}
	first, _, _ := strings.Cut(strings.TrimSpace(m.Trait("name")), " ")
	return first
}

// LastName falls back to everything after the first word of traits.name.
func (m *Identify) LastName() string {
	if v := m.Trait("lastName"); v != "" {
		return v
	}
	if v := m.Trait("last_name"); v != "" {
		return v
	}
	_, rest, _ := strings.Cut(strings.TrimSpace(m.Trait("name")), " ")
	return strings.TrimSpace(rest)
}

// Address looks the field up under traits.address first, then at the top level.
func (m *Identify) Address(fields ...string) string {
	for _, f := range fields {
		if v := m.Trait("address." + f); v != "" {
			return v
		}
	}
	for _, f := range fields {
		if v := m.Trait(f); v != "" {
			return v
		}
	}
	return ""
}

// [TRACK] A NAMED USER ACTION WITH FREE-FORM PROPERTIES
type Track struct {
	Identity
	Event      string
	Properties map[string]any
	Revenue    *float64
	Options    Options
	Timestamp  time.Time
}

func (m *Track) Kind() Kind              { return KindTrack }
func (m *Track) GetIdentity() Identity   { return m.Identity }
func (m *Track) GetTimestamp() time.Time { return m.Timestamp }
func (m *Track) GetOptions() Options     { return m.Options }

// Property returns the first non-empty string value among keys.
func (m *Track) Property(keys ...string) string {
	for _, k := range keys {
		if v := stringOf(m.Properties[k]); v != "" {
			return v
		}
	}
	return ""
}

// [ORDER_COMPLETED] A TRACK SPECIALIZATION CARRYING LINE ITEMS
type OrderCompleted struct {
	Track
	OrderID  string
	Products []Product
}

func (m *OrderCompleted) Kind() Kind { return KindOrderCompleted }

// Product is a single order line item. Properties keeps every raw key.
type Product struct {
	ProductID  string
	LineItemID string
	SKU        string
	Name       string
	Category   string
	Price      float64
	Quantity   int64
	URL        string
	ImageURL   string
	Properties map[string]any
}

// Identifier returns the most specific id available for the line item.
func (p Product) Identifier() string {
	switch {
	case p.ProductID != "":
		return p.ProductID
	case p.LineItemID != "":
		return p.LineItemID
	default:
		return p.SKU
	}
}
