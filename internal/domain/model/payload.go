package model

// Properties is a destination property map.
type Properties map[string]any

// Merge copies custom into a fresh map and overlays standard on top.
// A standard key wins on collision; a standard entry without a value
// (nil or "") is skipped so it never erases a custom value.
func Merge(custom map[string]any, standard Properties) Properties {
	out := make(Properties, len(custom)+len(standard))
	for k, v := range custom {
		out[k] = v
	}
	for k, v := range standard {
		if isBlank(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// Without returns a copy of src minus the denied keys.
func Without(src map[string]any, deny map[string]struct{}) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		if _, ok := deny[k]; ok {
			continue
		}
		out[k] = v
	}
	return out
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	default:
		return false
	}
}

// PersonPayload is the /identify body.
type PersonPayload struct {
	Token      string     `json:"token"`
	Properties Properties `json:"properties"`
}

// EventPayload is the /track body used for track, order and product events.
type EventPayload struct {
	Token              string     `json:"token"`
	Event              string     `json:"event"`
	Properties         Properties `json:"properties"`
	Time               int64      `json:"time"`
	CustomerProperties Properties `json:"customer_properties"`
}

// EventID returns the idempotency key, or "" when none was derived.
func (p *EventPayload) EventID() string {
	return StringOf(p.Properties["$event_id"])
}

// ListMembershipPayload is the form body of POST /list/{listId}/members.
type ListMembershipPayload struct {
	ListID       string
	Email        string
	APIKey       string
	ConfirmOptin bool
	Properties   Properties
}
