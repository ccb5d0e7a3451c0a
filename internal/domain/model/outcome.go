package model

type Endpoint int16

const (
	EndpointIdentify Endpoint = iota + 1
	EndpointTrack
	EndpointListMembers
)

func (e Endpoint) String() string {
	switch e {
	case EndpointIdentify:
		return "identify"
	case EndpointTrack:
		return "track"
	case EndpointListMembers:
		return "list_members"
	default:
		return "unknown"
	}
}

func (e Endpoint) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

// RawResponse is what the transport hands back for a single call.
type RawResponse struct {
	Endpoint   Endpoint
	StatusCode int
	Body       []byte
}

// Outcome classifies one sub-call of a logical operation.
type Outcome struct {
	Endpoint Endpoint    `json:"endpoint"`
	Event    string      `json:"event,omitempty"`
	EventID  string      `json:"event_id,omitempty"`
	Success  bool        `json:"success"`
	Response RawResponse `json:"-"`
}
