package model

import (
	"regexp"
	"time"
)

// Kind discriminates the inbound message variants.
type Kind int16

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED DATA
	KindIdentify Kind = iota + 1
	KindTrack
	KindOrderCompleted
)

func (k Kind) String() string {
	switch k {
	case KindIdentify:
		return "identify"
	case KindTrack:
		return "track"
	case KindOrderCompleted:
		return "order_completed"
	default:
		return "unknown"
	}
}

// Message is the contract for every normalized event handed to the forwarder.
// Implementations are immutable once received.
type Message interface {
	Kind() Kind
	GetIdentity() Identity
	GetTimestamp() time.Time
	GetOptions() Options
}

// Identity groups the person identifiers carried by a message.
type Identity struct {
	UserID      string
	AnonymousID string
	SessionID   string
	Email       string
}

// CustomerID returns the identifier Klaviyo stores as $id.
func (i Identity) CustomerID() string {
	switch {
	case i.UserID != "":
		return i.UserID
	case i.SessionID != "":
		return i.SessionID
	default:
		return i.AnonymousID
	}
}

// Options are the per-message integration overrides.
type Options struct {
	ListID       string
	ConfirmOptin *bool
}

var orderCompletedRe = regexp.MustCompile(`(?i)^[ _]?(completed[ _]?order|order[ _]?completed)[ _]?$`)

// IsOrderCompleted reports whether a track event name denotes a finished purchase.
func IsOrderCompleted(event string) bool {
	return orderCompletedRe.MatchString(event)
}
