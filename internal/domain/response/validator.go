// Package response classifies raw Klaviyo responses.
//
// The identify and track endpoints answer with the literal body "1" on
// success and anything else on failure, independent of the HTTP status.
// List membership calls carry no body marker and are judged on status alone.
package response

import (
	"errors"

	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
)

// SuccessMarker is the exact body identify/track return when accepted.
const SuccessMarker = "1"

var errNilResponse = errors.New("nil response")

// Validate returns nil for an accepted call, *model.TransportError for a
// non-2xx status and *model.DomainError for a 2xx body without the marker.
func Validate(res *model.RawResponse) error {
	if res == nil {
		return &model.TransportError{Err: errNilResponse}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &model.TransportError{Endpoint: res.Endpoint, StatusCode: res.StatusCode}
	}

	switch res.Endpoint {
	case model.EndpointIdentify, model.EndpointTrack:
		// [EXACT_MATCH] No trimming, no JSON decoding.
		if string(res.Body) != SuccessMarker {
			return &model.DomainError{Endpoint: res.Endpoint, Body: string(res.Body)}
		}
	}

	return nil
}
