// Package mapper converts normalized messages into Klaviyo payloads.
// Every function is pure: no I/O, and the input message is never mutated.
package mapper

import (
	"maps"

	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
)

// Identify builds the person payload and, when list id, email and private
// key are all known, the list membership payload. A missing piece means
// no list call, never an error.
func Identify(msg *model.Identify, s model.Settings) (*model.PersonPayload, *model.ListMembershipPayload) {
	props := model.Merge(msg.Traits, personProperties(msg, s))

	person := &model.PersonPayload{
		Token:      s.APIKey,
		Properties: props,
	}

	listID := msg.Options.ListID
	if listID == "" {
		listID = s.ListID
	}
	if listID == "" || msg.Email == "" || s.PrivateKey == "" {
		return person, nil
	}

	optin := s.ConfirmOptin
	if msg.Options.ConfirmOptin != nil {
		optin = *msg.Options.ConfirmOptin
	}

	return person, &model.ListMembershipPayload{
		ListID:       listID,
		Email:        msg.Email,
		APIKey:       s.PrivateKey,
		ConfirmOptin: optin,
		Properties:   maps.Clone(props),
	}
}

// personProperties lists the Klaviyo special person fields.
func personProperties(msg *model.Identify, s model.Settings) model.Properties {
	std := model.Properties{
		"$email":        msg.Email,
		"$first_name":   msg.FirstName(),
		"$last_name":    msg.LastName(),
		"$phone_number": msg.Trait("phone"),
		"$title":        msg.Trait("title"),
		"$organization": msg.Trait("organization"),
		"$company":      msg.Trait("company"),
		"$city":         msg.Address("city"),
		"$region":       msg.Address("state", "region"),
		"$country":      msg.Address("country"),
		"$zip":          msg.Address("postalCode", "postal_code", "zip"),
		"$address1":     msg.Address("street", "line1"),
		"$image":        msg.Trait("avatar"),
	}

	// [IDENTITY_POLICY] Email-only profiles never carry $id.
	if !s.EnforceEmail {
		std["$id"] = msg.CustomerID()
	}

	return std
}
