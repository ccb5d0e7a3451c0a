package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
)

func TestDecode_Identify(t *testing.T) {
	msg, err := Decode([]byte(`{
		"type": "identify",
		"userId": "user-id",
		"anonymousId": "anon-1",
		"traits": {"email": "jd@example.com", "name": "John Doe"},
		"integrations": {"Klaviyo": {"listId": "L1", "confirmOptin": false}},
		"timestamp": "2024-03-01T12:30:00Z"
	}`))
	require.NoError(t, err)

	identify, ok := msg.(*model.Identify)
	require.True(t, ok)
	assert.Equal(t, model.KindIdentify, identify.Kind())
	assert.Equal(t, "user-id", identify.UserID)
	assert.Equal(t, "anon-1", identify.AnonymousID)
	assert.Equal(t, "jd@example.com", identify.Email)
	assert.Equal(t, "L1", identify.Options.ListID)
	require.NotNil(t, identify.Options.ConfirmOptin)
	assert.False(t, *identify.Options.ConfirmOptin)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), identify.Timestamp.UTC())
}

func TestDecode_EmailFallbacks(t *testing.T) {
	t.Run("context traits", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"track","event":"Login","userId":"u1","context":{"traits":{"email":"ctx@example.com"}}}`))
		require.NoError(t, err)
		assert.Equal(t, "ctx@example.com", msg.GetIdentity().Email)
	})

	t.Run("email shaped user id", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"identify","userId":"who@example.com"}`))
		require.NoError(t, err)
		assert.Equal(t, "who@example.com", msg.GetIdentity().Email)
	})
}

func TestDecode_Track(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"track","event":"Login","userId":42,"properties":{"foo":"bar","revenue":"9.5"},"integrations":{"Klaviyo":true}}`))
	require.NoError(t, err)

	track, ok := msg.(*model.Track)
	require.True(t, ok)
	assert.Equal(t, "42", track.UserID)
	assert.Equal(t, "Login", track.Event)
	require.NotNil(t, track.Revenue)
	assert.Equal(t, 9.5, *track.Revenue)
	assert.Equal(t, model.Options{}, track.Options)
	assert.False(t, track.Timestamp.IsZero())
}

func TestDecode_OrderCompleted(t *testing.T) {
	msg, err := Decode([]byte(`{
		"type": "track",
		"event": "Completed Order",
		"userId": "u1",
		"properties": {
			"orderId": "O1",
			"total": 20,
			"products": [
				{"sku": "A1", "price": 10, "quantity": 1, "name": "Apple"},
				{"sku": "A2", "price": 5, "image_url": "https://img/a2.png"}
			]
		}
	}`))
	require.NoError(t, err)

	order, ok := msg.(*model.OrderCompleted)
	require.True(t, ok)
	assert.Equal(t, model.KindOrderCompleted, order.Kind())
	assert.Equal(t, "O1", order.OrderID)
	require.NotNil(t, order.Revenue)
	assert.Equal(t, 20.0, *order.Revenue)

	require.Len(t, order.Products, 2)
	assert.Equal(t, "A1", order.Products[0].Identifier())
	assert.Equal(t, int64(1), order.Products[0].Quantity)
	assert.Equal(t, int64(1), order.Products[1].Quantity, "quantity defaults to one")
	assert.Equal(t, "https://img/a2.png", order.Products[1].ImageURL)
}

func TestDecode_Rejections(t *testing.T) {
	cases := map[string]string{
		"malformed":        `{"type":`,
		"unknown type":     `{"type":"page"}`,
		"nameless track":   `{"type":"track"}`,
		"non-object items": `{"type":"track","event":"Order Completed","properties":{"products":["A1"]}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body))
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func TestIsOrderCompleted(t *testing.T) {
	for _, name := range []string{"Order Completed", "order completed", "Completed Order", "order_completed", "completedorder"} {
		assert.True(t, model.IsOrderCompleted(name), name)
	}
	for _, name := range []string{"Order Placed", "Completed Orders", "Viewed Order Completed Page"} {
		assert.False(t, model.IsOrderCompleted(name), name)
	}
}
