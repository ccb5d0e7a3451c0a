package pubsub

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/klaviyo-delivery-service/config"
)

type recordingProvider struct {
	queue, exchange string
}

func (p *recordingProvider) Publisher(string) (message.Publisher, error) { return nil, nil }

func (p *recordingProvider) Subscriber(queue, exchange string) (message.Subscriber, error) {
	p.queue, p.exchange = queue, exchange
	return nil, nil
}

func (p *recordingProvider) Close() error { return nil }

func TestSubscriberProvider_QueueFromConfig(t *testing.T) {
	rec := &recordingProvider{}
	cfg := &config.Config{AMQP: config.AMQPConfig{Exchange: "klaviyo", Queue: "klaviyo-delivery.v1"}}

	_, err := NewSubscriberProvider(rec, cfg).Build("ON_TRACK")
	require.NoError(t, err)

	assert.Equal(t, "klaviyo-delivery.v1.ON_TRACK", rec.queue)
	assert.Equal(t, "klaviyo", rec.exchange)
}

func TestSubscriberProvider_NoPrefix(t *testing.T) {
	sp := NewSubscriberProvider(&recordingProvider{}, &config.Config{})
	assert.Equal(t, "ON_IDENTIFY", sp.QueueName("ON_IDENTIFY"))
}
