package pubsub

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/klaviyo-delivery-service/config"
	infrapubsub "github.com/webitel/klaviyo-delivery-service/infra/pubsub"
)

// SubscriberProvider builds one subscriber per handler queue on the inbound exchange.
type SubscriberProvider struct {
	provider infrapubsub.Provider
	exchange string
	prefix   string
}

func NewSubscriberProvider(p infrapubsub.Provider, cfg *config.Config) *SubscriberProvider {
	return &SubscriberProvider{provider: p, exchange: cfg.AMQP.Exchange, prefix: cfg.AMQP.Queue}
}

// QueueName joins the configured prefix and the handler name.
// Format: klaviyo-delivery.incoming-processor.v1.ON_TRACK
func (sp *SubscriberProvider) QueueName(handler string) string {
	if sp.prefix == "" {
		return handler
	}
	return sp.prefix + "." + handler
}

// Build subscribes the handler's shared queue; replicas compete on it.
func (sp *SubscriberProvider) Build(handler string) (message.Subscriber, error) {
	return sp.provider.Subscriber(sp.QueueName(handler), sp.exchange)
}

// NewDispatcherFromProvider publishes delivery records and poison messages
// on the inbound exchange.
func NewDispatcherFromProvider(p infrapubsub.Provider, cfg *config.Config) (OutcomeDispatcher, error) {
	pub, err := p.Publisher(cfg.AMQP.Exchange)
	if err != nil {
		return nil, err
	}
	return NewOutcomeDispatcher(pub), nil
}
