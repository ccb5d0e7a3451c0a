// Package pubsub builds watermill publishers and subscribers on AMQP topic
// exchanges.
package pubsub

import (
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Provider hides the broker so handlers can run on an in-memory pub/sub in tests.
type Provider interface {
	Publisher(exchange string) (message.Publisher, error)
	Subscriber(queue, exchange string) (message.Subscriber, error)
	Close() error
}

type AMQPProvider struct {
	url    string
	logger watermill.LoggerAdapter

	mu     sync.Mutex
	closer []interface{ Close() error }
}

func NewAMQPProvider(url string, logger watermill.LoggerAdapter) *AMQPProvider {
	return &AMQPProvider{url: url, logger: logger}
}

// config declares a durable topic exchange; the watermill topic is the routing key.
func (p *AMQPProvider) config(queue, exchange string) amqp.Config {
	routingKey := func(topic string) string { return topic }

	return amqp.Config{
		Connection: amqp.ConnectionConfig{AmqpURI: p.url},
		Marshaler:  amqp.DefaultMarshaler{},
		Exchange: amqp.ExchangeConfig{
			GenerateName: func(string) string { return exchange },
			Type:         "topic",
			Durable:      true,
		},
		Queue: amqp.QueueConfig{
			GenerateName: amqp.GenerateQueueNameConstant(queue),
			Durable:      true,
		},
		QueueBind: amqp.QueueBindConfig{
			GenerateRoutingKey: routingKey,
		},
		Publish: amqp.PublishConfig{
			GenerateRoutingKey: routingKey,
		},
		Consume: amqp.ConsumeConfig{
			Qos: amqp.QosConfig{PrefetchCount: 16},
		},
		TopologyBuilder: &amqp.DefaultTopologyBuilder{},
	}
}

func (p *AMQPProvider) Publisher(exchange string) (message.Publisher, error) {
	pub, err := amqp.NewPublisher(p.config("", exchange), p.logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: publisher %s: %w", exchange, err)
	}
	p.track(pub)
	return pub, nil
}

func (p *AMQPProvider) Subscriber(queue, exchange string) (message.Subscriber, error) {
	sub, err := amqp.NewSubscriber(p.config(queue, exchange), p.logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: subscriber %s: %w", queue, err)
	}
	p.track(sub)
	return sub, nil
}

func (p *AMQPProvider) track(c interface{ Close() error }) {
	p.mu.Lock()
	p.closer = append(p.closer, c)
	p.mu.Unlock()
}

// Close shuts every connection opened by the provider.
func (p *AMQPProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var first error
	for _, c := range p.closer {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.closer = nil
	return first
}
