package amqp

import (
	"github.com/ThreeDotsLabs/watermill/message"
	pubsubadapter "github.com/webitel/klaviyo-delivery-service/internal/adapter/pubsub"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		pubsubadapter.NewDispatcherFromProvider,
		pubsubadapter.NewSubscriberProvider,

		NewMessageHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(h *MessageHandler, router *message.Router, sp *pubsubadapter.SubscriberProvider) error {
		return h.RegisterHandlers(router, sp)
	}),
)
