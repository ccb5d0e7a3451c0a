package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/webitel/klaviyo-delivery-service/internal/adapter/pubsub"
	"github.com/webitel/klaviyo-delivery-service/internal/service"
	"go.uber.org/fx"
)

const (
	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicIdentify = "klaviyo.identify.v1"
	TopicTrack    = "klaviyo.track.v1"

	// ------------------- POISON (DEAD LETTERS) -----------------
	DeliveryPoisonTopic = "klaviyo-delivery.incoming-processor.v1.poison"
)

type MessageHandler struct {
	logger     *slog.Logger
	forwarder  service.Forwarder
	dispatcher pubsub.OutcomeDispatcher

	// retry is overridable so tests do not wait on real backoff.
	retry middleware.Retry
}

func NewMessageHandler(logger *slog.Logger, forwarder service.Forwarder, dispatcher pubsub.OutcomeDispatcher) *MessageHandler {
	return &MessageHandler{
		logger:     logger,
		forwarder:  forwarder,
		dispatcher: dispatcher,
		retry:      NewRetryMiddleware(logger),
	}
}

// NewWatermillRouter runs the router for the lifetime of the app.
func NewWatermillRouter(lc fx.Lifecycle, logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 30 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("ROUTER_SETUP_FAILED: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Error("ROUTER_STOPPED", err, nil)
				}
			}()
			<-router.Running()
			return nil
		},
		OnStop: func(context.Context) error {
			return router.Close()
		},
	})

	return router, nil
}

// [REGISTRATION_PIPELINE]
func (h *MessageHandler) RegisterHandlers(router *message.Router, subProvider *pubsub.SubscriberProvider) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), DeliveryPoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	configs := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{"ON_IDENTIFY", TopicIdentify, Bind(h, h.OnIdentifyV1)},
		{"ON_TRACK", TopicTrack, Bind(h, h.OnTrackV1)},
	}

	for _, c := range configs {
		sub, err := subProvider.Build(c.name)
		if err != nil {
			return err
		}

		router.AddConsumerHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			poison,
			h.retry.Middleware,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("AMQP_PIPELINE_READY", "queue_prefix", subProvider.QueueName("*"))
	return nil
}
