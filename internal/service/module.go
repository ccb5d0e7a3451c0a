package service

import (
	"github.com/webitel/klaviyo-delivery-service/config"
	"github.com/webitel/klaviyo-delivery-service/infra/lock"
	"github.com/webitel/klaviyo-delivery-service/internal/adapter/klaviyo"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		fx.Annotate(
			NewForwarderFromConfig,
			fx.As(new(Forwarder)),
		),
	),

	// [DECORATION_LAYER] Intercept Forwarder to add cross-cutting concerns
	fx.Decorate(NewForwarderMiddleware),
)

// NewForwarderFromConfig wires the orchestrator to the Klaviyo client and
// the configured exclusion key driver.
func NewForwarderFromConfig(cfg *config.Config, client *klaviyo.Client, locker lock.Keyed) (*KlaviyoForwarder, error) {
	return NewKlaviyoForwarder(
		cfg.Settings(),
		client,
		WithLocker(locker),
		WithProductConcurrency(cfg.Delivery.ProductConcurrency),
	)
}
