package klaviyo

import (
	"log/slog"

	"github.com/webitel/klaviyo-delivery-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"klaviyo",

	fx.Provide(NewFromConfig),
)

// NewFromConfig builds the destination client from the klaviyo section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	return New(
		WithEndpoint(cfg.Klaviyo.Endpoint),
		WithTimeout(cfg.Klaviyo.Timeout),
		WithMaxTries(cfg.Klaviyo.MaxTries),
		WithRetryInterval(cfg.Klaviyo.RetryInterval),
		WithLogger(logger.With("component", "klaviyo")),
	)
}
