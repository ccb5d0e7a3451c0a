package lock

import (
	"context"
	"fmt"
	"log/slog"

	consul "github.com/hashicorp/consul/api"
	"github.com/webitel/klaviyo-delivery-service/config"
	"go.uber.org/fx"
)

// Keyed is what both drivers offer.
type Keyed interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

var Module = fx.Module(
	"lock",

	fx.Provide(NewFromConfig),
)

// NewFromConfig selects the driver named by lock.driver.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (Keyed, error) {
	switch cfg.Lock.Driver {
	case "consul":
		cc := consul.DefaultConfig()
		cc.Address = cfg.Lock.ConsulAddr

		client, err := consul.NewClient(cc)
		if err != nil {
			return nil, fmt.Errorf("lock: consul client: %w", err)
		}

		logger.Info("LOCK_DRIVER_SELECTED", "driver", "consul", "addr", cc.Address)
		return NewConsul(client, cfg.Lock.Prefix, cfg.Lock.WaitTime, logger), nil
	default:
		logger.Info("LOCK_DRIVER_SELECTED", "driver", "local")
		return NewLocal(), nil
	}
}
