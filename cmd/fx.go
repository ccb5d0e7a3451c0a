package cmd

import (
	"log/slog"

	"github.com/webitel/klaviyo-delivery-service/config"
	"github.com/webitel/klaviyo-delivery-service/infra/lock"
	grpcsrv "github.com/webitel/klaviyo-delivery-service/infra/server/grpc"
	"github.com/webitel/klaviyo-delivery-service/internal/adapter/klaviyo"
	amqpdi "github.com/webitel/klaviyo-delivery-service/internal/handler/amqp"
	"github.com/webitel/klaviyo-delivery-service/internal/handler/rest"
	"github.com/webitel/klaviyo-delivery-service/internal/service"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideTracerProvider,
			ProvidePubSub,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
		}),
		// installs the global tracer provider
		fx.Invoke(func(*sdktrace.TracerProvider) {}),
		fx.Invoke(func(logger *slog.Logger) {
			cfg.OnChange(logger, nil)
		}),
		klaviyo.Module,
		lock.Module,
		service.Module,
		grpcsrv.Module,
		amqpdi.Module,
		rest.Module,
	)
}
