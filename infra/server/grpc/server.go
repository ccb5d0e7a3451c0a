package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/webitel/klaviyo-delivery-service/config"
	"github.com/webitel/klaviyo-delivery-service/infra/server/grpc/interceptors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/fx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported alongside the overall ("") health status.
const ServiceName = "webitel.klaviyo.Delivery"

type Server struct {
	*grpc.Server
	Health *health.Server

	addr   string
	logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors.Unary(logger)...),
		grpc.ChainStreamInterceptor(interceptors.Stream(logger)...),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		Server: s,
		Health: hs,
		addr:   cfg.GRPC.Addr,
		logger: logger,
	}
}

// Serve reports SERVING and blocks until the listener is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.Health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.Health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	if err := s.Server.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop flips health to NOT_SERVING first so balancers drain the node.
func (s *Server) Stop() {
	s.Health.Shutdown()
	s.Server.GracefulStop()
}

var Module = fx.Module("grpc-server",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				ln, err := net.Listen("tcp", s.addr)
				if err != nil {
					return err
				}
				s.logger.Info("GRPC_SERVER_STARTED", "addr", ln.Addr().String())

				go func() {
					if err := s.Serve(ln); err != nil {
						s.logger.Error("GRPC_SERVER_FAILED", "err", err)
					}
				}()
				return nil
			},
			OnStop: func(context.Context) error {
				s.Stop()
				return nil
			},
		})
	}),
)
