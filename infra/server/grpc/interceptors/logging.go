package interceptors

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SlogLogger adapts slog to the go-grpc-middleware logging contract.
func SlogLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

// Unary returns the interceptor chain: recovery outermost, then call logging.
func Unary(logger *slog.Logger) []grpc.UnaryServerInterceptor {
	return []grpc.UnaryServerInterceptor{
		recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(panicHandler(logger))),
		logging.UnaryServerInterceptor(SlogLogger(logger), logging.WithLogOnEvents(logging.FinishCall)),
	}
}

// Stream mirrors Unary for streaming RPCs (health Watch).
func Stream(logger *slog.Logger) []grpc.StreamServerInterceptor {
	return []grpc.StreamServerInterceptor{
		recovery.StreamServerInterceptor(recovery.WithRecoveryHandler(panicHandler(logger))),
		logging.StreamServerInterceptor(SlogLogger(logger), logging.WithLogOnEvents(logging.FinishCall)),
	}
}

func panicHandler(logger *slog.Logger) recovery.RecoveryHandlerFunc {
	return func(p any) error {
		logger.Error("GRPC_PANIC_RECOVERED", "err", p, "stack", string(debug.Stack()))
		return status.Errorf(codes.Internal, "internal error")
	}
}
