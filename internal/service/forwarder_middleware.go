package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
)

// ForwarderMiddleware implements [DECORATOR_PATTERN] to add observability
// to forwarding without touching the call sequencing.
type ForwarderMiddleware struct {
	Next   Forwarder
	Logger *slog.Logger
}

// NewForwarderMiddleware creates a new logging decorator for the Forwarder.
func NewForwarderMiddleware(next Forwarder, logger *slog.Logger) Forwarder {
	return &ForwarderMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *ForwarderMiddleware) Forward(ctx context.Context, msg model.Message) ([]model.Outcome, error) {
	start := time.Now()
	out, err := m.Next.Forward(ctx, msg)
	m.observe(ctx, "FORWARD", msg, out, err, start)
	return out, err
}

func (m *ForwarderMiddleware) Identify(ctx context.Context, msg *model.Identify) ([]model.Outcome, error) {
	start := time.Now()
	out, err := m.Next.Identify(ctx, msg)
	m.observe(ctx, "IDENTIFY", msg, out, err, start)
	return out, err
}

func (m *ForwarderMiddleware) Track(ctx context.Context, msg *model.Track) ([]model.Outcome, error) {
	start := time.Now()
	out, err := m.Next.Track(ctx, msg)
	m.observe(ctx, "TRACK", msg, out, err, start)
	return out, err
}

func (m *ForwarderMiddleware) OrderCompleted(ctx context.Context, msg *model.OrderCompleted) ([]model.Outcome, error) {
	start := time.Now()
	out, err := m.Next.OrderCompleted(ctx, msg)
	m.observe(ctx, "ORDER_COMPLETED", msg, out, err, start)
	return out, err
}

// observe logs the operation outcome. Rejected input is a warning; failed
// deliveries are errors since the caller will redeliver them.
func (m *ForwarderMiddleware) observe(ctx context.Context, op string, msg model.Message, out []model.Outcome, err error, start time.Time) {
	attrs := []any{
		"kind", msg.Kind().String(),
		"trace_id", TraceID(ctx),
		"customer_id", msg.GetIdentity().CustomerID(),
		"duration_ms", time.Since(start).Milliseconds(),
	}

	switch {
	case err == nil:
		m.Logger.Debug(op+"_COMPLETED", append(attrs, "calls", len(out))...)
	case model.IsTerminal(err):
		m.Logger.Warn(op+"_REJECTED", append(attrs, "err", err)...)
	default:
		m.Logger.Error(op+"_FAILED", append(attrs, "err", err)...)
	}
}
