package service

import "context"

type traceIDKey struct{}

// WithTraceID attaches the transport correlation id (AMQP trace_id or
// HTTP X-Request-Id) so forwarding logs can be joined with the handler's.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceID returns the id attached by WithTraceID, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}
