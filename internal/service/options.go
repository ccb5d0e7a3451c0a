package service

import "go.opentelemetry.io/otel/trace"

// ForwarderOption defines a functional configuration type for the KlaviyoForwarder.
type ForwarderOption func(*KlaviyoForwarder)

// WithLocker injects the exclusion-key service used around list adds.
func WithLocker(l Locker) ForwarderOption {
	return func(f *KlaviyoForwarder) {
		if l != nil {
			f.locker = l
		}
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) ForwarderOption {
	return func(f *KlaviyoForwarder) {
		f.tracer = t
	}
}

// WithProductConcurrency caps parallel product calls; n <= 0 means unbounded.
func WithProductConcurrency(n int) ForwarderOption {
	return func(f *KlaviyoForwarder) {
		if n <= 0 {
			n = -1
		}
		f.productLimit = n
	}
}
