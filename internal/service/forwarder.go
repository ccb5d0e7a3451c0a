package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/webitel/klaviyo-delivery-service/internal/domain/mapper"
	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
	"github.com/webitel/klaviyo-delivery-service/internal/domain/response"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/webitel/klaviyo-delivery-service/internal/service"

// Forwarder is the primary interface for transport handlers (AMQP/HTTP).
type Forwarder interface {
	// Forward dispatches on the message variant.
	Forward(ctx context.Context, msg model.Message) ([]model.Outcome, error)
	Identify(ctx context.Context, msg *model.Identify) ([]model.Outcome, error)
	Track(ctx context.Context, msg *model.Track) ([]model.Outcome, error)
	OrderCompleted(ctx context.Context, msg *model.OrderCompleted) ([]model.Outcome, error)
}

// Sender is the HTTP transport collaborator. It owns timeouts and retries.
type Sender interface {
	Identify(ctx context.Context, p *model.PersonPayload) (*model.RawResponse, error)
	Track(ctx context.Context, p *model.EventPayload) (*model.RawResponse, error)
	Subscribe(ctx context.Context, p *model.ListMembershipPayload) (*model.RawResponse, error)
}

// Locker hands out exclusion keys so list-add and identify for one person
// never interleave across overlapping operations.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type nopLocker struct{}

func (nopLocker) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

type KlaviyoForwarder struct {
	settings     model.Settings
	sender       Sender
	locker       Locker
	tracer       trace.Tracer
	productLimit int
}

// NewKlaviyoForwarder rejects incomplete settings before any network call.
func NewKlaviyoForwarder(settings model.Settings, sender Sender, opts ...ForwarderOption) (*KlaviyoForwarder, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	f := &KlaviyoForwarder{
		settings:     settings,
		sender:       sender,
		locker:       nopLocker{},
		tracer:       otel.Tracer(tracerName),
		productLimit: -1,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Forward implements tagged-variant dispatch over the message kinds.
func (f *KlaviyoForwarder) Forward(ctx context.Context, msg model.Message) ([]model.Outcome, error) {
	switch m := msg.(type) {
	case *model.Identify:
		return f.Identify(ctx, m)
	case *model.OrderCompleted:
		return f.OrderCompleted(ctx, m)
	case *model.Track:
		return f.Track(ctx, m)
	default:
		return nil, &model.ValidationError{Reason: fmt.Sprintf("unsupported message %T", msg)}
	}
}

// Identify always adds to the list first (when a list payload exists) and
// only then sends the person. A failed list call aborts the person call.
func (f *KlaviyoForwarder) Identify(ctx context.Context, msg *model.Identify) ([]model.Outcome, error) {
	ctx, span := f.tracer.Start(ctx, "klaviyo.identify")
	defer span.End()

	if err := f.precheck(msg.Identity); err != nil {
		return nil, fail(span, err)
	}

	person, list := mapper.Identify(msg, f.settings)
	span.SetAttributes(attribute.Bool("klaviyo.list", list != nil))

	if list == nil {
		out, err := f.call(ctx, model.EndpointIdentify, func(ctx context.Context) (*model.RawResponse, error) {
			return f.sender.Identify(ctx, person)
		})
		if err != nil {
			return nil, fail(span, err)
		}
		return []model.Outcome{out}, nil
	}

	// [EXCLUSION] list add + identify for the same person run one at a time
	release, err := f.locker.Acquire(ctx, f.exclusionKey(msg.Identity))
	if err != nil {
		return nil, fail(span, fmt.Errorf("acquire exclusion key: %w", err))
	}
	defer release()

	listOut, err := f.call(ctx, model.EndpointListMembers, func(ctx context.Context) (*model.RawResponse, error) {
		return f.sender.Subscribe(ctx, list)
	})
	if err != nil {
		return nil, fail(span, err)
	}

	personOut, err := f.call(ctx, model.EndpointIdentify, func(ctx context.Context) (*model.RawResponse, error) {
		return f.sender.Identify(ctx, person)
	})
	if err != nil {
		return nil, fail(span, err)
	}

	return []model.Outcome{listOut, personOut}, nil
}

// Track sends a single event.
func (f *KlaviyoForwarder) Track(ctx context.Context, msg *model.Track) ([]model.Outcome, error) {
	ctx, span := f.tracer.Start(ctx, "klaviyo.track", trace.WithAttributes(attribute.String("klaviyo.event", msg.Event)))
	defer span.End()

	if err := f.precheck(msg.Identity); err != nil {
		return nil, fail(span, err)
	}

	out, err := f.track(ctx, mapper.Track(msg, f.settings))
	if err != nil {
		return nil, fail(span, err)
	}
	return []model.Outcome{out}, nil
}

// OrderCompleted sends the order event, then fans out one call per product.
// The first product failure stops dispatching the remaining products;
// calls already in flight are awaited, never cancelled.
func (f *KlaviyoForwarder) OrderCompleted(ctx context.Context, msg *model.OrderCompleted) ([]model.Outcome, error) {
	ctx, span := f.tracer.Start(ctx, "klaviyo.order_completed", trace.WithAttributes(
		attribute.String("klaviyo.order_id", msg.OrderID),
		attribute.Int("klaviyo.products", len(msg.Products)),
	))
	defer span.End()

	if err := f.precheck(msg.Identity); err != nil {
		return nil, fail(span, err)
	}

	order, products, err := mapper.OrderCompleted(msg, f.settings)
	if err != nil {
		return nil, fail(span, err)
	}

	orderOut, err := f.track(ctx, order)
	if err != nil {
		return nil, fail(span, err)
	}

	outcomes := make([]model.Outcome, len(products)+1)
	outcomes[0] = orderOut

	// [FAN_OUT_BARRIER] Plain Group: a failure must not cancel sibling calls.
	// It only stops dispatching the products still waiting for a slot.
	var (
		g      errgroup.Group
		failed atomic.Bool
	)
	g.SetLimit(f.productLimit)

	for i, p := range products {
		if failed.Load() {
			break
		}
		g.Go(func() error {
			if failed.Load() {
				return nil
			}
			out, err := f.track(ctx, p)
			if err != nil {
				failed.Store(true)
				return err
			}
			outcomes[i+1] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fail(span, err)
	}

	return outcomes, nil
}

func (f *KlaviyoForwarder) track(ctx context.Context, p *model.EventPayload) (model.Outcome, error) {
	out, err := f.call(ctx, model.EndpointTrack, func(ctx context.Context) (*model.RawResponse, error) {
		return f.sender.Track(ctx, p)
	})
	if err != nil {
		return model.Outcome{}, err
	}
	out.Event = p.Event
	out.EventID = p.EventID()
	return out, nil
}

// call wraps one outbound request in a client span and runs the validator.
// Errors are returned verbatim.
func (f *KlaviyoForwarder) call(ctx context.Context, ep model.Endpoint, send func(context.Context) (*model.RawResponse, error)) (model.Outcome, error) {
	ctx, span := f.tracer.Start(ctx, "klaviyo.call."+ep.String(), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	res, err := send(ctx)
	if err == nil {
		err = response.Validate(res)
	}
	if err != nil {
		return model.Outcome{}, fail(span, err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))
	return model.Outcome{Endpoint: ep, Success: true, Response: *res}, nil
}

func (f *KlaviyoForwarder) precheck(id model.Identity) error {
	if !f.settings.SendAnonymous && id.UserID == "" {
		return &model.ValidationError{Reason: "anonymous messages are not allowed"}
	}
	if f.settings.EnforceEmail && id.Email == "" {
		return &model.ValidationError{Reason: "email is required when email is enforced"}
	}
	return nil
}

// exclusionKey scopes the lock to one account and one person.
func (f *KlaviyoForwarder) exclusionKey(id model.Identity) string {
	who := id.CustomerID()
	if f.settings.EnforceEmail || who == "" {
		who = id.Email
	}
	return f.settings.PrivateKey + ":" + who
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
