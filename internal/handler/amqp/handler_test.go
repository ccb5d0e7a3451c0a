package amqp

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/klaviyo-delivery-service/config"
	"github.com/webitel/klaviyo-delivery-service/infra/pubsub"
	pubsubadapter "github.com/webitel/klaviyo-delivery-service/internal/adapter/pubsub"
	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
	"github.com/webitel/klaviyo-delivery-service/internal/service"
)

type fakeForwarder struct {
	calls   atomic.Int32
	forward func(model.Message) ([]model.Outcome, error)
}

func (f *fakeForwarder) Forward(_ context.Context, msg model.Message) ([]model.Outcome, error) {
	f.calls.Add(1)
	if f.forward != nil {
		return f.forward(msg)
	}
	return []model.Outcome{{Endpoint: model.EndpointTrack, Event: "Login", Success: true}}, nil
}

func (f *fakeForwarder) Identify(ctx context.Context, m *model.Identify) ([]model.Outcome, error) {
	return f.Forward(ctx, m)
}

func (f *fakeForwarder) Track(ctx context.Context, m *model.Track) ([]model.Outcome, error) {
	return f.Forward(ctx, m)
}

func (f *fakeForwarder) OrderCompleted(ctx context.Context, m *model.OrderCompleted) ([]model.Outcome, error) {
	return f.Forward(ctx, m)
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type env struct {
	provider  *pubsub.MemoryProvider
	handler   *MessageHandler
	forwarder *fakeForwarder
}

func newEnv(t *testing.T, fwd *fakeForwarder) *env {
	t.Helper()

	provider := pubsub.NewMemoryProvider(watermill.NopLogger{})
	t.Cleanup(func() { _ = provider.Close() })

	pub, err := provider.Publisher("klaviyo")
	require.NoError(t, err)

	h := NewMessageHandler(discard(), fwd, pubsubadapter.NewOutcomeDispatcher(pub))
	h.retry = middleware.Retry{MaxRetries: 1, InitialInterval: time.Millisecond}

	return &env{provider: provider, handler: h, forwarder: fwd}
}

func (e *env) run(t *testing.T) {
	t.Helper()

	router, err := message.NewRouter(message.RouterConfig{}, watermill.NopLogger{})
	require.NoError(t, err)

	cfg := &config.Config{AMQP: config.AMQPConfig{Exchange: "klaviyo"}}
	require.NoError(t, e.handler.RegisterHandlers(router, pubsubadapter.NewSubscriberProvider(e.provider, cfg)))

	go func() { _ = router.Run(context.Background()) }()
	t.Cleanup(func() { _ = router.Close() })

	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
}

func (e *env) listen(t *testing.T, topic string) <-chan *message.Message {
	t.Helper()
	sub, err := e.provider.Subscriber("", "")
	require.NoError(t, err)
	ch, err := sub.Subscribe(context.Background(), topic)
	require.NoError(t, err)
	return ch
}

func (e *env) publish(t *testing.T, topic string, payload string) {
	t.Helper()
	pub, err := e.provider.Publisher("klaviyo")
	require.NoError(t, err)
	require.NoError(t, pub.Publish(topic, message.NewMessage(watermill.NewUUID(), []byte(payload))))
}

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case m := <-ch:
		m.Ack()
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

const trackPayload = `{"type":"track","userId":"user-1","event":"Login","timestamp":"2024-03-01T12:30:00Z"}`

func TestRouter_TrackPublishesOutcome(t *testing.T) {
	e := newEnv(t, &fakeForwarder{})
	delivered := e.listen(t, pubsubadapter.DeliveredTopicPrefix+"track")
	e.run(t)

	e.publish(t, TopicTrack, trackPayload)

	m := receive(t, delivered)
	var rec pubsubadapter.Delivered
	require.NoError(t, json.Unmarshal(m.Payload, &rec))
	assert.Equal(t, "track", rec.Kind)
	require.Len(t, rec.Outcomes, 1)
	assert.Equal(t, "Login", rec.Outcomes[0].Event)
	assert.Equal(t, int32(1), e.forwarder.calls.Load())
}

func TestRouter_TransportFailureEndsInPoisonQueue(t *testing.T) {
	fwd := &fakeForwarder{
		forward: func(model.Message) ([]model.Outcome, error) {
			return nil, &model.TransportError{Endpoint: model.EndpointTrack, StatusCode: 503}
		},
	}
	e := newEnv(t, fwd)
	poisoned := e.listen(t, DeliveryPoisonTopic)
	e.run(t)

	e.publish(t, TopicTrack, trackPayload)

	m := receive(t, poisoned)
	assert.Equal(t, "ON_TRACK", m.Metadata.Get(middleware.PoisonedHandlerKey))
	assert.NotEmpty(t, m.Metadata.Get(middleware.ReasonForPoisonedKey))
	assert.Equal(t, int32(2), fwd.calls.Load(), "first try plus one retry")
}

func TestBind(t *testing.T) {
	newMsg := func(payload string) *message.Message {
		return message.NewMessage(watermill.NewUUID(), []byte(payload))
	}

	t.Run("malformed payload is acked without forwarding", func(t *testing.T) {
		e := newEnv(t, &fakeForwarder{})
		err := Bind(e.handler, e.handler.OnTrackV1)(newMsg(`{not json`))
		assert.NoError(t, err)
		assert.Zero(t, e.forwarder.calls.Load())
	})

	t.Run("message on the wrong topic is rejected", func(t *testing.T) {
		e := newEnv(t, &fakeForwarder{})
		err := Bind(e.handler, e.handler.OnIdentifyV1)(newMsg(trackPayload))
		assert.NoError(t, err)
		assert.Zero(t, e.forwarder.calls.Load())
	})

	t.Run("validation failure is acked", func(t *testing.T) {
		e := newEnv(t, &fakeForwarder{
			forward: func(model.Message) ([]model.Outcome, error) {
				return nil, &model.ValidationError{Reason: "anonymous"}
			},
		})
		err := Bind(e.handler, e.handler.OnTrackV1)(newMsg(trackPayload))
		assert.NoError(t, err)
		assert.Equal(t, int32(1), e.forwarder.calls.Load())
	})

	t.Run("domain failure is nacked", func(t *testing.T) {
		e := newEnv(t, &fakeForwarder{
			forward: func(model.Message) ([]model.Outcome, error) {
				return nil, &model.DomainError{Endpoint: model.EndpointTrack, Body: "0"}
			},
		})
		err := Bind(e.handler, e.handler.OnTrackV1)(newMsg(trackPayload))
		assert.ErrorIs(t, err, model.ErrBadResponse)
	})

	t.Run("type defaults to the topic", func(t *testing.T) {
		var got model.Message
		e := newEnv(t, &fakeForwarder{
			forward: func(m model.Message) ([]model.Outcome, error) {
				got = m
				return nil, nil
			},
		})
		err := Bind(e.handler, e.handler.OnIdentifyV1)(newMsg(`{"userId":"u1","traits":{"email":"a@b.co"}}`))
		require.NoError(t, err)
		require.IsType(t, &model.Identify{}, got)
		assert.Equal(t, "u1", got.GetIdentity().UserID)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		e := newEnv(t, &fakeForwarder{
			forward: func(model.Message) ([]model.Outcome, error) { panic("boom") },
		})
		assert.NotPanics(t, func() {
			_ = Bind(e.handler, e.handler.OnTrackV1)(newMsg(trackPayload))
		})
	})
}

func TestTraceIDMiddleware(t *testing.T) {
	var seen string
	h := TraceIDMiddleware(func(msg *message.Message) ([]*message.Message, error) {
		seen = service.TraceID(msg.Context())
		return nil, nil
	})

	msg := message.NewMessage(watermill.NewUUID(), nil)
	_, err := h(msg)
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, msg.Metadata.Get("trace_id"))

	msg = message.NewMessage(watermill.NewUUID(), nil)
	msg.Metadata.Set("trace_id", "abc")
	_, err = h(msg)
	require.NoError(t, err)
	assert.Equal(t, "abc", seen)
}
