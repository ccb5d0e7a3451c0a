package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
	"github.com/webitel/klaviyo-delivery-service/internal/service"
)

type fakeForwarder struct {
	forward func(model.Message) ([]model.Outcome, error)
	traceID string
}

func (f *fakeForwarder) Forward(ctx context.Context, msg model.Message) ([]model.Outcome, error) {
	f.traceID = service.TraceID(ctx)
	return f.forward(msg)
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

func newServer(t *testing.T, fn func(model.Message) ([]model.Outcome, error)) *httptest.Server {
	t.Helper()
	srv, _ := newServerWith(t, fn)
	return srv
}

func newServerWith(t *testing.T, fn func(model.Message) ([]model.Outcome, error)) (*httptest.Server, *fakeForwarder) {
	t.Helper()
	fwd := &fakeForwarder{forward: fn}
	h := NewDeliveryHandler(slog.New(slog.DiscardHandler), fwd)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, fwd
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	res, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func TestTrack_OK(t *testing.T) {
	var got model.Message
	srv := newServer(t, func(m model.Message) ([]model.Outcome, error) {
		got = m
		return []model.Outcome{{Endpoint: model.EndpointTrack, Event: "Login", Success: true}}, nil
	})

	res := post(t, srv, "/v1/track", `{"userId":"u1","event":"Login"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get(requestIDHeader))

	var body struct {
		Kind     string `json:"kind"`
		Outcomes []struct {
			Endpoint string `json:"endpoint"`
			Event    string `json:"event"`
			Success  bool   `json:"success"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "track", body.Kind)
	require.Len(t, body.Outcomes, 1)
	assert.Equal(t, "track", body.Outcomes[0].Endpoint)
	assert.True(t, body.Outcomes[0].Success)

	require.IsType(t, &model.Track{}, got)
}

func TestOrderCompletedRoutesThroughTrack(t *testing.T) {
	var got model.Message
	srv := newServer(t, func(m model.Message) ([]model.Outcome, error) {
		got = m
		return nil, nil
	})

	res := post(t, srv, "/v1/track", `{"userId":"u1","event":"Completed Order","properties":{"orderId":"O1","products":[{"id":"A1"}]}}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.IsType(t, &model.OrderCompleted{}, got)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &model.ValidationError{Reason: "no email"}, http.StatusBadRequest},
		{"configuration", &model.ConfigurationError{Field: "apiKey"}, http.StatusInternalServerError},
		{"transport", &model.TransportError{Endpoint: model.EndpointIdentify, StatusCode: 503}, http.StatusBadGateway},
		{"domain", &model.DomainError{Endpoint: model.EndpointIdentify, Body: "0"}, http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, func(model.Message) ([]model.Outcome, error) { return nil, tc.err })
			res := post(t, srv, "/v1/identify", `{"userId":"u1"}`)
			assert.Equal(t, tc.status, res.StatusCode)
		})
	}
}

func TestRejectsBadInput(t *testing.T) {
	srv := newServer(t, func(model.Message) ([]model.Outcome, error) {
		t.Error("forwarder must not be called")
		return nil, nil
	})

	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/v1/identify", `{nope`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/v1/identify", `{"type":"track","event":"x"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/v1/track", `{"type":"page"}`).StatusCode)
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, nil)
	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestRequestIDReachesForwarder(t *testing.T) {
	srv, fwd := newServerWith(t, func(model.Message) ([]model.Outcome, error) { return nil, nil })

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/track", strings.NewReader(`{"userId":"u1","event":"Login"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, "req-7")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "req-7", res.Header.Get(requestIDHeader))
	assert.Equal(t, "req-7", fwd.traceID)
}
