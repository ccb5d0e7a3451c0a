package klaviyo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/sony/gobreaker"
	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
)

const (
	DefaultEndpoint      = "https://a.klaviyo.com/api"
	DefaultMaxTries      = 2
	DefaultRetryInterval = 500 * time.Millisecond

	// Klaviyo answers with "1"/"0" or a short JSON document.
	maxBodySize = 64 << 10
)

// Client is the transport collaborator: it owns timeouts, retries and
// the circuit breaker. It never judges a response body.
type Client struct {
	endpoint      string
	http          *http.Client
	breaker       *gobreaker.CircuitBreaker
	maxTries      uint
	retryInterval time.Duration
	logger        *slog.Logger
}

// New returns a client with pooled connections and a 2-try retry budget.
func New(opts ...Option) *Client {
	c := &Client{
		endpoint:      DefaultEndpoint,
		http:          cleanhttp.DefaultPooledClient(),
		maxTries:      DefaultMaxTries,
		retryInterval: DefaultRetryInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.breaker == nil {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "klaviyo",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("KLAVIYO_BREAKER_STATE_CHANGED",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}

	return c
}

// Identify issues GET /identify?data=<base64(JSON)>.
func (c *Client) Identify(ctx context.Context, p *model.PersonPayload) (*model.RawResponse, error) {
	return c.getEncoded(ctx, model.EndpointIdentify, "/identify", p)
}

// Track issues GET /track?data=<base64(JSON)>.
func (c *Client) Track(ctx context.Context, p *model.EventPayload) (*model.RawResponse, error) {
	return c.getEncoded(ctx, model.EndpointTrack, "/track", p)
}

// Subscribe issues POST /list/{listId}/members with a form body.
func (c *Client) Subscribe(ctx context.Context, p *model.ListMembershipPayload) (*model.RawResponse, error) {
	props, err := json.Marshal(p.Properties)
	if err != nil {
		return nil, fmt.Errorf("klaviyo: marshal list properties: %w", err)
	}

	form := url.Values{}
	form.Set("email", p.Email)
	form.Set("api_key", p.APIKey)
	form.Set("confirm_optin", strconv.FormatBool(p.ConfirmOptin))
	form.Set("properties", string(props))
	body := form.Encode()

	target := c.endpoint + "/list/" + url.PathEscape(p.ListID) + "/members"

	return c.do(ctx, model.EndpointListMembers, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

// Encode renders a payload the way the query-string endpoints expect it.
func Encode(payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (c *Client) getEncoded(ctx context.Context, ep model.Endpoint, path string, payload any) (*model.RawResponse, error) {
	data, err := Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("klaviyo: encode %s payload: %w", ep, err)
	}

	target := c.endpoint + path + "?" + url.Values{"data": {data}}.Encode()

	return c.do(ctx, ep, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	})
}

// do runs one logical call through the breaker with bounded retries.
// Network errors and 5xx are retried; 4xx is returned to the caller as is.
func (c *Client) do(ctx context.Context, ep model.Endpoint, build func() (*http.Request, error)) (*model.RawResponse, error) {
	attempt := func() (*model.RawResponse, error) {
		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.send(ep, build)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, backoff.Permanent(&model.TransportError{Endpoint: ep, Err: err})
			}
			return nil, err
		}
		return res.(*model.RawResponse), nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval

	res, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("KLAVIYO_CALL_RETRY",
				"endpoint", ep.String(),
				"err", err,
				"next_in_ms", next.Milliseconds(),
			)
		}),
	)
	if err != nil {
		var te *model.TransportError
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, &model.TransportError{Endpoint: ep, Err: err}
	}

	return res, nil
}

func (c *Client) send(ep model.Endpoint, build func() (*http.Request, error)) (*model.RawResponse, error) {
	req, err := build()
	if err != nil {
		return nil, backoff.Permanent(&model.TransportError{Endpoint: ep, Err: err})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &model.TransportError{Endpoint: ep, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &model.TransportError{Endpoint: ep, Err: err}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &model.TransportError{Endpoint: ep, StatusCode: resp.StatusCode}
	}

	return &model.RawResponse{
		Endpoint:   ep,
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}
