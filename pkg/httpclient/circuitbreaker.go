package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront-search/pkg/breaker"
)

// FallbackFunc answers in place of a downstream call rejected by an open breaker.
type FallbackFunc func(ctx context.Context, err error) (*http.Response, error)

// ErrCircuitOpen is returned when the breaker rejects the request.
var ErrCircuitOpen = breaker.ErrOpen

// CircuitBreakerClient guards a Client with a circuit breaker. 5xx answers
// count as failures.
type CircuitBreakerClient struct {
	client   *Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	logger   *slog.Logger
	fallback FallbackFunc
	name     string
	service  string
}

// NewCircuitBreakerClient wraps client for calls to the named downstream service.
func NewCircuitBreakerClient(client *Client, cfg breaker.Config, service string, logger *slog.Logger) *CircuitBreakerClient {
	return &CircuitBreakerClient{
		client:  client,
		breaker: breaker.New[*http.Response](cfg, logger, nil),
		logger:  logger,
		name:    cfg.Name,
		service: service,
	}
}

// WithFallback returns a copy that calls fn instead of failing while open.
func (c *CircuitBreakerClient) WithFallback(fn FallbackFunc) *CircuitBreakerClient {
	cpy := *c
	cpy.fallback = fn
	return &cpy
}

func (c *CircuitBreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, ParseResponseError(resp, c.service)
		}
		return resp, nil
	})
	if err != nil && c.fallback != nil && errors.Is(err, ErrCircuitOpen) {
		breaker.FallbackTotal.WithLabelValues(c.name).Inc()
		c.logger.WarnContext(ctx, "circuit breaker open, invoking fallback", slog.String("breaker", c.name))
		return c.fallback(ctx, err)
	}
	return resp, err
}

func (c *CircuitBreakerClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create GET request: %w", err)
	}
	return c.Do(ctx, req)
}

// GetJSON performs a GET and decodes a 2xx body into dst. Other statuses
// are translated by ParseResponseError.
func (c *CircuitBreakerClient) GetJSON(ctx context.Context, url string, dst any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ParseResponseError(resp, c.service)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", c.service, err)
	}
	return nil
}

func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
