// Package router provides the HTTP client for the external routing
// backend that prices swaps.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"sui-swap-engine/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// Client talks to the routing backend over HTTP.
type Client struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new routing backend client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Route is the backend's answer for one asset pair and input amount.
type Route struct {
	AmountOut *big.Int
	Raw       json.RawMessage // opaque route metadata, passed through to drafts
}

// routeResponse is the raw backend payload for GET /route.
type routeResponse struct {
	Data *routeData `json:"data"`
}

type routeData struct {
	AmountOut string          `json:"amount_out"`
	Routes    json.RawMessage `json:"routes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetRoute asks the backend for the best route pricing amountIn of from
// into to. Transport failures, 5xx and 429 are retried with exponential
// backoff; 4xx and malformed bodies are not, surfacing as
// ErrQuoteUnavailable.
func (c *Client) GetRoute(ctx context.Context, from, to domain.Asset, amountIn *big.Int) (*Route, error) {
	q := url.Values{}
	q.Set("from", from.String())
	q.Set("to", to.String())
	q.Set("amount", domain.AmountString(amountIn))
	endpoint := c.baseURL + "/route?" + q.Encode()

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, ctx.Err())
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", domain.ErrNetwork, err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: rate limited (429)", domain.ErrNetwork)
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: backend status %d", domain.ErrNetwork, resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			// Client-side errors are not retried
			var errResp errorResponse
			if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
				return nil, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, errResp.Error)
			}
			return nil, fmt.Errorf("%w: backend status %d", domain.ErrQuoteUnavailable, resp.StatusCode)
		}

		return parseRoute(body)
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// parseRoute validates and decodes a 200 response body.
func parseRoute(body []byte) (*Route, error) {
	var resp routeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", domain.ErrQuoteUnavailable, err)
	}
	if resp.Data == nil || resp.Data.AmountOut == "" {
		return nil, fmt.Errorf("%w: no route in response", domain.ErrQuoteUnavailable)
	}

	amountOut, err := domain.ParseAmount(resp.Data.AmountOut)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed amount_out %q", domain.ErrQuoteUnavailable, resp.Data.AmountOut)
	}

	return &Route{
		AmountOut: amountOut,
		Raw:       resp.Data.Routes,
	}, nil
}
