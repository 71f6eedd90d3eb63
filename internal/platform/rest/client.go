// Package rest is the signed JSON-over-HTTP transport shared by the live
// venue adapters.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/crypto"
	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Options configures a Client.
type Options struct {
	Venue   string
	BaseURL string
	Auth    *crypto.HMACAuth
	// Limiter, when set, is consulted before every request with
	// RateLimit requests per second.
	Limiter   domain.RateLimiter
	RateLimit int
	Timeout   time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client sends signed requests and maps HTTP failures to domain sentinels.
type Client struct {
	venue      string
	baseURL    string
	auth       *crypto.HMACAuth
	limiter    domain.RateLimiter
	rateLimit  int
	httpClient *http.Client
}

// New creates a Client.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		venue:      opts.Venue,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		auth:       opts.Auth,
		limiter:    opts.Limiter,
		rateLimit:  opts.RateLimit,
		httpClient: hc,
	}
}

// Venue returns the venue name requests are attributed to.
func (c *Client) Venue() string { return c.venue }

// Do builds, signs, sends, and reads a request. query may be nil. reqBody,
// when non-nil, is sent as JSON. A non-2xx status is returned as an error
// wrapping the matching domain sentinel.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, reqBody any) ([]byte, error) {
	if c.limiter != nil && c.rateLimit > 0 {
		if err := c.limiter.Wait(ctx, "venue:"+c.venue, c.rateLimit, time.Second); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var bodyBytes []byte
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyBytes = b
	}

	signPath := path
	if len(query) > 0 {
		signPath += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+signPath, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.auth != nil {
		for k, v := range c.auth.Sign(method, signPath, string(bodyBytes)) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// errorResponse covers the error envelopes both venues use.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    any    `json:"code"`
}

func (e errorResponse) text(body []byte) string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Error != "":
		return e.Error
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// checkStatus maps non-2xx HTTP status codes to domain errors.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.text(body)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrInvalidOrder, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, msg)
	}
}
