// Package client talks to the price-monitor HTTP API on behalf of pmon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
)

const requestIDHeader = "X-Request-ID"

// Client calls the price-monitor API rooted at a base URL.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient. The default has no timeout
// because a manual check blocks until the poll cycle finishes.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a Client for baseURL. A trailing slash is ignored.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "pmon",
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a 4xx or 5xx response. Detail is the problem detail when the
// server sent an RFC 9457 body and the trimmed body otherwise.
type APIError struct {
	StatusCode int
	Detail     string
	RequestID  string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Detail)
	if e.RequestID != "" {
		msg += " [request " + e.RequestID + "]"
	}
	return msg
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	return c.do(ctx, http.MethodGet, path, nil, dst)
}

func (c *Client) post(ctx context.Context, path string, body, dst any) error {
	return c.do(ctx, http.MethodPost, path, body, dst)
}

func (c *Client) put(ctx context.Context, path string, body, dst any) error {
	return c.do(ctx, http.MethodPut, path, body, dst)
}

func (c *Client) del(ctx context.Context, path string, dst any) error {
	return c.do(ctx, http.MethodDelete, path, nil, dst)
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("API server not running at %s", c.baseURL)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	return decode(resp, dst)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// decode turns an error status into *APIError and otherwise unmarshals the
// body into dst. An empty body leaves dst untouched.
func decode(resp *http.Response, dst any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{
			StatusCode: resp.StatusCode,
			Detail:     problemDetail(data),
			RequestID:  resp.Header.Get(requestIDHeader),
		}
	}

	if dst == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func problemDetail(body []byte) string {
	var p struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &p) == nil && p.Detail != "" {
		return p.Detail
	}
	return strings.TrimSpace(string(body))
}
