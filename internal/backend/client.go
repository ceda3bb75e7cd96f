package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrNetwork means the backend was unreachable; the operation was
	// aborted and prior state retained. Retry is user-driven.
	ErrNetwork = errors.New("backend unreachable")
	// ErrInvalidCredentials is the normalized 401 of the auth endpoints.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthorized means the backend rejected the current token.
	ErrUnauthorized = errors.New("authentication rejected")
	ErrNotFound     = errors.New("resource not found")
)

// APIError carries the message field of a failure envelope.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error (%d): %s", e.Status, e.Message)
}

// envelope is the backend's uniform response shape. It is normalized
// into typed results immediately on receipt; no raw envelope escapes
// this package.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// TokenSource supplies the current bearer token, empty when anonymous.
type TokenSource func() string

// Client is the REST backend collaborator. It is safe for concurrent
// use.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokenSource    TokenSource
	onUnauthorized func(context.Context)
}

type Option func(*Client)

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource wires the session token into outgoing requests.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokenSource = ts }
}

// WithOnUnauthorized registers the hook invoked when the backend
// signals the token is no longer valid.
func WithOnUnauthorized(fn func(context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokenSource: func() string { return "" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request options for the low-level send.
type sendOpts struct {
	// skipUnauthorizedHook suppresses the 401 hook: a rejected login
	// is a failed attempt, not an invalidated session.
	skipUnauthorizedHook bool
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out any, opts sendOpts) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokenSource(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var env envelope
	if len(raw) > 0 {
		// A malformed envelope from a duck-typed backend is normalized
		// to a failure rather than propagated.
		_ = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if !opts.skipUnauthorizedHook && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return ErrUnauthorized
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 || !env.Success {
		message := env.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
