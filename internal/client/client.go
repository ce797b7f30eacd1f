// ABOUTME: HTTP client for the review-insight backend API
// ABOUTME: Attaches the session token and invalidates the session on 401

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds every request unless WithTimeout or WithHTTPClient overrides it
	DefaultTimeout = 30 * time.Second

	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerUserAgent     = "User-Agent"
	headerRequestID     = "X-Request-ID"
	contentTypeJSON     = "application/json"
	defaultUserAgent    = "review-insight-cli/1.0"
)

// TokenSource supplies the bearer token and clears the session when the
// backend rejects it
type TokenSource interface {
	Token(ctx context.Context) string
	Invalidate(ctx context.Context) error
}

// Notifier receives user-visible messages raised by the client
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

// Client is the API client for the review-insight backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	notifier   Notifier
	logger     *slog.Logger
	userAgent  string
}

// Option configures the client
type Option func(*Client)

// WithTokenSource sets where bearer tokens come from
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithNotifier sets the receiver of user-visible messages
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = d
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a new API client with the given base URL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    slog.Default(),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return c
}

// BaseURL returns the backend URL the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends one request. body is JSON-encoded when non-nil; result is decoded
// from a 2xx response when non-nil. Transport and non-2xx failures are *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set(headerUserAgent, c.userAgent)
	req.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	var token string
	if c.tokens != nil {
		token = c.tokens.Token(ctx)
	}
	if token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.handleRequestError(ctx, err, requestID)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.handleRequestError(ctx, err, requestID)
	}

	c.logger.Debug("API request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseError(resp.StatusCode, respBody, requestID)
		if apiErr.Kind == KindUnauthorized {
			c.handleUnauthorized(ctx, token != "")
		}
		return apiErr
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("invalid response from backend: %w", err)
		}
	}
	return nil
}

// handleUnauthorized clears the session. It does not navigate; the guard
// redirects on the next evaluation.
func (c *Client) handleUnauthorized(ctx context.Context, hadToken bool) {
	if c.tokens != nil {
		if err := c.tokens.Invalidate(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn("Failed to clear session after 401", "error", err)
		}
	}
	if hadToken && c.notifier != nil {
		c.notifier.Notify(KindUnauthorized.Message())
	}
}

// handleRequestError converts transport and context errors to an APIError
func (c *Client) handleRequestError(ctx context.Context, err error, requestID string) error {
	apiErr := &APIError{Kind: KindNetwork, RequestID: requestID, Err: err}
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		apiErr.Kind = KindCanceled
		apiErr.Message = "request canceled"
	case errors.Is(ctx.Err(), context.DeadlineExceeded), isTimeout(err):
		apiErr.Kind = KindTimeout
		apiErr.Message = "request timed out"
	default:
		apiErr.Message = fmt.Sprintf("cannot connect to backend at %s", c.baseURL)
	}
	return apiErr
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	if body == nil {
		body = struct{}{}
	}
	return c.do(ctx, http.MethodPost, path, nil, body, result)
}

func (c *Client) put(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, result)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// pathID joins a base path and an escaped id
func pathID(base, id string) string {
	return base + "/" + url.PathEscape(id)
}
