// Package remote reads resources from the back office API. Every successful
// response wraps its payload as {"data": ...}.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"concesionario/internal/apperr"
	"concesionario/internal/loader"
	applog "concesionario/internal/log"
)

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 10 << 20

// Client performs GET requests against a fixed origin.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for origin. timeout bounds each request; zero
// means no client-side limit beyond the caller's context.
func NewClient(origin string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(origin), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid origin %q: expected http(s)://host", origin)
	}

	c := &Client{
		baseURL: u,
		http:    newHTTPClientWithPooling(timeout),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(applog.FieldComponent, applog.ComponentRemote)
	return c, nil
}

// Origin returns the base URL requests are resolved against.
func (c *Client) Origin() string {
	return c.baseURL.String()
}

// newHTTPClientWithPooling keeps a small pool of idle connections to the
// origin since dashboards fetch several resources at once.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("get %s: unexpected status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("get %s: unexpected status %d: %s", e.Path, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return apperr.ErrResponse
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// GetEnvelope fetches path and decodes the "data" member of the response into
// T. Failures wrap apperr.ErrTransport, apperr.ErrResponse or apperr.ErrParse.
func GetEnvelope[T any](ctx context.Context, c *Client, path string) (T, error) {
	var zero T

	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return zero, fmt.Errorf("%w: build request for %s: %w", apperr.ErrTransport, path, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%w: get %s: %w", apperr.ErrTransport, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return zero, fmt.Errorf("%w: read %s: %w", apperr.ErrTransport, path, err)
	}

	c.logger.DebugContext(ctx, "Remote response",
		applog.FieldPath, path,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return zero, &StatusError{Path: path, StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, fmt.Errorf("%w: decode %s: %w", apperr.ErrParse, path, err)
	}
	if len(env.Data) == 0 || bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return zero, fmt.Errorf("%w: %s: missing data field", apperr.ErrParse, path)
	}

	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return zero, fmt.Errorf("%w: decode %s data: %w", apperr.ErrParse, path, err)
	}
	return out, nil
}

// Resource adapts an endpoint to a loader source.
func Resource[T any](c *Client, path string) loader.Source[T] {
	return loader.SourceFunc[T](func(ctx context.Context) (T, error) {
		return GetEnvelope[T](ctx, c, path)
	})
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

const maxSnippetBytes = 200

// snippet keeps at most maxSnippetBytes of body, cut on a rune boundary.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= maxSnippetBytes {
		return s
	}
	end := maxSnippetBytes
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}
