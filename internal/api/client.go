// Package api provides an HTTP client for the school management REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusdesk/campus/internal/hostutil"
	"github.com/campusdesk/campus/internal/observability"
	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/resilience"
	"github.com/campusdesk/campus/internal/resource"
	"github.com/campusdesk/campus/internal/version"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
	maxJitter         = 100 * time.Millisecond
	maxPages          = 1000
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration

	// MaxRetries is the number of retries for transient failures on
	// idempotent requests. Default: 3
	MaxRetries int
	BaseDelay  time.Duration

	Tokens   TokenSource
	Breaker  *resilience.Breaker
	Cache    *Cache
	Observer observability.RequestObserver
	Logger   *slog.Logger

	HTTPClient *http.Client
}

// Client is an HTTP client for the school API. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	opts       Options
	logger     *slog.Logger
	observer   observability.RequestObserver
}

// Response wraps an API response.
type Response struct {
	Data       json.RawMessage
	StatusCode int
	Headers    http.Header
	RequestID  string
	FromCache  bool
}

// UnmarshalData unmarshals the response data into v.
func (r *Response) UnmarshalData(v any) error {
	return json.Unmarshal(r.Data, v)
}

// NewClient creates a new API client.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, output.ErrUsageHint(
			fmt.Sprintf("Invalid base URL %q", opts.BaseURL),
			"Set base_url in ~/.config/campus/config.json or pass --base-url",
		)
	}

	if opts.Tokens != nil {
		if err := hostutil.RequireSecure(base.String()); err != nil {
			return nil, output.ErrUsageHint(err.Error(), "Use an https:// base URL")
		}
	}

	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	var observer observability.RequestObserver = observability.Nop{}
	if opts.Observer != nil {
		observer = opts.Observer
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		opts:       opts,
		logger:     logger,
		observer:   observer,
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query QueryEncoder) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, nil, body)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, nil, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// GetAll follows "next" links of a results envelope and returns every item.
func (c *Client) GetAll(ctx context.Context, path string, query QueryEncoder) ([]json.RawMessage, error) {
	var all []json.RawMessage
	target := path
	for page := 1; ; page++ {
		if page > maxPages {
			c.logger.Warn("pagination capped; results may be incomplete", "pages", maxPages, "path", path)
			return all, nil
		}
		resp, err := c.Do(ctx, http.MethodGet, target, query, nil)
		if err != nil {
			return nil, err
		}
		items, meta, err := resource.Unwrap[[]json.RawMessage](resp.Data)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if meta == nil || meta.Next == "" {
			return all, nil
		}
		// next links carry their own query string
		target, query = meta.Next, nil
	}
}

// Do sends a request, retrying transient failures on idempotent methods.
func (c *Client) Do(ctx context.Context, method, path string, query QueryEncoder, body any) (*Response, error) {
	target, err := c.buildURL(path, query)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, output.ErrUsage(fmt.Sprintf("failed to encode request body: %v", err))
		}
	}

	requestID := uuid.NewString()
	attempts := 1
	if idempotent(method) {
		attempts += c.opts.MaxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.allow(); err != nil {
			return nil, err
		}

		info := observability.RequestInfo{Method: method, URL: target, Attempt: attempt, RequestID: requestID}
		resp, err := c.singleRequest(ctx, info, payload)
		c.record(err)
		if err == nil {
			return resp, nil
		}

		var apiErr *output.Error
		if !errors.As(err, &apiErr) || !apiErr.Retryable || attempt == attempts {
			return nil, err
		}
		lastErr = err

		delay := c.backoffDelay(attempt)
		c.observer.OnRetry(ctx, info, attempt+1, err)
		c.logger.Debug("retrying request", "method", method, "url", target, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// allow consults the client-wide breaker.
func (c *Client) allow() error {
	if c.opts.Breaker == nil {
		return nil
	}
	allowed, _ := c.opts.Breaker.Allow()
	if allowed {
		return nil
	}
	return output.ErrUnavailable()
}

// record feeds the breaker. Only transport failures and 5xx responses
// count against the backend.
func (c *Client) record(err error) {
	if c.opts.Breaker == nil {
		return
	}
	if err == nil || !backendFault(err) {
		_ = c.opts.Breaker.RecordSuccess()
		return
	}
	if opened, _ := c.opts.Breaker.RecordFailure(); opened {
		c.logger.Warn("school API circuit opened", "error", err)
	}
}

func backendFault(err error) bool {
	var e *output.Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case output.CodeNetwork, output.CodeTimeout:
		return true
	case output.CodeAPI:
		return e.HTTPStatus >= 500
	}
	return false
}

func (c *Client) singleRequest(ctx context.Context, info observability.RequestInfo, payload []byte) (*Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, info.Method, info.URL, bodyReader)
	if err != nil {
		return nil, output.ErrUsage(fmt.Sprintf("invalid request: %v", err))
	}

	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", info.RequestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var token string
	if c.opts.Tokens != nil {
		token, err = c.opts.Tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	var cacheKey string
	if info.Method == http.MethodGet && c.opts.Cache != nil {
		cacheKey = c.opts.Cache.Key(info.URL, c.baseURL.Host, token)
		if etag := c.opts.Cache.GetETag(cacheKey); etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
	}

	c.observer.OnRequestStart(ctx, info)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		fault := transportError(ctx, err)
		c.observer.OnRequestEnd(ctx, info, observability.RequestResult{Duration: time.Since(start), Error: fault})
		return nil, fault
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	result := observability.RequestResult{StatusCode: resp.StatusCode, Duration: time.Since(start)}
	if readErr != nil {
		result.Error = transportError(ctx, readErr)
		c.observer.OnRequestEnd(ctx, info, result)
		return nil, result.Error
	}

	out, apiErr := c.interpret(info, resp, respBody, cacheKey)
	if apiErr != nil {
		result.Error = apiErr
		result.Retryable = apiErr.Retryable
		c.observer.OnRequestEnd(ctx, info, result)
		return nil, apiErr
	}
	c.observer.OnRequestEnd(ctx, info, result)
	return out, nil
}

func (c *Client) interpret(info observability.RequestInfo, resp *http.Response, body []byte, cacheKey string) (*Response, *output.Error) {
	status := resp.StatusCode
	switch {
	case status == http.StatusNotModified:
		if cacheKey != "" {
			if cached := c.opts.Cache.GetBody(cacheKey); cached != nil {
				return &Response{Data: cached, StatusCode: http.StatusOK, Headers: resp.Header, RequestID: info.RequestID, FromCache: true}, nil
			}
		}
		return nil, output.ErrAPI(status, "304 received but no cached response available")

	case status >= 200 && status < 300:
		if cacheKey != "" {
			if etag := resp.Header.Get("ETag"); etag != "" {
				_ = c.opts.Cache.Set(cacheKey, body, etag)
			}
		}
		return &Response{Data: body, StatusCode: status, Headers: resp.Header, RequestID: info.RequestID}, nil
	}

	return nil, statusError(status, resp.Header, body, resp.Request.URL.Path)
}

// statusError maps an error status to an *output.Error carrying the body.
func statusError(status int, header http.Header, body []byte, path string) *output.Error {
	var e *output.Error
	switch status {
	case http.StatusBadRequest:
		if msg, ok := resource.ValidationMessage(body); ok {
			return output.ErrValidation(msg, body)
		}
		e = output.ErrAPI(status, resource.ServerMessage(body))
	case http.StatusUnauthorized:
		e = output.ErrAuth("Authentication failed")
	case http.StatusForbidden:
		e = output.ErrForbidden("Access denied")
	case http.StatusNotFound:
		e = output.ErrNotFound("Resource", path)
	case http.StatusTooManyRequests:
		e = output.ErrAPI(status, "Rate limited")
		e.Retryable = true
		if secs := parseRetryAfter(header.Get("Retry-After")); secs > 0 {
			e.Hint = fmt.Sprintf("Retry after %ds", secs)
		}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		e = output.ErrAPI(status, fmt.Sprintf("Gateway error (%d)", status))
		e.Retryable = true
	default:
		e = output.ErrAPI(status, resource.ServerMessage(body))
	}
	e.HTTPStatus = status
	e.Body = body
	return e
}

// transportError classifies a failure that produced no response.
func transportError(ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}
	fault := resource.Classify(err)
	if fault.Code == output.CodeNetwork || fault.Code == output.CodeTimeout {
		return fault
	}
	return output.ErrNetwork(err)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

// buildURL joins path onto the base URL. Absolute URLs are accepted only
// for the configured origin, so pagination links cannot leak the token.
func (c *Client) buildURL(path string, query QueryEncoder) (string, error) {
	var u *url.URL
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		parsed, err := url.Parse(path)
		if err != nil {
			return "", output.ErrUsage(fmt.Sprintf("invalid URL %q", path))
		}
		if parsed.Scheme != c.baseURL.Scheme || parsed.Host != c.baseURL.Host {
			return "", output.ErrUsage(fmt.Sprintf("refusing to follow %s outside %s", parsed.Host, c.baseURL.Host))
		}
		u = parsed
	} else {
		rel, err := url.Parse(strings.TrimPrefix(path, "/"))
		if err != nil {
			return "", output.ErrUsage(fmt.Sprintf("invalid path %q", path))
		}
		base := *c.baseURL
		base.Path = strings.TrimSuffix(base.Path, "/") + "/"
		u = base.ResolveReference(rel)
	}

	if query != nil {
		values := u.Query()
		for k, vs := range query.Values() {
			for _, v := range vs {
				values.Add(k, v)
			}
		}
		u.RawQuery = values.Encode()
	}
	return u.String(), nil
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	// Exponential backoff: base * 2^(attempt-1)
	delay := c.opts.BaseDelay * time.Duration(1<<(attempt-1))

	// Add jitter (0-100ms)
	jitter := time.Duration(rand.Int63n(int64(maxJitter))) //nolint:gosec // G404: Jitter doesn't need crypto rand
	return delay + jitter
}

// parseRetryAfter parses a Retry-After header given in seconds.
func parseRetryAfter(header string) int {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return seconds
	}
	return 0
}
