// Package evolution is a typed client for the Evolution API message endpoints.
package evolution

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 1 << 20

	apiKeyHeader = "apikey"
)

// HTTPDoer is the subset of *http.Client the client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config addresses one Evolution API instance.
type Config struct {
	BaseURL  string
	Instance string
	APIKey   string
	// Timeout applies per attempt. Ignored when WithHTTPClient is used.
	Timeout            time.Duration
	InsecureSkipVerify bool
	// Headers are added to every request.
	Headers map[string]string
	// Retry defaults to DefaultRetryPolicy when nil.
	Retry *RetryPolicy
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP transport, typically with a fake in tests.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithLogger sets the logger used for attempt and retry logs.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBackoffTimer sets the factory for the timer that waits between
// attempts. Tests use it to skip real sleeps.
func WithBackoffTimer(newTimer func() backoff.Timer) Option {
	return func(c *Client) {
		c.newTimer = newTimer
	}
}

// WithMaxResponseBytes bounds how much of a response body is read.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// Client sends typed messages to one instance. It is safe for concurrent use.
type Client struct {
	baseURL      string
	instance     string
	apiKey       string
	headers      map[string]string
	retry        RetryPolicy
	http         HTTPDoer
	logger       *zap.Logger
	newTimer     func() backoff.Timer
	maxBodyBytes int64
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("evolution: base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("evolution: invalid base URL %q", cfg.BaseURL)
	}
	if strings.TrimSpace(cfg.Instance) == "" {
		return nil, errors.New("evolution: instance is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("evolution: api key is required")
	}

	retry := DefaultRetryPolicy()
	if cfg.Retry != nil {
		retry = cfg.Retry.withDefaults()
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		if strings.TrimSpace(k) != "" {
			headers[strings.TrimSpace(k)] = v
		}
	}

	c := &Client{
		baseURL:      base,
		instance:     strings.TrimSpace(cfg.Instance),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		headers:      headers,
		retry:        retry,
		logger:       zap.NewNop(),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.http == nil {
		c.http = newHTTPClient(cfg)
	}

	return c, nil
}

func newHTTPClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-hosted instances
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Instance returns the instance name the client addresses.
func (c *Client) Instance() string {
	return c.instance
}

// RetryPolicy returns the effective retry policy.
func (c *Client) RetryPolicy() RetryPolicy {
	return c.retry
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path + "/" + url.PathEscape(c.instance)
}

// Send validates msg, posts it to the variant's endpoint and retries
// transient failures according to the retry policy.
func (c *Client) Send(ctx context.Context, msg Message) (*Response, error) {
	if msg == nil {
		return nil, &ValidationError{Kind: "unknown", Field: "message", Reason: "is required"}
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(msg.payload())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msg.Kind(), err)
	}

	return c.post(ctx, msg.path(), body,
		zap.String("kind", string(msg.Kind())),
		zap.String("recipient", msg.Recipient()),
	)
}

func (c *Client) post(ctx context.Context, path string, body []byte, fields ...zap.Field) (*Response, error) {
	logger := c.logger.With(append(fields, zap.String("path", path))...)
	endpoint := c.endpoint(path)

	var (
		attempts int
		resp     *Response
	)
	operation := func() error {
		attempts++
		logger.Debug("Posting to Evolution API", zap.Int("attempt", attempts))

		r, err := c.do(ctx, endpoint, path, body)
		if err == nil {
			resp = r
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		if errors.Is(err, ErrTransient) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("Transient Evolution API failure, retrying",
			zap.Int("attempt", attempts),
			zap.Duration("retry_in", next),
			zap.Error(err),
		)
	}

	var timer backoff.Timer
	if c.newTimer != nil {
		timer = c.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(operation, backoff.WithContext(c.retry.backOff(), ctx), notify, timer)
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, ErrTransient):
		logger.Error("Evolution API retries exhausted", zap.Int("attempts", attempts), zap.Error(err))
		return nil, &RetryError{Attempts: attempts, Last: err}
	default:
		return nil, err
	}
}

func (c *Client) do(ctx context.Context, endpoint, path string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Path: path, Err: err}
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			c.logger.Debug("Failed to close response body", zap.Error(err))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(res.Body, c.maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Path: path, Err: fmt.Errorf("read response body: %w", err)}
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &APIError{StatusCode: res.StatusCode, Path: path, Body: data}
	}

	return newResponse(res.StatusCode, data), nil
}

// Result pairs a message with the outcome of sending it.
type Result struct {
	Message  Message
	Response *Response
	Err      error
}

// SendAsync sends msg on its own goroutine. The channel yields exactly one
// Result and is then closed.
func (c *Client) SendAsync(ctx context.Context, msg Message) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		resp, err := c.Send(ctx, msg)
		out <- Result{Message: msg, Response: resp, Err: err}
	}()
	return out
}

// SendBatch sends msgs with at most limit requests in flight (unbounded
// when limit <= 0). Results are returned in input order; one failure does
// not stop the others.
func (c *Client) SendBatch(ctx context.Context, msgs []Message, limit int) []Result {
	results := make([]Result, len(msgs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, msg := range msgs {
		g.Go(func() error {
			resp, err := c.Send(ctx, msg)
			results[i] = Result{Message: msg, Response: resp, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
