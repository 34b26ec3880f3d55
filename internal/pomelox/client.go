// Package pomelox is a typed client for the PomeloX REST API.
package pomelox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production API.
const DefaultBaseURL = "https://www.vitaglobal.icu"

const (
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
	defaultTimeout  = 15 * time.Second
	maxErrorBody    = 512
)

// Envelope is the common response wrapper. Code 200 means success.
type Envelope struct {
	Code  int             `json:"code"`
	Msg   string          `json:"msg"`
	Data  json.RawMessage `json:"data,omitempty"`
	Rows  json.RawMessage `json:"rows,omitempty"`
	Total int             `json:"total,omitempty"`
	// Token is set by some login responses instead of data.token.
	Token string `json:"token,omitempty"`
}

// Client talks to the PomeloX API. It is safe for concurrent use.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	log      *zap.Logger
	attempts int
	backoff  time.Duration

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRateLimit paces outgoing requests. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithRetry sets the number of attempts and the base backoff. The delay
// before attempt n+1 is backoff*n.
func WithRetry(attempts int, step time.Duration) Option {
	return func(c *Client) {
		c.attempts = max(attempts, 1)
		c.backoff = step
	}
}

// WithToken starts the client with an existing session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New returns a Client for baseURL (DefaultBaseURL when empty).
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		limiter:  rate.NewLimiter(rate.Limit(10), 5),
		log:      zap.NewNop(),
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the session token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// WithSessionToken returns a shallow copy of c that sends token instead of
// c's own. The copy shares the transport and the rate limiter.
func (c *Client) WithSessionToken(token string) *Client {
	cp := &Client{
		baseURL:  c.baseURL,
		http:     c.http,
		limiter:  c.limiter,
		log:      c.log,
		attempts: c.attempts,
		backoff:  c.backoff,
		token:    token,
	}
	return cp
}

type request struct {
	method string
	path   string
	query  url.Values
	form   url.Values
	auth   bool
}

// call sends req and decodes the envelope, mapping non-200 codes to errors.
func (c *Client) call(ctx context.Context, req request) (*Envelope, error) {
	body, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	env := &Envelope{Code: http.StatusOK, Msg: "OK"}
	if len(bytes.TrimSpace(body)) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(body, env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", req.path, err)
	}
	switch env.Code {
	case http.StatusOK:
		return env, nil
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%s: %w", req.path, ErrUnauthorized)
	case http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w", req.path, ErrForbidden)
	}
	return nil, &APIError{Code: env.Code, Msg: env.Msg}
}

// send performs req with pacing and retries and returns the raw body of a
// 2xx response. Transport errors and 502/503/504 are retried; nothing is
// retried once ctx is done.
func (c *Client) send(ctx context.Context, req request) ([]byte, error) {
	token := c.Token()
	if req.auth && token == "" {
		return nil, ErrNotLoggedIn
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: c.backoff}, uint64(max(c.attempts-1, 0))),
		ctx,
	)
	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}
		body, retry, err := c.do(ctx, req.method, target, req.form, token)
		switch {
		case err == nil:
			return body, nil
		case ctx.Err() != nil:
			return nil, backoff.Permanent(ctx.Err())
		case !retry:
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn("retrying request",
			zap.String("path", req.path),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	return backoff.RetryNotifyWithData(op, policy, notify)
}

// linearBackOff waits step, 2*step, 3*step... between attempts.
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.step * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

func (c *Client) do(ctx context.Context, method, target string, form url.Values, token string) ([]byte, bool, error) {
	var payload io.Reader
	if form != nil {
		payload = strings.NewReader(form.Encode())
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	c.log.Debug("pomelox request",
		zap.String("method", method),
		zap.String("url", httpReq.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, false, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, false, ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return nil, false, ErrForbidden
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	se := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, true, se
	}
	return nil, false, se
}

// decodeData unmarshals the data field of env into out. A missing or null
// data field leaves out untouched and reports false.
func decodeData(env *Envelope, out any) (bool, error) {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return false, fmt.Errorf("decode data: %w", err)
	}
	return true, nil
}

// decodeRows returns the rows of a list response. Some endpoints nest the
// page inside data, so data.rows is accepted too.
func decodeRows[T any](env *Envelope) ([]T, int, error) {
	var rows []T
	if len(env.Rows) > 0 && string(env.Rows) != "null" {
		if err := json.Unmarshal(env.Rows, &rows); err != nil {
			return nil, 0, fmt.Errorf("decode rows: %w", err)
		}
		return rows, max(env.Total, len(rows)), nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, env.Total, nil
	}
	if bytes.HasPrefix(bytes.TrimSpace(env.Data), []byte("[")) {
		if err := json.Unmarshal(env.Data, &rows); err != nil {
			return nil, 0, fmt.Errorf("decode data: %w", err)
		}
		return rows, len(rows), nil
	}
	var page struct {
		Rows  []T `json:"rows"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		return nil, 0, fmt.Errorf("decode page: %w", err)
	}
	return page.Rows, max(page.Total, len(page.Rows)), nil
}
