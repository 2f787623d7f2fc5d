// Package apiclient is the single transport between the console and the CRM API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
)

// AuthHeader carries the bearer credential on every call.
const AuthHeader = "x-auth-token"

const maxBodyBytes = 4 << 20

// Credentials supplies the token for one caller and is told when the CRM API
// rejects it. The token is read on every call, never cached.
type Credentials interface {
	Credential() string
	ClearCredential()
}

// Observer receives the outcome of every upstream call.
type Observer interface {
	ObserveUpstream(method, outcome string, elapsed time.Duration)
}

// Config carries deployment level settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retry   RetryConfig
}

// Request describes one call to the CRM API.
type Request struct {
	Method string
	Path   string
	Body   any
	Header http.Header
}

// Response is a fully read CRM API answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the body into out. An empty body leaves out untouched.
func (r *Response) Decode(out any) error {
	if out == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	return dec.Decode(out)
}

// Client issues requests against the configured base URL.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	executor   failsafe.Executor[*Response]
	logger     *slog.Logger
	observer   Observer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger attaches a logger for rejected and failed calls.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver reports call outcomes, typically to Prometheus.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// New constructs a Client.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
		executor:   newRetryExecutor(cfg.Retry),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches path into out.
func (c *Client) Get(ctx context.Context, creds Credentials, path string, out any) error {
	return c.Do(ctx, creds, http.MethodGet, path, nil, out)
}

// Post submits in to path and decodes the answer into out.
func (c *Client) Post(ctx context.Context, creds Credentials, path string, in, out any) error {
	return c.Do(ctx, creds, http.MethodPost, path, in, out)
}

// Put replaces path with in and decodes the answer into out.
func (c *Client) Put(ctx context.Context, creds Credentials, path string, in, out any) error {
	return c.Do(ctx, creds, http.MethodPut, path, in, out)
}

// Delete removes path.
func (c *Client) Delete(ctx context.Context, creds Credentials, path string) error {
	return c.Do(ctx, creds, http.MethodDelete, path, nil, nil)
}

// Do performs method on path and decodes a success payload into out.
func (c *Client) Do(ctx context.Context, creds Credentials, method, path string, in, out any) error {
	resp, err := c.Send(ctx, creds, Request{Method: method, Path: path, Body: in})
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return &Error{Kind: ErrUpstream, Method: method, Path: path, Status: resp.Status, Message: "malformed response", Err: err}
	}
	return nil
}

// Send performs req and returns the raw answer on success. Every failure is
// an *Error. A 401 clears creds before the error is returned.
func (c *Client) Send(ctx context.Context, creds Credentials, req Request) (*Response, error) {
	var payload []byte
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode %s %s: %w", req.Method, req.Path, err)
		}
		payload = data
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var (
		resp *Response
		err  error
	)
	attempt := func() (*Response, error) {
		return c.attempt(ctx, creds, req, payload)
	}
	if idempotent(req.Method) {
		resp, err = c.executor.WithContext(ctx).Get(attempt)
	} else {
		resp, err = attempt()
	}

	callErr := c.classify(req, resp, err)
	c.observe(req.Method, callErr, time.Since(start))
	if callErr != nil {
		if errors.Is(callErr, ErrUnauthorized) && creds != nil {
			creds.ClearCredential()
			c.logger.Info("crm api rejected credential", slog.String("method", req.Method), slog.String("path", req.Path))
		} else if errors.Is(callErr, ErrTransport) || errors.Is(callErr, ErrUpstream) {
			c.logger.Warn("crm api call failed", slog.String("method", req.Method), slog.String("path", req.Path), slog.Any("error", callErr))
		}
		return nil, callErr
	}
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, creds Credentials, req Request, payload []byte) (*Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if creds != nil {
		if token := creds.Credential(); token != "" {
			httpReq.Header.Set(AuthHeader, token)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

func (c *Client) classify(req Request, resp *Response, err error) error {
	if err != nil {
		return &Error{Kind: ErrTransport, Method: req.Method, Path: req.Path, Err: err}
	}
	if resp == nil {
		return &Error{Kind: ErrTransport, Method: req.Method, Path: req.Path}
	}
	if resp.Status >= 200 && resp.Status < 300 {
		return nil
	}
	return &Error{
		Kind:    kindForStatus(resp.Status),
		Method:  req.Method,
		Path:    req.Path,
		Status:  resp.Status,
		Message: extractMessage(resp.Body),
	}
}

func (c *Client) observe(method string, err error, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveUpstream(method, Outcome(err), elapsed)
}

// Outcome names the failure kind of err for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "upstream"
	}
}
