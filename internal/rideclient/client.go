// Package rideclient reaches the inventory ledger of another deployment over
// HTTP. It implements service.RideLookup.
package rideclient

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

	"go.uber.org/zap"

	"rideshare/internal/service"
)

// IdempotencyHeader carries the seat adjustment key so the ledger can dedupe retries.
const IdempotencyHeader = "Idempotency-Key"

const (
	DefaultTimeout = 2 * time.Second
	DefaultRetries = 2
	defaultBackoff = 100 * time.Millisecond
	maxBodyBytes   = 1 << 20
)

// Client is an HTTP client for the internal inventory endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	retries int
	backoff time.Duration
	token   func() (string, error)
	log     *zap.Logger
}

// Ensure Client implements service.RideLookup.
var _ service.RideLookup = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBackoff sets the base delay between retries. It doubles on every retry.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithTokenSource sets a function returning the bearer token sent with every request.
func WithTokenSource(token func() (string, error)) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client. timeout bounds every single request; retries bounds
// the extra attempts made by Fetch.
func New(baseURL string, timeout time.Duration, retries int, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retries < 0 {
		retries = 0
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
		retries: retries,
		backoff: defaultBackoff,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("component", "rideclient"))
	return c
}

type adjustRequest struct {
	Delta int `json:"delta"`
}

type revertRequest struct {
	Key string `json:"key"`
}

type errorBody struct {
	Error  string         `json:"error"`
	Code   string         `json:"code"`
	Fields map[string]any `json:"fields"`
}

// Fetch returns the ride snapshot. Transport failures and 5xx responses are
// retried with exponential backoff.
func (c *Client) Fetch(ctx context.Context, rideID string) (*service.RideSnapshot, error) {
	var snapshot service.RideSnapshot
	if err := c.do(ctx, http.MethodGet, ridePath(rideID), nil, "", c.retries, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// AdjustSeats applies a seat delta. A keyed call is retried once; an unkeyed
// call is never retried because the ledger could not tell the attempts apart.
func (c *Client) AdjustSeats(ctx context.Context, rideID string, delta int, idempotencyKey string) error {
	retries := 0
	if idempotencyKey != "" {
		retries = 1
	}
	return c.do(ctx, http.MethodPost, ridePath(rideID)+"/seats", adjustRequest{Delta: delta}, idempotencyKey, retries, nil)
}

// RevertSeats undoes the adjustment recorded under idempotencyKey. Reverts
// are idempotent on the ledger side, so one retry is always safe.
func (c *Client) RevertSeats(ctx context.Context, rideID, idempotencyKey string) error {
	return c.do(ctx, http.MethodPost, ridePath(rideID)+"/seats/revert", revertRequest{Key: idempotencyKey}, "revert:"+idempotencyKey, 1, nil)
}

func ridePath(rideID string) string {
	return "/internal/rides/" + url.PathEscape(rideID)
}

func (c *Client) do(ctx context.Context, method, path string, body any, key string, retries int, out any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			c.log.Warn("retrying inventory request",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(lastErr),
			)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return unavailable("inventory request abandoned: " + ctx.Err().Error())
			case <-timer.C:
			}
		}

		retryable, err := c.once(ctx, method, path, payload, key, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

// once performs a single request and reports whether a failure may be retried.
func (c *Client) once(ctx context.Context, method, path string, payload []byte, key string, out any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		tok, err := c.token()
		if err != nil {
			return false, fmt.Errorf("issue token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return true, unavailable("inventory ledger unreachable: " + err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return true, unavailable("reading inventory response: " + err.Error())
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return true, decodeError(resp.StatusCode, data)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return false, decodeError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return false, unavailable("malformed inventory response: " + err.Error())
		}
	}
	return false, nil
}

// decodeError rebuilds the ledger's error. Responses that do not carry an
// error code did not come from the ledger and are reported as unavailable.
func decodeError(status int, data []byte) *service.Error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
		return unavailable(fmt.Sprintf("inventory ledger answered %d %s", status, http.StatusText(status)))
	}

	code := body.Code
	if status >= http.StatusInternalServerError {
		code = "unavailable"
	}
	e := service.FromCode(code, body.Error, body.Fields)
	e.Msg = strings.TrimPrefix(e.Msg, e.Kind.Error()+": ")
	return e
}

func unavailable(msg string) *service.Error {
	return service.FromCode("unavailable", msg, nil)
}
