package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"novacore.dev/internal/obs"
)

// Sentinel errors mapped from response status codes.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a user-presentable API failure. The message, when present,
// comes straight from the backend's error body.
type Error struct {
	Status  int
	Message string

	sentinel error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Unwrap exposes the status sentinel, so errors.Is(err, ErrUnauthorized)
// and friends work across the package boundary.
func (e *Error) Unwrap() error { return e.sentinel }

// UserMessage returns the backend-supplied message suitable for display.
func (e *Error) UserMessage() string { return e.Message }

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient overrides the transport. The default retries transient
// failures.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc != nil {
			c.hc = hc
		}
		return nil
	}
}

// WithLogger sets the client logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log.Named("api")
		}
		return nil
	}
}

// WithCredentialStore overrides credential persistence. The default
// keeps credentials in memory only.
func WithCredentialStore(cs CredentialStore) Option {
	return func(c *Client) error {
		if cs != nil {
			c.creds = cs
		}
		return nil
	}
}

// WithTimeout bounds each request when the default transport is used.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d > 0 {
			c.timeout = d
		}
		return nil
	}
}

// Client talks to the NovaCore REST API. One instance serves the whole
// process; it is safe for concurrent use.
type Client struct {
	hc         *http.Client
	log        *zap.SugaredLogger
	baseURL    string
	creds      CredentialStore
	instanceID string
	timeout    time.Duration
}

// New builds a client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("api: base url is required")
	}
	c := &Client{
		log:        zap.NewNop().Sugar(),
		baseURL:    baseURL,
		creds:      NewMemoryStore(),
		instanceID: uuid.NewString(),
		timeout:    10 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.hc == nil {
		rc := retryablehttp.NewClient()
		rc.RetryMax = 3
		rc.Logger = nil
		rc.HTTPClient.Timeout = c.timeout
		c.hc = rc.StandardClient()
	}
	return c, nil
}

// Token returns the current bearer token, empty when logged out. The
// realtime dialer consults this on every connection attempt.
func (c *Client) Token() string {
	cred, ok, err := c.creds.Load()
	if err != nil || !ok {
		return ""
	}
	return cred.Token
}

// do executes one JSON request. in and out may be nil. Non-2xx statuses
// map to sentinels or *Error with the backend's message.
func (c *Client) do(ctx context.Context, method, path, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Client-ID", c.instanceID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred, ok, _ := c.creds.Load(); ok {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		obs.APIRequests.WithLabelValues(endpoint, "error").Inc()
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	obs.APIRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	c.log.Debugw(method,
		"path", path,
		"status", resp.StatusCode,
		"time", time.Since(start).Seconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}

// errorFromResponse maps a failure response to an *Error carrying the
// body's message field and, for well-known statuses, a sentinel.
func (c *Client) errorFromResponse(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	apiErr := &Error{Status: resp.StatusCode}
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil {
		if envelope.Error != "" {
			apiErr.Message = envelope.Error
		} else {
			apiErr.Message = envelope.Message
		}
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		apiErr.sentinel = ErrUnauthorized
	case http.StatusNotFound:
		apiErr.sentinel = ErrNotFound
	}
	return apiErr
}
