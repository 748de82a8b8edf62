package uploadclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	ErrInvalidURL = errors.New("uploadclient: invalid server URL")
	ErrTransport  = errors.New("uploadclient: request failed")
	ErrStatus     = errors.New("uploadclient: unexpected status")
	ErrDecode     = errors.New("uploadclient: invalid response")
	ErrNotReady   = errors.New("uploadclient: server not ready")
)

// StatusError is returned when the server answers with a non-2xx status.
// It unwraps to ErrStatus.
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s failed: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("%s failed: %s: %s", e.Op, e.Status, body)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// Client talks to the upload and progress endpoints of a server.
type Client struct {
	base           *url.URL
	client         *http.Client
	requestTimeout time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client. Its Timeout applies to
// uploads too, so keep it 0 for large files.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithRequestTimeout bounds every request except the upload itself.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}
	c := &Client{
		base:           u,
		client:         &http.Client{},
		requestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) endpoint(p string, query url.Values) string {
	u := c.base.JoinPath(p)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// get performs a short GET request and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, op, p string, query url.Values) ([]byte, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(p, query), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create %s request: %v", ErrTransport, op, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s response: %w", ErrTransport, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}
	return body, nil
}

// Progress fetches the server's completed-units counter.
func (c *Client) Progress(ctx context.Context) (float64, error) {
	body, err := c.get(ctx, "progress", "progress", nil)
	if err != nil {
		return 0, err
	}
	var n json.Number
	if err := json.Unmarshal(body, &n); err != nil {
		return 0, fmt.Errorf("%w: progress is not a number: %q", ErrDecode, strings.TrimSpace(string(body)))
	}
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: progress is not a number: %v", ErrDecode, err)
	}
	return v, nil
}

// Health returns nil when the server reports itself ready.
func (c *Client) Health(ctx context.Context) error {
	body, err := c.get(ctx, "health", "health", nil)
	if err != nil {
		return err
	}
	var h struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &h); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if h.Status != "ok" {
		return fmt.Errorf("%w: status %q", ErrNotReady, h.Status)
	}
	return nil
}

// WaitReady polls the health endpoint with exponential backoff until it
// succeeds, maxWait elapses or ctx is done. A non-positive maxWait checks once.
func (c *Client) WaitReady(ctx context.Context, maxWait time.Duration, notify func(err error, next time.Duration)) error {
	if maxWait <= 0 {
		if err := c.Health(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrNotReady, err)
		}
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = maxWait

	op := func() error {
		err := c.Health(ctx)
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return nil
}

// Predict asks the server for the risk class of a (zone, time, day) triple.
func (c *Client) Predict(ctx context.Context, zone, hour, day int) (string, error) {
	q := url.Values{}
	q.Set("zone", strconv.Itoa(zone))
	q.Set("time", strconv.Itoa(hour))
	q.Set("day", strconv.Itoa(day))
	body, err := c.get(ctx, "predict", "predict", q)
	if err != nil {
		return "", err
	}
	var r struct {
		Risk string `json:"risk"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return r.Risk, nil
}
