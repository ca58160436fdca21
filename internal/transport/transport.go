// Package transport defines the GET primitive registry lookups are issued
// through and provides the direct net/http implementation.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Response is a registry reply captured verbatim.
type Response struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Transport issues a single GET. Implementations must honor ctx cancellation
// and return ctx.Err() (possibly wrapped) when the deadline fires.
type Transport interface {
	Get(ctx context.Context, url string, headers map[string]string) (*Response, error)
}

// DefaultMaxBodyBytes caps how much of a response body Direct will read.
const DefaultMaxBodyBytes = 8 << 20

// ErrBodyTooLarge is returned when a response body exceeds the configured cap.
var ErrBodyTooLarge = errors.New("response body too large")

// Direct performs GETs in-process with net/http.
type Direct struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// Option configures Direct.
type Option func(*Direct)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Direct) {
		if client != nil {
			d.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(agent string) Option {
	return func(d *Direct) {
		d.userAgent = strings.TrimSpace(agent)
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(limit int64) Option {
	return func(d *Direct) {
		if limit > 0 {
			d.maxBody = limit
		}
	}
}

// NewDirect constructs a Direct transport. Timeouts come from the caller's
// context, so the default client carries none of its own.
func NewDirect(opts ...Option) *Direct {
	d := &Direct{
		client:  &http.Client{},
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Get implements Transport.
func (d *Direct) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if d.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, fmt.Errorf("execute request (latency=%v): %w", time.Since(start), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > d.maxBody {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrBodyTooLarge, d.maxBody, url)
	}
	return &Response{
		Status:  resp.StatusCode,
		Headers: flattenHeaders(resp.Header),
		Body:    string(body),
	}, nil
}

func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key, values := range header {
		out[strings.ToLower(key)] = strings.Join(values, ", ")
	}
	return out
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, url string, headers map[string]string) (*Response, error)

// Get implements Transport.
func (f Func) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return f(ctx, url, headers)
}
