package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"bibneat/internal/identifier"
	"bibneat/internal/logging"
	"bibneat/internal/transport"
)

const (
	DefaultPreprintBaseURL = "https://arxiv.org/bibtex/"
	DefaultResolverBaseURL = "https://doi.org/"
	DefaultResolverAccept  = "text/bibliography; style=bibtex; locale=en-GB"
	DefaultTimeout         = 20 * time.Second
)

// Fetcher is what the reconciler needs from a registry client.
type Fetcher interface {
	Fetch(ctx context.Context, id identifier.Identifier) Result
}

// Endpoints holds the registry base URLs and the resolver Accept header.
type Endpoints struct {
	PreprintBaseURL string
	ResolverBaseURL string
	ResolverAccept  string
}

// DefaultEndpoints returns the public arXiv and doi.org endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		PreprintBaseURL: DefaultPreprintBaseURL,
		ResolverBaseURL: DefaultResolverBaseURL,
		ResolverAccept:  DefaultResolverAccept,
	}
}

// Client issues registry lookups over an injected transport.
type Client struct {
	transport transport.Transport
	endpoints Endpoints
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithEndpoints overrides registry base URLs. Empty fields keep defaults.
func WithEndpoints(endpoints Endpoints) Option {
	return func(c *Client) {
		if v := strings.TrimSpace(endpoints.PreprintBaseURL); v != "" {
			c.endpoints.PreprintBaseURL = v
		}
		if v := strings.TrimSpace(endpoints.ResolverBaseURL); v != "" {
			c.endpoints.ResolverBaseURL = v
		}
		if v := strings.TrimSpace(endpoints.ResolverAccept); v != "" {
			c.endpoints.ResolverAccept = v
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger attaches a logger for per-request debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New constructs a registry client.
func New(t transport.Transport, opts ...Option) (*Client, error) {
	if t == nil {
		return nil, errors.New("registry client requires transport")
	}
	c := &Client{
		transport: t,
		endpoints: DefaultEndpoints(),
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "registry")
	return c, nil
}

// Target returns the URL and headers used to look up id.
func (c *Client) Target(id identifier.Identifier) (string, map[string]string, error) {
	switch id.Kind {
	case identifier.Preprint:
		return joinURL(c.endpoints.PreprintBaseURL, id.Value), nil, nil
	case identifier.Resolver:
		return joinURL(c.endpoints.ResolverBaseURL, id.Value), map[string]string{"Accept": c.endpoints.ResolverAccept}, nil
	default:
		return "", nil, fmt.Errorf("no registry for kind %s", id.Kind)
	}
}

// Fetch looks up id and classifies the reply. It never returns an error; the
// failure, if any, is carried in Result.Err.
func (c *Client) Fetch(ctx context.Context, id identifier.Identifier) Result {
	canonical, err := identifier.Normalize(id.Value, id.Kind)
	if err != nil {
		return Invalid(err)
	}
	target, headers, err := c.Target(canonical)
	if err != nil {
		return Invalid(err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.transport.Get(reqCtx, target, headers)
	result := classify(resp, err)
	c.logger.Debug("registry lookup settled",
		logging.String(logging.FieldKind, canonical.Kind.String()),
		logging.String(logging.FieldIdentifier, canonical.Value),
		logging.String(logging.FieldStatus, result.Status.String()),
		logging.Int("http_status", result.HTTPStatus),
		logging.Duration("latency", time.Since(start)))
	return result
}

func classify(resp *transport.Response, err error) Result {
	if err != nil {
		if isTimeout(err) {
			return Result{Status: StatusTimeout, Err: err}
		}
		return Result{Status: StatusTransportError, Err: err}
	}
	if resp == nil {
		return Result{Status: StatusTransportError, Err: errors.New("transport returned no response")}
	}
	switch {
	case resp.OK():
		if strings.TrimSpace(resp.Body) == "" {
			return Result{Status: StatusUnknownResponse, HTTPStatus: resp.Status, Err: errors.New("empty response body")}
		}
		return Result{Status: StatusFound, Payload: resp.Body, HTTPStatus: resp.Status}
	case resp.Status == 404:
		return Result{Status: StatusNotFound, HTTPStatus: resp.Status}
	default:
		return Result{Status: StatusUnknownResponse, HTTPStatus: resp.Status, Err: fmt.Errorf("unexpected status %d", resp.Status)}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// joinURL appends an identifier to base, escaping each path segment.
func joinURL(base, value string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	segments := strings.Split(value, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return base + strings.Join(segments, "/")
}
