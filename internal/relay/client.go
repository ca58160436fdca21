package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"time"

	"bibneat/internal/transport"
)

const dialTimeout = 2 * time.Second

// Client forwards transport GETs to a relay server.
type Client struct {
	path string

	mu     sync.Mutex
	client *rpc.Client
}

var _ transport.Transport = (*Client)(nil)

// Dial connects to the relay at the given socket path.
func Dial(path string) (*Client, error) {
	c := &Client{path: path}
	if _, err := c.connection(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connection() (*rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	conn, err := net.DialTimeout("unix", c.path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", c.path, err)
	}
	c.client = rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return c.client, nil
}

// drop forgets a broken connection so the next call redials.
func (c *Client) drop(broken *rpc.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == broken {
		_ = c.client.Close()
		c.client = nil
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// Ping checks that the relay answers.
func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	var resp PingResponse
	if err := c.call(ctx, "Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get implements transport.Transport.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*transport.Response, error) {
	req := FetchRequest{URL: url, Headers: headers}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("relay fetch: %w", context.DeadlineExceeded)
		}
		req.TimeoutMillis = remaining.Milliseconds()
		if req.TimeoutMillis == 0 {
			req.TimeoutMillis = 1
		}
	}
	var resp FetchResponse
	if err := c.call(ctx, "Fetch", req, &resp); err != nil {
		return nil, err
	}
	if resp.TimedOut {
		return nil, fmt.Errorf("relay fetch: %w", context.DeadlineExceeded)
	}
	return &transport.Response{Status: resp.Status, Headers: resp.Headers, Body: resp.Body}, nil
}

func (c *Client) call(ctx context.Context, method string, args, reply any) error {
	client, err := c.connection()
	if err != nil {
		return err
	}
	call := client.Go(ServiceName+"."+method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return fmt.Errorf("relay %s: %w", method, ctx.Err())
	case done := <-call.Done:
		if done.Error != nil {
			if errors.Is(done.Error, rpc.ErrShutdown) {
				c.drop(client)
			}
			return fmt.Errorf("relay %s: %w", method, done.Error)
		}
		return nil
	}
}
