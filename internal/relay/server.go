package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bibneat/internal/logging"
	"bibneat/internal/transport"
)

// ErrHostNotAllowed is returned for URLs outside the relay's allowlist.
var ErrHostNotAllowed = errors.New("host not allowed by relay")

// Server exposes a transport over JSON-RPC on a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// ServerOption configures the relay server.
type ServerOption func(*service)

// WithAllowedHosts restricts the hosts the relay will contact. An empty list
// allows any host.
func WithAllowedHosts(hosts ...string) ServerOption {
	return func(s *service) {
		for _, host := range hosts {
			host = strings.ToLower(strings.TrimSpace(host))
			if host != "" {
				s.allowed[host] = struct{}{}
			}
		}
	}
}

// NewServer listens on path and serves fetches through t.
func NewServer(ctx context.Context, path string, t transport.Transport, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	if t == nil {
		return nil, errors.New("relay server requires transport")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "relay")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	svc := &service{
		transport: t,
		logger:    logger,
		allowed:   make(map[string]struct{}),
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	svc.ctx = serverCtx
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Serve starts accepting connections until Close or context cancellation.
func (s *Server) Serve() {
	s.logger.Info("relay listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "relay_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "lookups routed through the relay will fail"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the relay"))
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
	go func() {
		<-s.ctx.Done()
		_ = s.listener.Close()
	}()
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

// Close stops the listener, drops open connections and removes the socket.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "relay_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale relay socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	transport transport.Transport
	logger    *slog.Logger
	allowed   map[string]struct{}
	ctx       context.Context
	started   time.Time
	served    atomic.Int64
}

// Fetch performs the GET described by req.
func (s *service) Fetch(req FetchRequest, resp *FetchResponse) error {
	if err := s.permit(req.URL); err != nil {
		s.logger.Warn("relay refused request",
			logging.String("url", req.URL),
			logging.String(logging.FieldEventType, "relay_request_refused"),
			logging.Error(err))
		return err
	}
	ctx := s.ctx
	var cancel context.CancelFunc
	if req.TimeoutMillis > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMillis)*time.Millisecond)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	start := time.Now()
	result, err := s.transport.Get(ctx, req.URL, req.Headers)
	s.served.Add(1)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Debug("relay request timed out", logging.String("url", req.URL), logging.Duration("elapsed", time.Since(start)))
			resp.TimedOut = true
			return nil
		}
		s.logger.Debug("relay request failed", logging.String("url", req.URL), logging.Error(err))
		return err
	}
	s.logger.Debug("relay request served",
		logging.String("url", req.URL),
		logging.Int("status", result.Status),
		logging.Duration("elapsed", time.Since(start)))
	resp.Status = result.Status
	resp.Headers = result.Headers
	resp.Body = result.Body
	return nil
}

// Ping reports that the relay is alive.
func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.PID = os.Getpid()
	resp.Served = s.served.Load()
	resp.Started = s.started.Unix()
	return nil
}

func (s *service) permit(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if len(s.allowed) == 0 {
		return nil
	}
	if _, ok := s.allowed[strings.ToLower(parsed.Hostname())]; ok {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrHostNotAllowed, parsed.Hostname())
}
