// Package server implements the RESP TCP front end: it accepts client
// connections, cuts requests out of the byte stream and writes replies.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/velocitykv/velocity/internal/command"
	"github.com/velocitykv/velocity/internal/metrics"
	"github.com/velocitykv/velocity/internal/protocol"
)

// ErrServerClosed is returned by Start after Close.
var ErrServerClosed = errors.New("server: closed")

// Config holds server configuration.
type Config struct {
	// Addr is the TCP listen address.
	Addr string
	// MaxClients caps concurrently open connections. Zero means no limit.
	MaxClients int
	// ReadTimeout closes a connection idle for longer. Zero disables it.
	ReadTimeout time.Duration
	// WriteTimeout bounds flushing replies. Zero disables it.
	WriteTimeout time.Duration
	// RateLimit is the sustained commands per second allowed on one
	// connection, with a burst of the same size. Zero disables it.
	RateLimit float64
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:       "0.0.0.0:6379",
		MaxClients: 10000,
	}
}

// Handler executes one request and returns its reply.
type Handler interface {
	Dispatch(req protocol.Request) protocol.Value
}

// Stats is a point-in-time snapshot of server counters.
type Stats struct {
	ConnectedClients int           `json:"connected_clients"`
	TotalConnections int64         `json:"total_connections"`
	TotalCommands    int64         `json:"total_commands"`
	Uptime           time.Duration `json:"uptime_ns"`
}

// clientConn represents a client connection with state.
type clientConn struct {
	id        string
	conn      net.Conn
	addr      string
	createdAt time.Time
	limiter   *rate.Limiter
	cmdCount  atomic.Int64
}

// Server is the RESP TCP server.
type Server struct {
	config  Config
	handler Handler
	metrics *metrics.Registry
	logger  *slog.Logger

	mu        sync.Mutex
	listener  net.Listener
	closed    bool
	clients   map[string]*clientConn
	wg        sync.WaitGroup
	ready     chan struct{}
	readyOnce sync.Once

	startTime  time.Time
	totalCmds  atomic.Int64
	totalConns atomic.Int64
}

// New creates a Server. m and logger may be nil.
func New(cfg Config, h Handler, m *metrics.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:    cfg,
		handler:   h,
		metrics:   m,
		logger:    logger.With("component", "server"),
		clients:   make(map[string]*clientConn),
		ready:     make(chan struct{}),
		startTime: time.Now(),
	}
}

// Start listens on the configured address and serves connections until
// the context is cancelled or Close is called.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("server: failed to listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener. It takes ownership of listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return ErrServerClosed
	}
	s.listener = listener
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	s.logger.Info("listening", "addr", listener.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		s.Close()
	})
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Warn("accept failed", "error", err)
				continue
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		client, ok := s.register(conn)
		if !ok {
			continue
		}

		s.wg.Add(1)
		go func(c *clientConn) {
			defer s.wg.Done()
			defer s.unregister(c)
			s.handleConnection(ctx, c)
		}(client)
	}
}

// register admits conn, or rejects it when the server is full or closing.
func (s *Server) register(conn net.Conn) (*clientConn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		conn.Close()
		return nil, false
	}
	if s.config.MaxClients > 0 && len(s.clients) >= s.config.MaxClients {
		s.metrics.ConnectionRejected()
		s.logger.Warn("max clients reached, rejecting connection", "remote", conn.RemoteAddr().String())
		_, _ = conn.Write(protocol.Encode(protocol.Errorf("max number of clients reached")))
		conn.Close()
		return nil, false
	}

	client := &clientConn{
		id:        ulid.Make().String(),
		conn:      conn,
		addr:      conn.RemoteAddr().String(),
		createdAt: time.Now(),
	}
	if s.config.RateLimit > 0 {
		burst := int(s.config.RateLimit)
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(s.config.RateLimit), burst)
	}

	s.clients[client.id] = client
	s.totalConns.Add(1)
	s.metrics.ConnectionOpened()
	s.logger.Debug("client connected", "conn_id", client.id, "remote", client.addr)
	return client, true
}

func (s *Server) unregister(c *clientConn) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()

	s.metrics.ConnectionClosed()
	s.logger.Debug("client disconnected",
		"conn_id", c.id,
		"remote", c.addr,
		"commands", c.cmdCount.Load(),
		"duration", time.Since(c.createdAt))
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	connected := len(s.clients)
	s.mu.Unlock()

	return Stats{
		ConnectedClients: connected,
		TotalConnections: s.totalConns.Load(),
		TotalCommands:    s.totalCmds.Load(),
		Uptime:           time.Since(s.startTime),
	}
}

// Close stops accepting, closes every open connection and waits for the
// connection goroutines to exit.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closed = true
	listener := s.listener
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}

	s.wg.Wait()
	s.logger.Info("server stopped")
	return err
}

// handleConnection serves one client. Replies to every request already
// buffered are written together and flushed before the next blocking read,
// so pipelined requests are answered in order with a single write.
func (s *Server) handleConnection(ctx context.Context, client *clientConn) {
	defer client.conn.Close()

	reader := protocol.NewReader(client.conn)
	writer := protocol.NewWriter(client.conn)
	writer.SetAutoFlush(false)

	for {
		req, ok, err := reader.NextRequest()
		if err != nil {
			s.logger.Debug("protocol error", "conn_id", client.id, "error", err)
			s.writeProtocolError(client, writer, err)
			return
		}

		if !ok {
			if err := s.flush(client, writer); err != nil {
				return
			}
			if ctx.Err() != nil {
				return
			}
			if s.config.ReadTimeout > 0 {
				_ = client.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
			}
			if err := reader.Fill(); err != nil {
				s.logReadError(client, err)
				return
			}
			continue
		}

		if req.Empty() {
			continue
		}

		reply := s.execute(client, req)
		if err := writer.WriteValue(reply); err != nil {
			return
		}
	}
}

func (s *Server) execute(client *clientConn, req protocol.Request) protocol.Value {
	client.cmdCount.Add(1)
	s.totalCmds.Add(1)

	name := strings.ToUpper(req.Name())
	if !command.Known(name) {
		name = metrics.UnknownCommand
	}

	if client.limiter != nil && !client.limiter.Allow() {
		s.metrics.ObserveCommand(name, 0, true)
		return protocol.Errorf("rate limit exceeded")
	}

	start := time.Now()
	reply := s.handler.Dispatch(req)
	s.metrics.ObserveCommand(name, time.Since(start), reply.IsError())
	return reply
}

func (s *Server) flush(client *clientConn, w *protocol.Writer) error {
	if w.Buffered() == 0 {
		return nil
	}
	if s.config.WriteTimeout > 0 {
		_ = client.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	return w.Flush()
}

// writeProtocolError answers a malformed request before the connection is
// dropped. Replies already queued are sent first.
func (s *Server) writeProtocolError(client *clientConn, w *protocol.Writer, err error) {
	detail := strings.TrimPrefix(err.Error(), protocol.ErrMalformed.Error()+": ")
	_ = w.WriteValue(protocol.Errorf("Protocol error: %s", detail))
	_ = s.flush(client, w)
}

func (s *Server) logReadError(client *clientConn, err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.logger.Debug("client closed mid-request", "conn_id", client.id)
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		s.logger.Debug("connection timed out", "conn_id", client.id, "remote", client.addr)
		return
	}
	s.logger.Warn("read failed", "conn_id", client.id, "error", err)
}
