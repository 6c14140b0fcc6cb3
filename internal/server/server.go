package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrNotListening is returned by Serve before a successful Listen.
var ErrNotListening = errors.New("server: Listen has not been called")

// Server owns the control surface's listener and *http.Server. Serve and
// Shutdown may run on different goroutines in either order.
type Server struct {
	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	stopped    bool
}

// No WriteTimeout: websocket connections are long-lived and set their own
// write deadlines.
const (
	maxHeaderBytes    = 1 << 20 // 1 MB
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
	defaultPort       = "8080"
)

func newHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		MaxHeaderBytes:    maxHeaderBytes,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// normalizeAddr accepts "8080", ":8080" or "host:8080". Empty means the
// default port on all interfaces.
func normalizeAddr(port string) string {
	switch {
	case port == "":
		return ":" + defaultPort
	case strings.Contains(port, ":"):
		return port
	default:
		return ":" + port
	}
}

// Listen binds the address so a clash is reported before the daemon
// announces readiness.
func (s *Server) Listen(port string) error {
	ln, err := net.Listen("tcp", normalizeAddr(port))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve blocks serving handler on the bound listener. It returns nil once
// Shutdown has been called, including when Shutdown ran first.
func (s *Server) Serve(handler http.Handler) error {
	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return nil
	case s.listener == nil:
		s.mu.Unlock()
		return ErrNotListening
	}
	srv := newHTTPServer(handler)
	s.httpServer = srv
	ln := s.listener
	s.mu.Unlock()

	err := srv.Serve(ln)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if errors.Is(err, net.ErrClosed) && s.isStopped() {
		return nil
	}
	return err
}

func (s *Server) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Shutdown gracefully stops the server, allowing in-flight requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv, ln := s.httpServer, s.listener
	s.mu.Unlock()

	switch {
	case srv != nil:
		return srv.Shutdown(ctx)
	case ln != nil:
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
	}
	return nil
}
