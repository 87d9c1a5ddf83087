// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package httpd exposes the authentication service over a JSON HTTP API.
package httpd

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/observability"
)

// Server serves the Gatehouse HTTP API.
type Server struct {
	addr       string
	service    *auth.Service
	sessions   *auth.Manager
	cookie     config.CookieConfig
	metrics    *observability.Metrics
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates an API server. metrics may be nil when the
// observability endpoint is disabled.
func NewServer(addr string, service *auth.Service, sessions *auth.Manager, cookie config.CookieConfig, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     addr,
		service:  service,
		sessions: sessions,
		cookie:   cookie,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Handler returns the routed HTTP handler, wrapped with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /session", s.handleSession)
	mux.HandleFunc("GET /private", s.handlePrivate)

	return s.withRequestLog(mux)
}

// Start begins serving the API. It returns an error channel that receives
// any server error after startup; the channel is closed when the server
// stops gracefully.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on, or empty when not
// running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
