// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

// Package httpserve runs an http.Handler on its own listener with a
// start/stop lifecycle shared by the API and the metrics endpoint.
package httpserve

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
)

// DefaultReadHeaderTimeout bounds how long a client may take to send headers.
const DefaultReadHeaderTimeout = 10 * time.Second

// Server serves one handler. Error codes are prefixed with the upper-cased
// server name, e.g. HTTP_LISTEN_FAILED for a server named "http".
type Server struct {
	name    string
	prefix  string
	addr    string
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server
}

// New creates a server called name for handler on addr. Nothing listens
// until Start.
func New(name, addr string, handler http.Handler) *Server {
	return &Server{
		name:    name,
		prefix:  strings.ToUpper(name),
		addr:    addr,
		handler: handler,
	}
}

// Start listens and serves in the background. The returned channel receives
// a serve error, if any, and is closed once serving ends.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return nil, oops.Code(s.prefix+"_ALREADY_RUNNING").
			With("server", s.name).
			Errorf("%s server already running", s.name)
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.Code(s.prefix+"_LISTEN_FAILED").
			With("server", s.name).
			With("addr", s.addr).
			Wrap(err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
	s.listener, s.srv = ln, srv

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		err := srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		slog.Error("server stopped serving", "server", s.name, "error", err)
		errs <- err
	}()

	slog.Info("server listening", "server", s.name, "addr", ln.Addr().String())
	return errs, nil
}

// Stop gracefully shuts the server down within ctx. Stopping a server that
// is not running is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return oops.Code(s.prefix+"_SHUTDOWN_FAILED").With("server", s.name).Wrap(err)
	}
	s.srv = nil
	slog.Info("server stopped", "server", s.name)
	return nil
}

// Addr returns the bound address, or "" before the first Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
