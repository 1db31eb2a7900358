// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server serves an http.Handler over a bind address ("ip:port" or
// "unix:<path>"), through a fixed pool of Workers each bounding its
// own in-flight connections to MaxPerWorker. Its lifecycle mirrors
// lib/service's SocketServer/HTTPServer: Serve(ctx) blocks until ctx
// is cancelled, then drains in-flight requests before returning.
type Server struct {
	Bind            string
	Workers         int
	MaxPerWorker    int
	Handler         http.Handler
	Logger          *slog.Logger
	TLSCertPath     string
	TLSKeyPath      string
	ShutdownTimeout time.Duration

	ready chan struct{}
	addr  net.Addr
}

// defaultWorkers and defaultMaxPerWorker match spec.md §4.8's W=4,
// M=256 defaults.
const (
	defaultWorkers      = 4
	defaultMaxPerWorker = 256
)

// Ready returns a channel closed once the listener is bound and the
// server is accepting connections.
func (s *Server) Ready() <-chan struct{} {
	if s.ready == nil {
		s.ready = make(chan struct{})
	}
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready()
// is closed.
func (s *Server) Addr() net.Addr { return s.addr }

// Serve binds the listener, wraps it in the worker pool, and serves
// Handler until ctx is cancelled. On cancellation it stops accepting
// new connections and waits up to ShutdownTimeout for in-flight
// requests to finish; a request whose client has already
// disconnected observes its context cancelled promptly, since an
// aborted write to a closed connection fails immediately.
func (s *Server) Serve(ctx context.Context) error {
	if s.Handler == nil {
		panic("server.Server: Handler is required")
	}
	workers := s.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	maxPerWorker := s.MaxPerWorker
	if maxPerWorker <= 0 {
		maxPerWorker = defaultMaxPerWorker
	}
	timeout := s.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := listen(s.Bind)
	if err != nil {
		return fmt.Errorf("server: listening on %s: %w", s.Bind, err)
	}

	if s.TLSCertPath != "" {
		cert, err := tls.LoadX509KeyPair(s.TLSCertPath, s.TLSKeyPath)
		if err != nil {
			raw.Close()
			return fmt.Errorf("server: loading TLS keypair: %w", err)
		}
		raw = tls.NewListener(raw, &tls.Config{Certificates: []tls.Certificate{cert}})
	}

	pool := newPoolListener(raw, workers, maxPerWorker)

	s.addr = raw.Addr()
	if s.ready == nil {
		s.ready = make(chan struct{})
	}
	close(s.ready)

	httpServer := &http.Server{
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No ReadTimeout/WriteTimeout: spec.md §5 requires no total-
		// request timeout, since a large NAR can legitimately take
		// minutes to stream.
	}

	logger.Info("cache server listening", "address", s.addr.String(), "workers", workers, "max_per_worker", maxPerWorker)

	serveDone := make(chan error, 1)
	go func() {
		err := httpServer.Serve(pool)
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		logger.Info("cache server shutting down")
	case err := <-serveDone:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("cache server shutdown error", "error", err)
		return fmt.Errorf("server: shutdown: %w", err)
	}

	logger.Info("cache server stopped")
	return nil
}
