// Package server provides the HTTP surface: chi router, middleware
// chain, and server lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server wraps the chi router and HTTP server lifecycle.
type Server struct {
	Router *chi.Mux
	port   int
	srv    *http.Server
	logger *slog.Logger
}

// New builds the router with the standard middleware chain applied in
// order: request ID, logging, request timeout, panic recovery, OTel
// instrumentation.
func New(port int, requestTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(requestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "httpsim")
	})

	return &Server{
		Router: r,
		port:   port,
		logger: logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     s.Router,
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		s.logger.Info("HTTP server listening", slog.Int("port", s.port))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
