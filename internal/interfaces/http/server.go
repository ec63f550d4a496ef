// Package http exposes the loan API over gin.
package http

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/EduLoan-Engine/internal/config"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
)

// Server owns the listening http.Server.
type Server struct {
	srv             *http.Server
	router          http.Handler
	shutdownTimeout time.Duration
	log             logging.Logger
}

// SetMode applies the gin mode from configuration. It must run before any
// engine is built.
func SetMode(mode string) {
	switch mode {
	case gin.ReleaseMode, gin.TestMode, gin.DebugMode:
		gin.SetMode(mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
}

// NewServer wraps router in an http.Server configured from cfg.
func NewServer(cfg config.ServerConfig, router http.Handler, log logging.Logger) *Server {
	if log == nil {
		log = logging.NewNopLogger()
	}
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 30 * time.Second
	}
	return &Server{
		router:          router,
		shutdownTimeout: shutdown,
		log:             log,
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start blocks serving requests. A graceful Stop makes it return nil.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", logging.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests within the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.srv.Addr }

func (s *Server) Handler() http.Handler {
	return s.router
}

//Personal.AI order the ending
