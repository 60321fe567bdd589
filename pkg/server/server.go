package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/kilnproject/kiln/internal/logger"
	"github.com/kilnproject/kiln/pkg/templates"
)

// Server serves pages from the live template snapshot plus the health and
// metrics endpoints.
//
// The server supports graceful shutdown: once Stop is called no new
// connections are accepted and in-flight requests get ShutdownTimeout to
// finish.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates a new HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests. Defaults are applied here so a directly constructed server
// works without going through config loading.
func NewServer(config Config, provider *templates.Provider, version string) *Server {
	config.applyDefaults()

	router := NewRouter(config, provider, version)

	server := &http.Server{
		Addr:         net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
	}
}

// Start starts the HTTP server and blocks until the context is cancelled
// or the listener fails.
//
// On context cancellation Start drains in-flight requests within the
// configured ShutdownTimeout and returns nil.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", s.server.Addr,
			logger.KeyComponent, "http",
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("server shutdown signal received")
		// The cancelled ctx would abort the drain immediately, so the
		// shutdown deadline comes from a fresh context.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	}
}

// Stop initiates graceful shutdown.
//
// Safe to call multiple times and concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown: %w", err)
			logger.Error("server shutdown error", logger.KeyError, err)
		} else {
			logger.Info("server stopped gracefully")
		}
	})
	return shutdownErr
}

// Addr returns the address the server binds.
func (s *Server) Addr() string {
	return s.server.Addr
}
