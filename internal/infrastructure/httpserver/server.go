package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// DefaultShutdownTimeout bounds graceful shutdown when the config
// leaves it unset.
const DefaultShutdownTimeout = 10 * time.Second

// ServerConfig holds the listener settings for the API server.
type ServerConfig struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server runs the Echo instance assembled by the router, applying the
// configured timeouts and owning graceful shutdown.
type Server struct {
	echo   *echo.Echo
	config ServerConfig
	logger *slog.Logger
}

// NewServer wraps a routed Echo instance with listener configuration.
func NewServer(e *echo.Echo, config ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	e.Server.ReadTimeout = config.ReadTimeout
	e.Server.WriteTimeout = config.WriteTimeout

	return &Server{
		echo:   e,
		config: config,
		logger: logger,
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// Start begins serving and blocks until the listener stops.
// A graceful Shutdown is not reported as an error.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		slog.String("address", s.config.Address),
		slog.Duration("read_timeout", s.config.ReadTimeout),
		slog.Duration("write_timeout", s.config.WriteTimeout),
	)

	if err := s.echo.Start(s.config.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting new connections and drains in-flight requests,
// bounded by the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "shutting down HTTP server",
		slog.Duration("timeout", s.config.ShutdownTimeout),
	)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	s.logger.InfoContext(ctx, "HTTP server stopped")
	return nil
}
