// Package server provides the gateway's HTTP API.
//
// The middleware chain is composed once at startup, in a fixed order:
// recovery and request IDs, CORS, metrics instrumentation, rate limiting,
// then bearer authentication on protected routes, then the handler. Cleanup
// on the post path is deferred so failures cannot leak gauge increments.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hektorlabs/vdbgate/internal/apierror"
	"github.com/hektorlabs/vdbgate/internal/auth"
	"github.com/hektorlabs/vdbgate/internal/config"
	"github.com/hektorlabs/vdbgate/internal/engine"
	"github.com/hektorlabs/vdbgate/internal/metrics"
	"github.com/hektorlabs/vdbgate/internal/ratelimit"
)

// Server is the gateway HTTP server.
type Server struct {
	echo    *echo.Echo
	config  config.ServerConfig
	manager *engine.Manager
	store   *auth.Store
	tokens  *auth.TokenService
	logger  *zap.Logger

	version   string
	startTime time.Time
}

// Options bundles the server's collaborators.
type Options struct {
	Config  config.ServerConfig
	Manager *engine.Manager
	Store   *auth.Store
	Tokens  *auth.TokenService
	Limiter ratelimit.Limiter // nil disables rate limiting
	Logger  *zap.Logger
	Version string
}

// New creates the gateway server and registers all routes.
func New(opts Options) (*Server, error) {
	if opts.Manager == nil {
		return nil, fmt.Errorf("engine manager is required")
	}
	if opts.Store == nil || opts.Tokens == nil {
		return nil, fmt.Errorf("credential store and token service are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apierror.Handler(opts.Logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.Config.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))
	e.Use(metrics.Middleware())
	if opts.Limiter != nil {
		e.Use(ratelimit.Middleware(opts.Limiter, opts.Logger))
	}

	s := &Server{
		echo:      e,
		config:    opts.Config,
		manager:   opts.Manager,
		store:     opts.Store,
		tokens:    opts.Tokens,
		logger:    opts.Logger,
		version:   opts.Version,
		startTime: time.Now(),
	}
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Operational endpoints: unauthenticated, unrated, never block on the
	// engine.
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/auth/login", s.handleLogin)

	protected := s.echo.Group("", auth.BearerMiddleware(s.tokens))
	protected.GET("/stats", s.handleStats)
	protected.POST("/collections", s.handleCreateCollection)
	protected.GET("/collections", s.handleListCollections)
	protected.DELETE("/collections/:name", s.handleDeleteCollection)
	protected.POST("/collections/:name/documents", s.handleAddDocument)
	protected.POST("/collections/:name/documents/batch", s.handleAddBatch)
	protected.POST("/collections/:name/search", s.handleSearch)
}

// Start runs the server and blocks until ctx is cancelled or the listener
// fails. On cancellation it performs graceful shutdown with the configured
// timeout and returns http.ErrServerClosed.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down http server")
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo returns the underlying echo instance, used by tests to drive
// requests without a listener.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
