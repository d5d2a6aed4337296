// Package http serves the vectord catalog as a JSON API.
//
// Every /api/v1 response body is a catalog envelope. The HTTP status is
// derived from the envelope error code.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/catalog"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/services"
)

// DefaultMaxUploadBytes bounds multipart bodies when Config leaves it unset.
const DefaultMaxUploadBytes = 32 << 20

// Config holds HTTP server configuration.
type Config struct {
	Addr string
	// AuthRequired rejects /api/v1 requests without a valid bearer token.
	// When false, requests without a token act as the local user.
	AuthRequired   bool
	MaxUploadBytes int64
	// MetricsHandler is served at /metrics when set.
	MetricsHandler http.Handler
}

// HealthChecker reports backing store health.
type HealthChecker interface {
	Health(ctx context.Context) services.Health
}

// TokenVerifier resolves a bearer token to its owner id.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (string, error)
}

// Server provides HTTP endpoints for vectord.
type Server struct {
	echo     *echo.Echo
	catalog  *catalog.Catalog
	health   HealthChecker
	verifier TokenVerifier
	logger   *logging.Logger
	config   *Config
}

// NewServer creates a new HTTP server.
func NewServer(cat *catalog.Catalog, health HealthChecker, verifier TokenVerifier, logger *logging.Logger, cfg *Config) (*Server, error) {
	if cat == nil {
		return nil, errors.New("catalog cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Addr: "127.0.0.1:9090", AuthRequired: true}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.AuthRequired && verifier == nil {
		return nil, errors.New("token verifier is required when auth is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = envelopeErrorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger.Underlying()).MetricsMiddleware())
	e.Use(requestLogger(logger))

	s := &Server{
		echo:     e,
		catalog:  cat,
		health:   health,
		verifier: verifier,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

// requestLogger attaches the request id to the context and logs each request.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.config.MetricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.config.MetricsHandler))
	}

	v1 := s.echo.Group("/api/v1", s.authenticate)

	v1.POST("/projects", s.createProject)
	v1.GET("/projects", s.listProjects)
	v1.GET("/projects/:id", s.getProject)
	v1.PATCH("/projects/:id", s.updateProject)
	v1.DELETE("/projects/:id", s.deleteProject)
	v1.POST("/projects/:id/indexes", s.createIndex)
	v1.GET("/projects/:id/indexes", s.listIndexes)
	v1.POST("/projects/:id/search", s.searchProject)

	v1.GET("/indexes/:id", s.getIndex)
	v1.DELETE("/indexes/:id", s.deleteIndex)
	v1.POST("/indexes/:id/files", s.ingestFile)
	v1.POST("/indexes/:id/text", s.ingestText)
	v1.GET("/indexes/:id/files", s.listFiles)
	v1.POST("/indexes/:id/search", s.searchIndex)

	v1.GET("/files/:id", s.getFile)
	v1.GET("/files/:id/chunks", s.getFileChunks)
	v1.DELETE("/files/:id", s.deleteFile)

	v1.POST("/tokens", s.createToken)
	v1.GET("/tokens", s.listTokens)
	v1.PATCH("/tokens/:id", s.setTokenActive)
	v1.DELETE("/tokens/:id", s.deleteToken)
}

// handleHealth reports the metadata and vector store status.
func (s *Server) handleHealth(c echo.Context) error {
	if s.health == nil {
		return c.JSON(http.StatusOK, services.Health{Healthy: true, Services: map[string]string{}})
	}
	h := s.health.Health(c.Request().Context())
	status := http.StatusOK
	if !h.Healthy {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, h)
}

// ServeHTTP lets the server be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "starting http server",
		zap.String("addr", s.config.Addr),
		zap.Bool("auth_required", s.config.AuthRequired))
	return s.echo.Start(s.config.Addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
