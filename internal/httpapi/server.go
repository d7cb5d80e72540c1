// Package httpapi exposes the generation service over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
	"github.com/fyrsmithlabs/foundryd/internal/generator"
	"github.com/fyrsmithlabs/foundryd/internal/pipeline"
	"github.com/fyrsmithlabs/foundryd/internal/retrieval"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides the foundryd HTTP endpoints.
type Server struct {
	echo    *echo.Echo
	service *generator.Service
	logger  *zap.Logger
	config  *Config
	version string
}

// NewServer creates the HTTP server around a generation service.
func NewServer(service *generator.Service, logger *zap.Logger, cfg *Config, version string) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("generation service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8750}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		config:  cfg,
		version: version,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/generate", s.handleGenerate)
	v1.POST("/index/rebuild", s.handleIndexRebuild)
	v1.GET("/index/status", s.handleIndexStatus)
}

// GenerateRequest is the request body for POST /api/v1/generate.
type GenerateRequest struct {
	Text  string            `json:"text"`
	Hints map[string]string `json:"hints,omitempty"`
}

// GenerateResponse is the response body for POST /api/v1/generate.
type GenerateResponse struct {
	RunID    string              `json:"run_id"`
	Complete bool                `json:"complete"`
	Error    string              `json:"error,omitempty"`
	Manifest generation.Manifest `json:"manifest"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

// handleGenerate runs one generation end to end. A run that completes
// with residual validation failures is still a 200; the manifest
// carries the failing reports.
func (s *Server) handleGenerate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid generate request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	run := generation.NewRequest(req.Text)
	run.Hints = req.Hints

	state, err := s.service.Generate(c.Request().Context(), run)
	resp := GenerateResponse{
		RunID:    state.Request.ID,
		Complete: state.GenerationComplete,
		Error:    state.ErrorMessage,
		Manifest: s.service.Manifest(state),
	}

	if err != nil {
		return c.JSON(statusForError(err), resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleIndexRebuild refetches or reloads the corpus and rebuilds the
// retrieval index.
func (s *Server) handleIndexRebuild(c echo.Context) error {
	if err := s.service.RebuildIndex(c.Request().Context()); err != nil {
		if errors.Is(err, generator.ErrEmptyCorpus) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		s.logger.Error("index rebuild failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "index rebuild failed")
	}
	return c.JSON(http.StatusOK, s.service.Status())
}

// handleIndexStatus reports index readiness and chunk count.
func (s *Server) handleIndexStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.Status())
}

// statusForError maps pipeline failures onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrEmptyRequest):
		return http.StatusBadRequest
	case errors.Is(err, retrieval.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler returns the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Echo exposes the router so the daemon can mount extra endpoints.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
