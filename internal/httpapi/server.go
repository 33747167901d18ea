// Package httpapi provides the HTTP trigger surface for autopr: the
// process endpoint that runs the pipeline for one ticket and returns the
// finalized run report, plus health, status, and metrics.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/pipeline"
)

// Runner executes one pipeline run. *pipeline.Controller implements it.
type Runner interface {
	Run(ctx context.Context, key string, opts pipeline.Options) *pipeline.RunReport
}

// RunnerFactory resolves the runner for one request. repoPath is the
// optional per-request working-tree override; empty selects the
// configured default.
type RunnerFactory func(repoPath string) (Runner, error)

// Dependencies holds the server's collaborators.
type Dependencies struct {
	NewRunner RunnerFactory
	Version   string
	Logger    *zap.Logger
}

// Server provides the HTTP trigger endpoints.
type Server struct {
	echo      *echo.Echo
	newRunner RunnerFactory
	metrics   *HTTPMetrics
	logger    *zap.Logger
	config    *config.HTTPConfig
	version   string

	// Every run mutates one working tree, so runs are serialized; a
	// request that arrives mid-run is rejected rather than queued.
	runMu   sync.Mutex
	running atomic.Bool
}

// NewServer creates the HTTP server.
func NewServer(cfg *config.HTTPConfig, deps Dependencies) (*Server, error) {
	if deps.NewRunner == nil {
		return nil, errors.New("runner factory is required")
	}
	if deps.Logger == nil {
		return nil, errors.New("logger is required for request tracking")
	}
	if cfg == nil {
		cfg = &config.HTTPConfig{
			Host: "127.0.0.1",
			Port: 8000,
		}
	}
	logger := deps.Logger.Named("httpapi")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := NewHTTPMetrics(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		newRunner: deps.NewRunner,
		metrics:   metrics,
		logger:    logger,
		config:    cfg,
		version:   deps.Version,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/tickets/:key/process", s.handleProcess)
}

// handleHealth returns a simple liveness response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleStatus reports the server version and whether a run is in flight.
func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Status:  "ok",
		Version: s.version,
		Busy:    s.running.Load(),
	})
}

// handleProcess runs the pipeline for the ticket key in the path and
// returns the finalized run report. The HTTP status is 200 whenever a
// report was produced; the report's outcome says how the run ended.
func (s *Server) handleProcess(c echo.Context) error {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "ticket key is required")
	}

	var req ProcessRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid process request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if !s.runMu.TryLock() {
		return echo.NewHTTPError(http.StatusConflict, "a run is already in progress")
	}
	s.running.Store(true)
	defer func() {
		s.running.Store(false)
		s.runMu.Unlock()
	}()

	runner, err := s.newRunner(req.RepoPath)
	if err != nil {
		s.logger.Error("runner construction failed",
			zap.String("repo_path", req.RepoPath),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not prepare the run")
	}

	report := runner.Run(c.Request().Context(), key, pipeline.Options{NoPush: req.NoPush})
	return c.JSON(http.StatusOK, report)
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
