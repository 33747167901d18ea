package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/httpapi"
	"github.com/fyrsmithlabs/autopr/internal/logging"
	"github.com/fyrsmithlabs/autopr/pkg/git"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over HTTP",
	Long: `Serve starts an HTTP server exposing the pipeline:

  GET  /healthz                         liveness probe
  GET  /metrics                         Prometheus metrics
  GET  /api/v1/status                   version and busy state
  POST /api/v1/tickets/:key/process     run the pipeline for a ticket

Runs are serialized over the working tree; a process request that arrives
while a run is in flight is rejected with 409.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(&logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logging.Sync(logger) //nolint:errcheck

	ctx, cancel := notifyContext(cmd.Context(), logger)
	defer cancel()

	shutdownTelemetry, err := initTelemetry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	branch, err := git.DetectBranch(cfg.Pipeline.RepoPath)
	if err != nil {
		return fmt.Errorf("repo path %q: %w", cfg.Pipeline.RepoPath, err)
	}
	logger.Info("serving runs for working tree",
		zap.String("repo_path", cfg.Pipeline.RepoPath),
		zap.String("branch", branch))

	tools, closeTools, err := initToolDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer closeTools()

	shared, err := buildController(cfg, cfg.Pipeline.RepoPath, tools, logger)
	if err != nil {
		return err
	}

	// Requests without a repo_path override reuse the shared controller;
	// overrides get a fresh controller bound to the requested tree. The
	// tool client and its sessions are shared across all of them.
	factory := func(repoPath string) (httpapi.Runner, error) {
		if repoPath == "" || repoPath == cfg.Pipeline.RepoPath {
			return shared, nil
		}
		if _, err := git.DetectBranch(repoPath); err != nil {
			return nil, fmt.Errorf("repo path %q: %w", repoPath, err)
		}
		return buildController(cfg, repoPath, tools, logger)
	}

	server, err := httpapi.NewServer(&cfg.HTTP, httpapi.Dependencies{
		NewRunner: factory,
		Version:   version,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Duration())
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
