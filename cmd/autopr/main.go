// Command autopr turns issue-tracker tickets into validated pull requests.
//
// Usage:
//
//	autopr process PROJ-123                 # run the pipeline for one ticket
//	autopr process PROJ-123 --no-push      # commit and validate, keep it local
//	autopr serve                            # expose the pipeline over HTTP
//	autopr version                          # print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/generate"
	"github.com/fyrsmithlabs/autopr/internal/notify"
	"github.com/fyrsmithlabs/autopr/internal/pipeline"
	"github.com/fyrsmithlabs/autopr/internal/repohost"
	"github.com/fyrsmithlabs/autopr/internal/telemetry"
	"github.com/fyrsmithlabs/autopr/internal/toolcall"
	"github.com/fyrsmithlabs/autopr/internal/tracker"
	"github.com/fyrsmithlabs/autopr/internal/validate"
)

// Build information. Populated at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.gitCommit=$(git rev-parse HEAD) -X main.buildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// exitCode carries the process exit status out of the RunE handlers so
// deferred cleanup (logger sync, telemetry shutdown) runs before exit.
var exitCode int

var configPath string

var rootCmd = &cobra.Command{
	Use:   "autopr",
	Short: "Ticket-to-pull-request automation",
	Long: `autopr reads a ticket from the issue tracker, generates the code the
ticket asks for, validates the working tree with the project's own build
and test tooling, and publishes a branch with a pull request.

A failed build or test run keeps the commit on its branch and skips the
push so a human can pick the change up.`,
	Version:      version,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("autopr version %s\n", version)
		fmt.Printf("  git commit: %s\n", gitCommit)
		fmt.Printf("  build date: %s\n", buildDate)
		fmt.Printf("  go version: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/autopr/config.yaml)")
	rootCmd.AddCommand(processCmd, serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// notifyContext returns a context cancelled on SIGINT or SIGTERM. The
// pipeline checks for cancellation between steps, so a signalled run ends
// with a cancelled report instead of dying mid-step.
func notifyContext(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Warn("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// initTelemetry starts OTLP export when observability is enabled. The
// returned shutdown function is safe to call either way.
func initTelemetry(ctx context.Context, cfg *config.Config, logger *zap.Logger) (func(), error) {
	if !cfg.Observability.Enabled {
		return func() {}, nil
	}

	telCfg := telemetry.NewDefaultConfig()
	telCfg.Enabled = true
	telCfg.Endpoint = cfg.Observability.Endpoint
	telCfg.ServiceName = cfg.Observability.ServiceName
	telCfg.ServiceVersion = version
	telCfg.Insecure = cfg.Observability.Insecure
	telCfg.SampleRate = cfg.Observability.SampleRate
	telCfg.Protocol = cfg.Observability.Protocol
	if telCfg.Protocol == "http" {
		telCfg.Protocol = "http/protobuf"
	}

	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if tel.Degraded() {
		logger.Warn("telemetry running degraded, some exporters failed to start")
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}, nil
}

// toolDeps carries the optional tool-invocation backend shared by every
// controller this process builds.
type toolDeps struct {
	invoker  toolcall.Invoker
	registry *toolcall.Registry
}

// initToolDeps connects the MCP tool client when servers are configured.
// The returned cleanup closes any established sessions and is non-nil
// either way.
func initToolDeps(cfg *config.Config, logger *zap.Logger) (toolDeps, func(), error) {
	if len(cfg.Tools.Servers) == 0 {
		return toolDeps{}, func() {}, nil
	}

	client, err := toolcall.NewClient(toolClientConfig(&cfg.Tools), logger)
	if err != nil {
		return toolDeps{}, nil, fmt.Errorf("failed to initialize tool client: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close tool client", zap.Error(err))
		}
	}
	deps := toolDeps{
		invoker:  client,
		registry: toolcall.NewRegistry(toolBindings(cfg.Tools.Bindings)),
	}
	return deps, cleanup, nil
}

// buildController wires a pipeline controller over one working tree.
func buildController(cfg *config.Config, repoPath string, tools toolDeps, logger *zap.Logger) (*pipeline.Controller, error) {
	source, err := tracker.NewClient(&cfg.Tracker, tracker.Dependencies{
		Invoker:  tools.invoker,
		Registry: tools.registry,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracker client: %w", err)
	}

	sink, err := repohost.NewClient(&cfg.RepoHost, repoPath, repohost.Dependencies{
		Invoker:  tools.invoker,
		Registry: tools.registry,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repo host client: %w", err)
	}

	generator, err := generate.NewLLMGenerator(&cfg.Generator, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	validator, err := validate.NewBuildValidator(&cfg.Validator, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize validator: %w", err)
	}

	var notifier notify.Notifier
	if cfg.Notify.Enabled {
		mailer, err := notify.NewMailer(&cfg.Notify, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize notifier: %w", err)
		}
		notifier = mailer
	}

	pipelineCfg := cfg.Pipeline
	pipelineCfg.RepoPath = repoPath
	controller, err := pipeline.NewController(&pipelineCfg, pipeline.Dependencies{
		Source:    source,
		Sink:      sink,
		Generator: generator,
		Validator: validator,
		Notifier:  notifier,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	return controller, nil
}

// toolClientConfig converts the tools config section into the tool client's
// own config type.
func toolClientConfig(tc *config.ToolsConfig) *toolcall.Config {
	servers := make(map[string]toolcall.ServerConfig, len(tc.Servers))
	for name, sc := range tc.Servers {
		servers[name] = toolcall.ServerConfig{
			Command:  sc.Command,
			Args:     sc.Args,
			Endpoint: sc.Endpoint,
		}
	}
	return &toolcall.Config{
		Servers:     servers,
		CallTimeout: tc.CallTimeout.Duration(),
	}
}

// toolBindings converts the configured capability bindings into the
// registry's binding type.
func toolBindings(bindings map[string]config.BindingConfig) map[string]toolcall.Binding {
	converted := make(map[string]toolcall.Binding, len(bindings))
	for capability, b := range bindings {
		converted[capability] = toolcall.Binding{
			Server: b.Server,
			Tool:   b.Tool,
			Args:   b.Args,
		}
	}
	return converted
}
