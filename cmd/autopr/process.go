package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/logging"
	"github.com/fyrsmithlabs/autopr/internal/pipeline"
	"github.com/fyrsmithlabs/autopr/internal/report"
	"github.com/fyrsmithlabs/autopr/pkg/git"
)

var (
	processNoPush   bool
	processRepoPath string
	processJSON     bool
)

var processCmd = &cobra.Command{
	Use:   "process <ticket-key>",
	Short: "Run the pipeline for one ticket",
	Long: `Process fetches the ticket, generates code for its acceptance criteria,
validates the working tree, and publishes a branch with a pull request.

The run report is printed to stdout; logs go to stderr. Exit status is 0
when the run completed (pushed, or the push was deliberately skipped) and
1 when it aborted or was cancelled.

Examples:
  autopr process PROJ-123
  autopr process PROJ-123 --no-push
  autopr process PROJ-123 --repo-path /srv/checkouts/payments --json`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().BoolVar(&processNoPush, "no-push", false, "commit and validate but do not push or open a pull request")
	processCmd.Flags().StringVar(&processRepoPath, "repo-path", "", "working tree to operate on (default from config)")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "print the run report as JSON")
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if processRepoPath != "" {
		cfg.Pipeline.RepoPath = processRepoPath
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

	// The run mutates this tree, so probe it before any ticket is fetched.
	branch, err := git.DetectBranch(cfg.Pipeline.RepoPath)
	if err != nil {
		return fmt.Errorf("repo path %q: %w", cfg.Pipeline.RepoPath, err)
	}
	logger.Info("working tree ready",
		zap.String("repo_path", cfg.Pipeline.RepoPath),
		zap.String("branch", branch),
		zap.Bool("default_branch", git.IsMainBranch(branch)))

	tools, closeTools, err := initToolDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer closeTools()

	controller, err := buildController(cfg, cfg.Pipeline.RepoPath, tools, logger)
	if err != nil {
		return err
	}

	rep := controller.Run(ctx, args[0], pipeline.Options{NoPush: processNoPush})

	if processJSON {
		if err := report.RenderJSON(os.Stdout, rep); err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
	} else {
		report.Render(os.Stdout, rep)
	}

	exitCode = rep.ExitCode()
	return nil
}
