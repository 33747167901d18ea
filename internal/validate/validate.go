// Package validate runs the build/test quality gate over a working tree.
// A fixed-priority probe over marker files picks the build system, the
// system's build and test commands run as isolated steps, and the outcome
// is always a Verdict. Nothing in this package returns an execution error
// to the caller; broken tooling is a failed verdict, not a crash.
package validate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/autopr/internal/config"
)

// System identifies the detected build tooling.
type System string

const (
	SystemPython System = "python"
	SystemNode   System = "node"
	SystemJava   System = "java"
	SystemCustom System = "custom"
	SystemNone   System = "none"
)

// Verdict is the immutable outcome of one validation run.
type Verdict struct {
	Passed      bool
	BuildPassed bool
	TestsPassed bool
	System      System
	BuildOutput string
	TestOutput  string
	// Skipped is set when no build system was detected and the verdict
	// passed vacuously.
	Skipped bool
}

// Reason names the failing step, empty when the verdict passed.
func (v Verdict) Reason() string {
	switch {
	case v.Passed:
		return ""
	case !v.BuildPassed:
		return "build failed"
	default:
		return "tests failed"
	}
}

// Summary renders the verdict as a single line for reports and PR bodies.
func (v Verdict) Summary() string {
	switch {
	case v.Skipped:
		return "no build system detected, validation skipped"
	case v.Passed:
		return fmt.Sprintf("%s build and tests passed", v.System)
	default:
		return fmt.Sprintf("%s %s", v.System, v.Reason())
	}
}

// Validator produces a verdict for a working tree.
type Validator interface {
	Validate(ctx context.Context, root string) Verdict
}

// BuildValidator probes for build tooling and executes it.
type BuildValidator struct {
	stepTimeout time.Duration
	maxOutput   int
	logger      *zap.Logger
}

var _ Validator = (*BuildValidator)(nil)

// NewBuildValidator builds a validator from config.
func NewBuildValidator(cfg *config.ValidatorConfig, logger *zap.Logger) (*BuildValidator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.StepTimeout.Duration()
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	maxKB := cfg.MaxOutputKB
	if maxKB <= 0 {
		maxKB = 64
	}

	return &BuildValidator{
		stepTimeout: timeout,
		maxOutput:   maxKB * 1024,
		logger:      logger.Named("validate"),
	}, nil
}

// Validate probes the tree, runs the build step then the test step, and
// reports the combined verdict. A failing build short-circuits the test
// step since its result would be meaningless.
func (v *BuildValidator) Validate(ctx context.Context, root string) Verdict {
	system := DetectSystem(root)
	if system == SystemNone {
		v.logger.Info("no build system detected, skipping validation",
			zap.String("root", root))
		return Verdict{
			Passed:      true,
			BuildPassed: true,
			TestsPassed: true,
			System:      SystemNone,
			Skipped:     true,
		}
	}

	plan := commandPlan(root, system)
	v.logger.Info("build system detected",
		zap.String("system", string(system)),
		zap.String("root", root))

	verdict := Verdict{System: system}
	verdict.BuildPassed, verdict.BuildOutput = v.runSteps(ctx, root, plan.build)
	if !verdict.BuildPassed {
		v.logger.Warn("build step failed", zap.String("system", string(system)))
		return verdict
	}

	verdict.TestsPassed, verdict.TestOutput = v.runSteps(ctx, root, plan.test)
	verdict.Passed = verdict.BuildPassed && verdict.TestsPassed
	if !verdict.TestsPassed {
		v.logger.Warn("test step failed", zap.String("system", string(system)))
	}
	return verdict
}

// runSteps executes the commands of one step in order, concatenating
// output. An empty command list means the step is not defined for the
// detected system and passes.
func (v *BuildValidator) runSteps(ctx context.Context, root string, cmds [][]string) (bool, string) {
	if len(cmds) == 0 {
		return true, ""
	}
	var output string
	for _, argv := range cmds {
		ok, out := v.runCommand(ctx, root, argv)
		if output != "" && out != "" {
			output += "\n"
		}
		output += out
		if !ok {
			return false, output
		}
	}
	return true, output
}
