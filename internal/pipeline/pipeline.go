// Package pipeline sequences one ticket-to-pull-request run. The
// controller owns the run report and drives the state machine: fetch,
// branch, snapshot, generate, write, stage, commit, validate, then the
// quality gate that decides between publishing and skipping. Failures
// abort the run; the report is produced whatever the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/generate"
	"github.com/fyrsmithlabs/autopr/internal/integration"
	"github.com/fyrsmithlabs/autopr/internal/notify"
	"github.com/fyrsmithlabs/autopr/internal/repohost"
	"github.com/fyrsmithlabs/autopr/internal/tracker"
	"github.com/fyrsmithlabs/autopr/internal/validate"
)

const instrumentationName = "github.com/fyrsmithlabs/autopr/internal/pipeline"

// Options are the per-run knobs.
type Options struct {
	// NoPush suppresses publication even when validation passes.
	NoPush bool
}

// Dependencies holds the pipeline's collaborators.
type Dependencies struct {
	Source    tracker.Source
	Sink      repohost.Sink
	Generator generate.Generator
	Validator validate.Validator
	// Notifier may be nil; runs then carry no announcement step.
	Notifier notify.Notifier
	Logger   *zap.Logger
}

// Controller drives the run state machine. One controller serves one
// working tree; concurrent runs over the same tree must be serialized by
// the caller.
type Controller struct {
	cfg       *config.PipelineConfig
	source    tracker.Source
	sink      repohost.Sink
	generator generate.Generator
	validator validate.Validator
	notifier  notify.Notifier
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewController builds a pipeline controller.
func NewController(cfg *config.PipelineConfig, deps Dependencies) (*Controller, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Source == nil {
		return nil, errors.New("ticket source is required")
	}
	if deps.Sink == nil {
		return nil, errors.New("repo sink is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("validator is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		cfg:       cfg,
		source:    deps.Source,
		sink:      deps.Sink,
		generator: deps.Generator,
		validator: deps.Validator,
		notifier:  deps.Notifier,
		logger:    logger.Named("pipeline"),
		tracer:    otel.Tracer(instrumentationName),
	}, nil
}

// Run executes the pipeline for one ticket key and returns the finalized
// report. The report is always produced; the terminal outcome, not an
// error return, says how the run ended.
func (c *Controller) Run(ctx context.Context, key string, opts Options) *RunReport {
	key = strings.TrimSpace(key)
	report := newRunReport(key)

	ctx, span := c.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("ticket.key", key)))
	defer span.End()

	c.logger.Info("run started",
		zap.String("run_id", report.RunID),
		zap.String("ticket", key),
		zap.Bool("no_push", opts.NoPush || c.cfg.NoPush))

	c.execute(ctx, report, key, opts)

	span.SetAttributes(
		attribute.String("run.state", string(report.State)),
		attribute.String("run.outcome", string(report.Outcome)))
	return report
}

func (c *Controller) execute(ctx context.Context, report *RunReport, key string, opts Options) {
	sink := c.sink

	var ticket *tracker.Ticket
	if c.cancelled(ctx, report, StepFetching) {
		return
	}
	if !c.runStep(ctx, report, StepFetching, StateFetching, func(ctx context.Context) (string, error) {
		t, err := c.source.FetchTicket(ctx, key)
		if err != nil {
			return "", err
		}
		ticket = t
		msg := fmt.Sprintf("%s: %s", t.Key, t.Summary)
		if owner, name := tracker.LinkedRepository(t.Description); owner != "" {
			sink = sink.WithTarget(owner, name)
			msg += fmt.Sprintf(" (linked repository %s/%s)", owner, name)
			c.logger.Info("ticket names a target repository",
				zap.String("owner", owner), zap.String("repo", name))
		}
		return msg, nil
	}) {
		return
	}

	branch := BranchNameFor(ticket.Key)
	report.Branch = branch
	if c.cancelled(ctx, report, StepBranchCreated) {
		return
	}
	if !c.runStep(ctx, report, StepBranchCreated, StateBranchCreated, func(ctx context.Context) (string, error) {
		if err := sink.CreateBranch(ctx, branch); err != nil {
			return "", err
		}
		return branch, nil
	}) {
		return
	}

	var snapshot repohost.RepoSnapshot
	if c.cancelled(ctx, report, StepAnalyzed) {
		return
	}
	if !c.runStep(ctx, report, StepAnalyzed, StateAnalyzed, func(ctx context.Context) (string, error) {
		s, err := sink.Snapshot(ctx)
		if err != nil {
			return "", err
		}
		snapshot = s
		return fmt.Sprintf("%d files in tree, %d acceptance criteria",
			len(s.Entries), len(ticket.AcceptanceCriteria)), nil
	}) {
		return
	}

	var files generate.FileSet
	if c.cancelled(ctx, report, StepGenerated) {
		return
	}
	if !c.runStep(ctx, report, StepGenerated, StateGenerated, func(ctx context.Context) (string, error) {
		f, err := c.generator.Generate(ctx, ticket, snapshot)
		if err != nil {
			return "", err
		}
		if len(f) == 0 {
			return "", integration.NewError(integration.KindGenerationFailed,
				"generate.files", "", errors.New("no code was generated"))
		}
		files = f
		return fmt.Sprintf("%d files generated", len(f)), nil
	}) {
		return
	}

	if c.cancelled(ctx, report, StepWritten) {
		return
	}
	if !c.runStep(ctx, report, StepWritten, StateWritten, func(ctx context.Context) (string, error) {
		if err := sink.WriteFiles(ctx, files); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d files written", len(files)), nil
	}) {
		return
	}

	paths := sortedPaths(files)
	if c.cancelled(ctx, report, StepStaged) {
		return
	}
	if !c.runStep(ctx, report, StepStaged, StateStaged, func(ctx context.Context) (string, error) {
		if err := sink.Stage(ctx, paths); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d paths staged", len(paths)), nil
	}) {
		return
	}

	if c.cancelled(ctx, report, StepCommitted) {
		return
	}
	if !c.commit(ctx, report, sink, ticket) {
		return
	}

	if c.cancelled(ctx, report, StepValidated) {
		return
	}
	verdict := c.validateTree(ctx, report)

	if c.cancelled(ctx, report, StepPushed) {
		return
	}
	noPush := opts.NoPush || c.cfg.NoPush
	switch {
	case !verdict.Passed:
		c.skip(report, StepPushed, verdict.Reason())
		report.State = StateSkipped
		report.Message = "push skipped: " + verdict.Reason()
		c.finalize(report, StateDone, OutcomeSkipped)
	case noPush:
		c.skip(report, StepPushed, "push suppressed by caller")
		report.State = StateSkipped
		report.Message = "push suppressed by caller"
		c.finalize(report, StateDone, OutcomeSkipped)
	default:
		if !c.runStep(ctx, report, StepPushed, StatePushed, func(ctx context.Context) (string, error) {
			if err := sink.Push(ctx, branch); err != nil {
				return "", err
			}
			return "branch " + branch + " published", nil
		}) {
			return
		}
		report.Message = "branch " + branch + " published"
		c.postPublish(ctx, report, sink, ticket, branch, verdict, paths)
		c.finalize(report, StateDone, OutcomePushed)
	}
}

// runStep executes one uniform state transition: span, timing, report
// entry, metrics. Returns false when the step failed and the run aborted.
func (c *Controller) runStep(ctx context.Context, report *RunReport, step string, state State, fn func(context.Context) (string, error)) bool {
	stepCtx, span := c.tracer.Start(ctx, "pipeline."+step)
	start := time.Now()
	msg, err := fn(stepCtx)
	if err != nil {
		c.abort(report, span, step, err, start)
		return false
	}
	c.ok(report, span, step, msg, start, state)
	return true
}

// commit runs the Committed step. NothingToCommit is non-fatal when the
// branch already has history to validate; with no history at all there is
// nothing to publish and the run aborts.
func (c *Controller) commit(ctx context.Context, report *RunReport, sink repohost.Sink, ticket *tracker.Ticket) bool {
	stepCtx, span := c.tracer.Start(ctx, "pipeline."+StepCommitted)
	start := time.Now()
	id, err := sink.Commit(stepCtx, CommitMessage(ticket))
	switch {
	case err == nil:
		c.ok(report, span, StepCommitted, "commit "+shortCommit(id), start, StateCommitted)
		return true
	case integration.IsKind(err, integration.KindNothingToCommit):
		if _, headErr := sink.Head(stepCtx); headErr != nil {
			c.abort(report, span, StepCommitted,
				errors.New("nothing to commit and the branch has no commits"), start)
			return false
		}
		span.End()
		c.skip(report, StepCommitted, "nothing to commit, validating existing branch state")
		report.State = StateCommitted
		return true
	default:
		c.abort(report, span, StepCommitted, err, start)
		return false
	}
}

// validateTree runs the Validated step. The validator never raises; the
// step is recorded ok with the verdict carried in the message, and the
// gate decides what the verdict means.
func (c *Controller) validateTree(ctx context.Context, report *RunReport) validate.Verdict {
	stepCtx, span := c.tracer.Start(ctx, "pipeline."+StepValidated)
	start := time.Now()
	verdict := c.validator.Validate(stepCtx, c.cfg.RepoPath)
	span.SetAttributes(
		attribute.Bool("verdict.passed", verdict.Passed),
		attribute.String("verdict.system", string(verdict.System)))
	c.ok(report, span, StepValidated, verdict.Summary(), start, StateValidated)
	return verdict
}

// postPublish runs the non-fatal post-publish actions: pull-request
// creation and the notification. Their failures are recorded but never
// demote the run's outcome.
func (c *Controller) postPublish(ctx context.Context, report *RunReport, sink repohost.Sink, ticket *tracker.Ticket, branch string, verdict validate.Verdict, paths []string) {
	stepCtx, span := c.tracer.Start(ctx, "pipeline."+StepPullRequest)
	start := time.Now()
	prURL, err := sink.CreatePullRequest(stepCtx, pullRequestSpec(ticket, branch, verdict))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		c.fail(report, StepPullRequest, err, start)
	} else {
		report.PullRequest = prURL
		c.ok(report, span, StepPullRequest, prURL, start, "")
	}

	if c.notifier == nil {
		return
	}
	if report.PullRequest == "" {
		c.skip(report, StepNotify, "no pull request to announce")
		return
	}

	stepCtx, span = c.tracer.Start(ctx, "pipeline."+StepNotify)
	start = time.Now()
	err = c.notifier.Send(stepCtx, notify.Event{
		TicketKey:   ticket.Key,
		Summary:     ticket.Summary,
		TicketURL:   ticket.URL,
		Branch:      branch,
		PullRequest: report.PullRequest,
		Files:       paths,
		Validation:  verdict.Summary(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		c.fail(report, StepNotify, err, start)
		return
	}
	c.ok(report, span, StepNotify, "notification sent", start, "")
}

func (c *Controller) ok(report *RunReport, span trace.Span, step, message string, start time.Time, state State) {
	span.End()
	d := time.Since(start)
	report.append(step, StatusOK, message, d)
	stepsTotal.WithLabelValues(step, string(StatusOK)).Inc()
	stepDuration.WithLabelValues(step).Observe(d.Seconds())
	if state != "" {
		report.State = state
	}
	c.logger.Info("step ok",
		zap.String("step", step),
		zap.String("message", message),
		zap.Duration("duration", d))
}

// fail records a failed step without aborting the run.
func (c *Controller) fail(report *RunReport, step string, err error, start time.Time) {
	d := time.Since(start)
	detail := errDetail(err)
	report.append(step, StatusFailed, detail, d)
	stepsTotal.WithLabelValues(step, string(StatusFailed)).Inc()
	stepDuration.WithLabelValues(step).Observe(d.Seconds())
	c.logger.Error("step failed",
		zap.String("step", step),
		zap.String("kind", string(integration.KindOf(err))),
		zap.Error(err))
}

func (c *Controller) skip(report *RunReport, step, message string) {
	report.append(step, StatusSkipped, message, 0)
	stepsTotal.WithLabelValues(step, string(StatusSkipped)).Inc()
	c.logger.Warn("step skipped",
		zap.String("step", step),
		zap.String("reason", message))
}

// abort records the failure, pads the remaining core steps as skipped,
// and finalizes the run as Aborted.
func (c *Controller) abort(report *RunReport, span trace.Span, step string, err error, start time.Time) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	c.fail(report, step, err, start)
	report.Message = step + " failed: " + errDetail(err)
	report.skipAfter(step, "not reached")
	c.finalize(report, StateAborted, OutcomeAborted)
}

// cancelled checks the run's cancellation signal between states. A
// cancelled run finalizes with the Cancelled outcome, never Aborted.
func (c *Controller) cancelled(ctx context.Context, report *RunReport, next string) bool {
	if ctx.Err() == nil {
		return false
	}
	report.Message = "run cancelled before " + next
	report.skipFrom(next, "run cancelled")
	c.logger.Warn("run cancelled",
		zap.String("ticket", report.TicketKey),
		zap.String("before", next))
	c.finalize(report, StateCancelled, OutcomeCancelled)
	return true
}

func (c *Controller) finalize(report *RunReport, state State, outcome Outcome) {
	report.State = state
	report.Outcome = outcome
	report.CompletedAt = time.Now().UTC()
	runsTotal.WithLabelValues(string(outcome)).Inc()
	c.logger.Info("run finished",
		zap.String("run_id", report.RunID),
		zap.String("ticket", report.TicketKey),
		zap.String("outcome", string(outcome)),
		zap.Duration("elapsed", report.CompletedAt.Sub(report.StartedAt)))
}

func errDetail(err error) string {
	if kind := integration.KindOf(err); kind != "" {
		return string(kind) + ": " + err.Error()
	}
	return err.Error()
}

func shortCommit(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}

func sortedPaths(files generate.FileSet) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
