package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// State is the controller's position in the run lifecycle.
type State string

const (
	StateFetching      State = "fetching"
	StateBranchCreated State = "branch_created"
	StateAnalyzed      State = "analyzed"
	StateGenerated     State = "generated"
	StateWritten       State = "written"
	StateStaged        State = "staged"
	StateCommitted     State = "committed"
	StateValidated     State = "validated"
	StatePushed        State = "pushed"
	StateSkipped       State = "skipped"
	StateDone          State = "done"
	StateAborted       State = "aborted"
	StateCancelled     State = "cancelled"
)

// Step names as they appear in the report. The core steps match the state
// names; pull_request and notify are post-publish extras.
const (
	StepFetching      = "fetching"
	StepBranchCreated = "branch_created"
	StepAnalyzed      = "analyzed"
	StepGenerated     = "generated"
	StepWritten       = "written"
	StepStaged        = "staged"
	StepCommitted     = "committed"
	StepValidated     = "validated"
	StepPushed        = "pushed"
	StepPullRequest   = "pull_request"
	StepNotify        = "notify"
)

// coreSteps is the ordered transition sequence; unattempted entries are
// recorded as skipped when a run aborts or is cancelled.
var coreSteps = []string{
	StepFetching,
	StepBranchCreated,
	StepAnalyzed,
	StepGenerated,
	StepWritten,
	StepStaged,
	StepCommitted,
	StepValidated,
	StepPushed,
}

// Status of one step.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome summarizes how a run ended.
type Outcome string

const (
	OutcomePushed    Outcome = "pushed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeAborted   Outcome = "aborted"
	OutcomeCancelled Outcome = "cancelled"
)

// StepResult records one attempted state transition.
type StepResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// RunReport is the ordered, append-only record of one pipeline run. It is
// always produced, whatever the outcome, so a reader can see exactly where
// and why a run stopped.
type RunReport struct {
	RunID       string       `json:"run_id"`
	TicketKey   string       `json:"ticket_key"`
	Branch      string       `json:"branch,omitempty"`
	State       State        `json:"state"`
	Outcome     Outcome      `json:"outcome,omitempty"`
	Message     string       `json:"message,omitempty"`
	PullRequest string       `json:"pull_request,omitempty"`
	Steps       []StepResult `json:"steps"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
}

func newRunReport(key string) *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		TicketKey: key,
		State:     StateFetching,
		StartedAt: time.Now().UTC(),
	}
}

func (r *RunReport) append(name string, status Status, message string, d time.Duration) {
	r.Steps = append(r.Steps, StepResult{
		Name:     name,
		Status:   status,
		Message:  message,
		Duration: d,
	})
}

// skipAfter appends a skipped result for every core step strictly after
// name, keeping the report complete when a run stops early.
func (r *RunReport) skipAfter(name, message string) {
	r.skipSteps(stepIndex(name)+1, message)
}

// skipFrom appends a skipped result for every core step at or after name.
func (r *RunReport) skipFrom(name, message string) {
	r.skipSteps(stepIndex(name), message)
}

func (r *RunReport) skipSteps(from int, message string) {
	if from < 0 {
		return
	}
	for _, step := range coreSteps[from:] {
		r.append(step, StatusSkipped, message, 0)
	}
}

func stepIndex(name string) int {
	for i, s := range coreSteps {
		if s == name {
			return i
		}
	}
	return -1
}

// StepNamed returns the first recorded result for a step, if any.
func (r *RunReport) StepNamed(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// ExitCode maps the outcome to a process exit code: published and gated
// runs exit zero, aborted and cancelled runs exit non-zero.
func (r *RunReport) ExitCode() int {
	switch r.Outcome {
	case OutcomePushed, OutcomeSkipped:
		return 0
	default:
		return 1
	}
}
