package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunReport(t *testing.T) {
	report := newRunReport("PROJ-9")

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "PROJ-9", report.TicketKey)
	assert.Equal(t, StateFetching, report.State)
	assert.Empty(t, report.Outcome)
	assert.Empty(t, report.Steps)
	assert.False(t, report.StartedAt.IsZero())
	assert.Equal(t, time.UTC, report.StartedAt.Location())
	assert.True(t, report.CompletedAt.IsZero())
}

func TestRunReport_SkipAfterPadsRemainingSteps(t *testing.T) {
	report := newRunReport("PROJ-9")
	report.append(StepFetching, StatusFailed, "boom", time.Millisecond)
	report.skipAfter(StepFetching, "not reached")

	require.Len(t, report.Steps, len(coreSteps))
	assert.Equal(t, StatusFailed, report.Steps[0].Status)
	for i, step := range report.Steps[1:] {
		assert.Equal(t, coreSteps[i+1], step.Name)
		assert.Equal(t, StatusSkipped, step.Status)
		assert.Equal(t, "not reached", step.Message)
	}
}

func TestRunReport_SkipAfterLastStepIsNoOp(t *testing.T) {
	report := newRunReport("PROJ-9")
	report.skipAfter(StepPushed, "not reached")
	assert.Empty(t, report.Steps)
}

func TestRunReport_SkipFromIncludesNamedStep(t *testing.T) {
	report := newRunReport("PROJ-9")
	report.append(StepFetching, StatusOK, "", 0)
	report.append(StepBranchCreated, StatusOK, "", 0)
	report.skipFrom(StepAnalyzed, "run cancelled")

	require.Len(t, report.Steps, len(coreSteps))
	assert.Equal(t, StepAnalyzed, report.Steps[2].Name)
	assert.Equal(t, StatusSkipped, report.Steps[2].Status)
	assert.Equal(t, StepPushed, report.Steps[len(coreSteps)-1].Name)
}

func TestRunReport_SkipFromUnknownStepIsNoOp(t *testing.T) {
	report := newRunReport("PROJ-9")
	report.skipFrom("no_such_step", "x")
	assert.Empty(t, report.Steps)
}

func TestRunReport_StepNamed(t *testing.T) {
	report := newRunReport("PROJ-9")
	report.append(StepFetching, StatusOK, "found it", time.Second)

	step, ok := report.StepNamed(StepFetching)
	require.True(t, ok)
	assert.Equal(t, "found it", step.Message)

	_, ok = report.StepNamed(StepPushed)
	assert.False(t, ok)
}

func TestRunReport_ExitCode(t *testing.T) {
	cases := []struct {
		outcome Outcome
		want    int
	}{
		{OutcomePushed, 0},
		{OutcomeSkipped, 0},
		{OutcomeAborted, 1},
		{OutcomeCancelled, 1},
		{Outcome(""), 1},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			report := &RunReport{Outcome: tc.outcome}
			assert.Equal(t, tc.want, report.ExitCode())
		})
	}
}

func TestRunReport_JSONUsesSnakeCase(t *testing.T) {
	report := newRunReport("PROJ-9")
	report.Branch = "feature/proj-9"
	report.append(StepFetching, StatusOK, "PROJ-9: do the thing", time.Second)

	raw, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "run_id")
	assert.Contains(t, decoded, "ticket_key")
	assert.Contains(t, decoded, "started_at")
	steps, ok := decoded["steps"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 1)
	first, ok := steps[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "fetching", first["name"])
	assert.Equal(t, "ok", first["status"])
}
