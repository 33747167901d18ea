package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/autopr/internal/pipeline"
)

func sampleReport() *pipeline.RunReport {
	return &pipeline.RunReport{
		RunID:       "8a2f6c0e-5a7d-4f67-9d3e-1c2b3a4d5e6f",
		TicketKey:   "PROJ-7",
		Branch:      "feature/proj-7",
		State:       pipeline.StateDone,
		Outcome:     pipeline.OutcomePushed,
		Message:     "branch feature/proj-7 published",
		PullRequest: "https://github.example.com/acme/app/pull/12",
		Steps: []pipeline.StepResult{
			{Name: pipeline.StepFetching, Status: pipeline.StatusOK, Message: "PROJ-7: Add health endpoint", Duration: 420 * time.Millisecond},
			{Name: pipeline.StepBranchCreated, Status: pipeline.StatusOK, Message: "feature/proj-7", Duration: 12 * time.Millisecond},
			{Name: pipeline.StepPushed, Status: pipeline.StatusSkipped, Message: "tests failed"},
		},
		StartedAt:   time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2025, 6, 1, 10, 0, 12, 0, time.UTC),
	}
}

func TestRender(t *testing.T) {
	var buf strings.Builder
	Render(&buf, sampleReport())
	out := buf.String()

	assert.Contains(t, out, "Ticket:  PROJ-7")
	assert.Contains(t, out, "Branch:  feature/proj-7")
	assert.Contains(t, out, "PR:      https://github.example.com/acme/app/pull/12")

	assert.Contains(t, out, "STEP")
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "fetching")
	assert.Contains(t, out, "420ms")
	assert.Contains(t, out, "tests failed")

	assert.Contains(t, out, "Outcome: pushed (branch feature/proj-7 published) in 12s")
}

func TestRender_MinimalReport(t *testing.T) {
	var buf strings.Builder
	Render(&buf, &pipeline.RunReport{
		RunID:     "run-1",
		TicketKey: "PROJ-9",
		State:     pipeline.StateCancelled,
		Outcome:   pipeline.OutcomeCancelled,
		Message:   "run cancelled before fetching",
	})
	out := buf.String()

	assert.NotContains(t, out, "Branch:")
	assert.NotContains(t, out, "PR:")
	assert.Contains(t, out, "Outcome: cancelled (run cancelled before fetching)")
	// No completion time recorded, so no elapsed suffix.
	assert.NotContains(t, out, ") in ")
}

func TestRender_ZeroDurationShowsDash(t *testing.T) {
	var buf strings.Builder
	Render(&buf, sampleReport())
	lines := strings.Split(buf.String(), "\n")

	var pushedLine string
	for _, line := range lines {
		if strings.Contains(line, "pushed") && strings.Contains(line, "skipped") {
			pushedLine = line
			break
		}
	}
	require.NotEmpty(t, pushedLine)
	assert.Contains(t, pushedLine, "-")
}

func TestRenderJSON(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, RenderJSON(&buf, sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &decoded))
	assert.Equal(t, "PROJ-7", decoded["ticket_key"])
	assert.Equal(t, "pushed", decoded["outcome"])
	steps, ok := decoded["steps"].([]any)
	require.True(t, ok)
	assert.Len(t, steps, 3)
}
