package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/integration"
	"github.com/fyrsmithlabs/autopr/internal/toolcall"
)

// fakeInvoker returns a canned payload and records the last call.
type fakeInvoker struct {
	payload string
	err     error

	server string
	tool   string
	args   map[string]any
	calls  int
}

func (f *fakeInvoker) InvokeTool(_ context.Context, server, tool string, args map[string]any) (string, error) {
	f.calls++
	f.server = server
	f.tool = tool
	f.args = args
	if f.err != nil {
		return "", f.err
	}
	return f.payload, nil
}

func fetchRegistry() *toolcall.Registry {
	return toolcall.NewRegistry(map[string]toolcall.Binding{
		config.CapabilityFetchTicket: {
			Server: "jira",
			Tool:   "jira_get_issue",
			Args:   map[string]string{"key": "issue_key"},
		},
	})
}

func TestToolSource_FetchTranslatesCall(t *testing.T) {
	inv := &fakeInvoker{payload: `{
		"key": "PROJ-9",
		"summary": "Wire up metrics",
		"description": "Expose counters.",
		"status": {"name": "In Progress"},
		"issue_type": {"name": "Task"},
		"reporter": {"displayName": "Jane Doe"},
		"labels": ["ops"],
		"url": "https://tracker.example.com/browse/PROJ-9",
		"acceptance_criteria": ["counter increments", "endpoint scrapes"]
	}`}
	src := &toolSource{invoker: inv, registry: fetchRegistry()}

	ticket, err := src.fetch(context.Background(), "PROJ-9")
	require.NoError(t, err)

	assert.Equal(t, "jira", inv.server)
	assert.Equal(t, "jira_get_issue", inv.tool)
	assert.Equal(t, map[string]any{"issue_key": "PROJ-9"}, inv.args)

	assert.Equal(t, "PROJ-9", ticket.Key)
	assert.Equal(t, "Wire up metrics", ticket.Summary)
	assert.Equal(t, "In Progress", ticket.Status)
	assert.Equal(t, "Task", ticket.Type)
	assert.Equal(t, "Jane Doe", ticket.Reporter)
	assert.Equal(t, []string{"counter increments", "endpoint scrapes"}, ticket.AcceptanceCriteria)
}

func TestToolSource_TolerantFieldSpellings(t *testing.T) {
	inv := &fakeInvoker{payload: `{
		"issue_key": "PROJ-10",
		"title": "Alternate naming",
		"status": "Done",
		"issue_type": "Bug",
		"assignee": "jsmith",
		"self": "https://tracker.example.com/rest/api/2/issue/10"
	}`}
	src := &toolSource{invoker: inv, registry: fetchRegistry()}

	ticket, err := src.fetch(context.Background(), "PROJ-10")
	require.NoError(t, err)

	assert.Equal(t, "PROJ-10", ticket.Key)
	assert.Equal(t, "Alternate naming", ticket.Summary)
	assert.Equal(t, "Done", ticket.Status)
	assert.Equal(t, "Bug", ticket.Type)
	assert.Equal(t, "jsmith", ticket.Assignee)
	assert.Equal(t, "https://tracker.example.com/rest/api/2/issue/10", ticket.URL)
}

func TestToolSource_KeyDefaultsToRequested(t *testing.T) {
	inv := &fakeInvoker{payload: `{"summary": "No key in payload"}`}
	src := &toolSource{invoker: inv, registry: fetchRegistry()}

	ticket, err := src.fetch(context.Background(), "PROJ-11")
	require.NoError(t, err)
	assert.Equal(t, "PROJ-11", ticket.Key)
}

func TestToolSource_CriteriaFallBackToDescription(t *testing.T) {
	inv := &fakeInvoker{payload: `{
		"key": "PROJ-12",
		"description": "Intro.\n\nAcceptance Criteria:\n- works offline"
	}`}
	src := &toolSource{invoker: inv, registry: fetchRegistry()}

	ticket, err := src.fetch(context.Background(), "PROJ-12")
	require.NoError(t, err)
	assert.Equal(t, []string{"- works offline"}, ticket.AcceptanceCriteria)
}

func TestToolSource_CriteriaAsString(t *testing.T) {
	inv := &fakeInvoker{payload: `{
		"key": "PROJ-13",
		"acceptance_criteria": "Acceptance Criteria:\n- parses string form"
	}`}
	src := &toolSource{invoker: inv, registry: fetchRegistry()}

	ticket, err := src.fetch(context.Background(), "PROJ-13")
	require.NoError(t, err)
	assert.Equal(t, []string{"- parses string form"}, ticket.AcceptanceCriteria)
}

func TestToolSource_MalformedPayload(t *testing.T) {
	inv := &fakeInvoker{payload: "not json at all"}
	src := &toolSource{invoker: inv, registry: fetchRegistry()}

	_, err := src.fetch(context.Background(), "PROJ-14")
	require.Error(t, err)
	assert.Equal(t, integration.KindToolError, integration.KindOf(err))
	assert.Contains(t, err.Error(), "malformed tool payload")
}

func TestToolSource_MissingBindingIsToolUnavailable(t *testing.T) {
	src := &toolSource{
		invoker:  &fakeInvoker{},
		registry: toolcall.NewRegistry(nil),
	}

	_, err := src.fetch(context.Background(), "PROJ-15")
	require.Error(t, err)
	assert.Equal(t, integration.KindToolUnavailable, integration.KindOf(err))
}

func TestToolSource_InvokerErrorPassesThrough(t *testing.T) {
	invErr := integration.NewError(integration.KindToolError, config.CapabilityFetchTicket, "mcp",
		errors.New("server crashed"))
	src := &toolSource{
		invoker:  &fakeInvoker{err: invErr},
		registry: fetchRegistry(),
	}

	_, err := src.fetch(context.Background(), "PROJ-16")
	require.ErrorIs(t, err, invErr)
}
