package toolcall

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/autopr/internal/integration"
)

type issueInput struct {
	IssueKey string `json:"issue_key"`
}

type issueOutput struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
}

// newToolServer runs an MCP server over streamable HTTP exposing a
// jira_get_issue tool, returning the endpoint URL.
func newToolServer(t *testing.T) string {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{Name: "test-tools", Version: "1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "jira_get_issue",
		Description: "Fetch a ticket by key",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args issueInput) (*mcp.CallToolResult, issueOutput, error) {
		if args.IssueKey == "MISSING-1" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "issue not found"}},
				IsError: true,
			}, issueOutput{}, nil
		}
		out := issueOutput{Key: args.IssueKey, Summary: "add health endpoint"}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: `{"key":"` + args.IssueKey + `","summary":"add health endpoint"}`},
			},
		}, out, nil
	})

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts.URL
}

func newTestClient(t *testing.T, servers map[string]ServerConfig) *Client {
	t.Helper()

	client, err := NewClient(&Config{
		Servers:     servers,
		CallTimeout: 10 * time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewClient_RequiresConfig(t *testing.T) {
	_, err := NewClient(nil, nil)
	assert.Error(t, err)
}

func TestNewClient_RejectsEmptyServer(t *testing.T) {
	_, err := NewClient(&Config{
		Servers: map[string]ServerConfig{"jira": {}},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither command nor endpoint")
}

func TestInvokeTool_Success(t *testing.T) {
	url := newToolServer(t)
	client := newTestClient(t, map[string]ServerConfig{
		"jira": {Endpoint: url},
	})

	payload, err := client.InvokeTool(context.Background(), "jira", "jira_get_issue",
		map[string]any{"issue_key": "PROJ-123"})
	require.NoError(t, err)
	assert.Contains(t, payload, `"key":"PROJ-123"`)
	assert.Contains(t, payload, "add health endpoint")
}

func TestInvokeTool_SessionReused(t *testing.T) {
	url := newToolServer(t)
	client := newTestClient(t, map[string]ServerConfig{
		"jira": {Endpoint: url},
	})

	_, err := client.InvokeTool(context.Background(), "jira", "jira_get_issue",
		map[string]any{"issue_key": "PROJ-1"})
	require.NoError(t, err)

	client.mu.Lock()
	sessions := len(client.sessions)
	client.mu.Unlock()
	assert.Equal(t, 1, sessions)

	_, err = client.InvokeTool(context.Background(), "jira", "jira_get_issue",
		map[string]any{"issue_key": "PROJ-2"})
	require.NoError(t, err)

	client.mu.Lock()
	assert.Len(t, client.sessions, sessions)
	client.mu.Unlock()
}

func TestInvokeTool_ErrorResult(t *testing.T) {
	url := newToolServer(t)
	client := newTestClient(t, map[string]ServerConfig{
		"jira": {Endpoint: url},
	})

	_, err := client.InvokeTool(context.Background(), "jira", "jira_get_issue",
		map[string]any{"issue_key": "MISSING-1"})
	require.Error(t, err)
	assert.True(t, integration.IsKind(err, integration.KindToolError))
	assert.Contains(t, err.Error(), "issue not found")
}

func TestInvokeTool_UnknownServerIsUnavailable(t *testing.T) {
	client := newTestClient(t, map[string]ServerConfig{})

	_, err := client.InvokeTool(context.Background(), "github", "github_create_branch", nil)
	require.Error(t, err)
	assert.True(t, integration.IsKind(err, integration.KindToolUnavailable))
}

func TestInvokeTool_UnreachableEndpointIsToolError(t *testing.T) {
	client := newTestClient(t, map[string]ServerConfig{
		"jira": {Endpoint: "http://127.0.0.1:1/mcp"},
	})

	_, err := client.InvokeTool(context.Background(), "jira", "jira_get_issue",
		map[string]any{"issue_key": "PROJ-123"})
	require.Error(t, err)
	assert.True(t, integration.IsKind(err, integration.KindToolError))
}

func TestHasServer(t *testing.T) {
	client := newTestClient(t, map[string]ServerConfig{
		"jira": {Endpoint: "http://localhost:9/mcp"},
	})

	assert.True(t, client.HasServer("jira"))
	assert.False(t, client.HasServer("github"))

	var nilClient *Client
	assert.False(t, nilClient.HasServer("jira"))
}
