package toolcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/autopr/internal/integration"
)

// ServerConfig describes how to reach one named tool server. Exactly one of
// Command (stdio subprocess) or Endpoint (streamable HTTP) must be set.
type ServerConfig struct {
	Command  string
	Args     []string
	Endpoint string
}

// Config configures the client.
type Config struct {
	Servers     map[string]ServerConfig
	CallTimeout time.Duration
}

// DefaultConfig returns defaults with no servers configured.
func DefaultConfig() *Config {
	return &Config{
		CallTimeout: 60 * time.Second,
	}
}

// Client invokes tools on configured MCP servers. Sessions are established
// lazily per server and reused across calls; a failed call drops its
// session so the next call reconnects.
type Client struct {
	cfg    *Config
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*mcp.ClientSession
}

var _ Invoker = (*Client)(nil)

// NewClient creates a tool-invocation client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for name, sc := range cfg.Servers {
		if sc.Command == "" && sc.Endpoint == "" {
			return nil, fmt.Errorf("tool server %q has neither command nor endpoint", name)
		}
	}

	return &Client{
		cfg:      cfg,
		logger:   logger.Named("toolcall"),
		sessions: make(map[string]*mcp.ClientSession),
	}, nil
}

// HasServer reports whether a named server is configured.
func (c *Client) HasServer(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.cfg.Servers[name]
	return ok
}

// InvokeTool performs one synchronous tool call. The response's text
// content is returned verbatim; structured-only responses are returned as
// JSON. Failures are classified: an unconfigured server is ToolUnavailable,
// everything past that point is ToolError.
func (c *Client) InvokeTool(ctx context.Context, server, tool string, args map[string]any) (string, error) {
	op := fmt.Sprintf("tool %s/%s", server, tool)

	if _, ok := c.cfg.Servers[server]; !ok {
		return "", integration.NewError(integration.KindToolUnavailable, op, "mcp",
			fmt.Errorf("tool server %q is not configured", server))
	}

	session, err := c.session(ctx, server)
	if err != nil {
		return "", integration.NewError(integration.KindToolError, op, "mcp",
			fmt.Errorf("connecting to tool server: %w", err))
	}

	callCtx := ctx
	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	res, err := session.CallTool(callCtx, &mcp.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		c.dropSession(server)
		return "", integration.NewError(integration.KindToolError, op, "mcp", err)
	}

	payload, err := extractPayload(res)
	if err != nil {
		return "", integration.NewError(integration.KindToolError, op, "mcp", err)
	}
	if res.IsError {
		return "", &integration.Error{
			Kind:    integration.KindToolError,
			Op:      op,
			Backend: "mcp",
			Err:     errors.New("tool returned an error result"),
			Detail:  truncate(payload, 512),
		}
	}

	c.logger.Debug("tool call completed",
		zap.String("server", server),
		zap.String("tool", tool),
		zap.Int("payload_bytes", len(payload)))

	return payload, nil
}

// Close shuts down every open session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for name, session := range c.sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing session %q: %w", name, err))
		}
		delete(c.sessions, name)
	}
	return errors.Join(errs...)
}

// session returns the cached session for a server, connecting if needed.
func (c *Client) session(ctx context.Context, server string) (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if session, ok := c.sessions[server]; ok {
		return session, nil
	}

	sc := c.cfg.Servers[server]
	transport, err := transportFor(sc)
	if err != nil {
		return nil, err
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "autopr", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, err
	}

	c.sessions[server] = session
	c.logger.Debug("tool server connected", zap.String("server", server))
	return session, nil
}

func (c *Client) dropSession(server string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if session, ok := c.sessions[server]; ok {
		_ = session.Close()
		delete(c.sessions, server)
	}
}

func transportFor(sc ServerConfig) (mcp.Transport, error) {
	switch {
	case sc.Endpoint != "":
		return &mcp.StreamableClientTransport{Endpoint: sc.Endpoint}, nil
	case sc.Command != "":
		return &mcp.CommandTransport{Command: exec.Command(sc.Command, sc.Args...)}, nil
	default:
		return nil, errors.New("tool server has neither command nor endpoint")
	}
}

// extractPayload flattens a tool result into text. Text content wins;
// structured-only results are marshaled to JSON.
func extractPayload(res *mcp.CallToolResult) (string, error) {
	var b strings.Builder
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	if b.Len() > 0 {
		return b.String(), nil
	}

	if res.StructuredContent != nil {
		raw, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return "", fmt.Errorf("malformed structured payload: %w", err)
		}
		return string(raw), nil
	}

	return "", nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
