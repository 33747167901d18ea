// Package config provides configuration loading for autopr.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. This package covers the tracker and repo-host integrations,
// the code generator, the build validator, tool-invocation bindings, and
// the ambient logging/observability/notification settings.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Mode names for the per-integration transport selection.
const (
	ModeAPI = "api"
	ModeMCP = "mcp"
)

// Capability names used as keys into the tool-binding table.
const (
	CapabilityFetchTicket  = "ticket.fetch"
	CapabilityCreateBranch = "repo.create_branch"
	CapabilityPushFile     = "repo.push_file"
	CapabilityCreatePR     = "repo.create_pr"
)

// Config holds the complete autopr configuration.
type Config struct {
	Tracker       TrackerConfig       `koanf:"tracker"`
	RepoHost      RepoHostConfig      `koanf:"repohost"`
	Generator     GeneratorConfig     `koanf:"generator"`
	Validator     ValidatorConfig     `koanf:"validator"`
	Pipeline      PipelineConfig      `koanf:"pipeline"`
	Tools         ToolsConfig         `koanf:"tools"`
	HTTP          HTTPConfig          `koanf:"http"`
	Notify        NotifyConfig        `koanf:"notify"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// TrackerConfig holds the issue-tracker integration settings.
type TrackerConfig struct {
	Mode     string   `koanf:"mode"` // "api" or "mcp"
	BaseURL  string   `koanf:"base_url"`
	Email    string   `koanf:"email"`
	APIToken Secret   `koanf:"api_token"`
	Timeout  Duration `koanf:"timeout"`
}

// HasAPICredentials reports whether the direct-API backend is usable.
func (c TrackerConfig) HasAPICredentials() bool {
	return c.BaseURL != "" && c.Email != "" && c.APIToken.IsSet()
}

// RepoHostConfig holds the source-control host integration settings.
type RepoHostConfig struct {
	Mode       string `koanf:"mode"` // "api" or "mcp"
	Owner      string `koanf:"owner"`
	Name       string `koanf:"name"`
	BaseBranch string `koanf:"base_branch"`
	Token      Secret `koanf:"token"`
	// APIBaseURL overrides the REST endpoint, for GitHub Enterprise hosts.
	APIBaseURL         string   `koanf:"api_base_url"`
	AuthorName         string   `koanf:"author_name"`
	AuthorEmail        string   `koanf:"author_email"`
	SnapshotMaxEntries int      `koanf:"snapshot_max_entries"`
	Timeout            Duration `koanf:"timeout"`
}

// GeneratorConfig holds the code-generation model settings.
type GeneratorConfig struct {
	BaseURL           string   `koanf:"base_url"`
	Model             string   `koanf:"model"`
	APIKey            Secret   `koanf:"api_key"`
	Temperature       float64  `koanf:"temperature"`
	MaxTokens         int      `koanf:"max_tokens"`
	RequestsPerMinute int      `koanf:"requests_per_minute"`
	Timeout           Duration `koanf:"timeout"`
}

// ValidatorConfig holds build/test execution settings.
type ValidatorConfig struct {
	StepTimeout Duration `koanf:"step_timeout"`
	MaxOutputKB int      `koanf:"max_output_kb"`
}

// PipelineConfig holds controller-level settings.
type PipelineConfig struct {
	RepoPath string `koanf:"repo_path"`
	NoPush   bool   `koanf:"no_push"`
}

// ToolsConfig holds the tool-invocation (MCP) transport settings: the
// reachable servers and the capability-to-tool binding table.
type ToolsConfig struct {
	Servers     map[string]ToolServerConfig `koanf:"servers"`
	Bindings    map[string]BindingConfig    `koanf:"bindings"`
	CallTimeout Duration                    `koanf:"call_timeout"`
}

// ToolServerConfig describes how to reach one named tool server. Exactly one
// of Command (stdio transport) or Endpoint (streamable HTTP) should be set.
type ToolServerConfig struct {
	Command  string   `koanf:"command"`
	Args     []string `koanf:"args"`
	Endpoint string   `koanf:"endpoint"`
}

// BindingConfig maps one capability to a named tool on a named server.
// Args maps the capability's logical argument names to the wire names the
// remote tool expects, so operators can rebind to differently-named tools
// without code changes.
type BindingConfig struct {
	Server string            `koanf:"server"`
	Tool   string            `koanf:"tool"`
	Args   map[string]string `koanf:"args"`
}

// HTTPConfig holds the HTTP trigger surface settings.
type HTTPConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// NotifyConfig holds SMTP notification settings. Notification is disabled
// unless Enabled is set and the SMTP host is configured.
type NotifyConfig struct {
	Enabled  bool     `koanf:"enabled"`
	SMTPHost string   `koanf:"smtp_host"`
	SMTPPort int      `koanf:"smtp_port"`
	Username string   `koanf:"username"`
	Password Secret   `koanf:"password"`
	From     string   `koanf:"from"`
	To       []string `koanf:"to"`
}

// LoggingConfig holds logger construction settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // console or json
}

// ObservabilityConfig holds OpenTelemetry export settings.
type ObservabilityConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ServiceName string  `koanf:"service_name"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"` // grpc or http
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Tracker.Mode == "" {
		cfg.Tracker.Mode = ModeAPI
	}
	if cfg.Tracker.Timeout == 0 {
		cfg.Tracker.Timeout = Duration(30 * time.Second)
	}

	if cfg.RepoHost.Mode == "" {
		cfg.RepoHost.Mode = ModeAPI
	}
	if cfg.RepoHost.BaseBranch == "" {
		cfg.RepoHost.BaseBranch = "main"
	}
	if cfg.RepoHost.AuthorName == "" {
		cfg.RepoHost.AuthorName = "AutoPR Bot"
	}
	if cfg.RepoHost.AuthorEmail == "" {
		cfg.RepoHost.AuthorEmail = "autopr@localhost"
	}
	if cfg.RepoHost.SnapshotMaxEntries == 0 {
		cfg.RepoHost.SnapshotMaxEntries = 200
	}
	if cfg.RepoHost.Timeout == 0 {
		cfg.RepoHost.Timeout = Duration(60 * time.Second)
	}

	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "gpt-4"
	}
	if cfg.Generator.Temperature == 0 {
		cfg.Generator.Temperature = 0.1
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 4096
	}
	if cfg.Generator.RequestsPerMinute == 0 {
		cfg.Generator.RequestsPerMinute = 20
	}
	if cfg.Generator.Timeout == 0 {
		cfg.Generator.Timeout = Duration(2 * time.Minute)
	}

	if cfg.Validator.StepTimeout == 0 {
		cfg.Validator.StepTimeout = Duration(5 * time.Minute)
	}
	if cfg.Validator.MaxOutputKB == 0 {
		cfg.Validator.MaxOutputKB = 64
	}

	if cfg.Pipeline.RepoPath == "" {
		cfg.Pipeline.RepoPath = "."
	}

	if cfg.Tools.CallTimeout == 0 {
		cfg.Tools.CallTimeout = Duration(60 * time.Second)
	}
	if cfg.Tools.Bindings == nil {
		cfg.Tools.Bindings = DefaultBindings()
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "127.0.0.1"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8000
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Notify.SMTPPort == 0 {
		cfg.Notify.SMTPPort = 587
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "autopr"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}
}

// DefaultBindings returns the standard capability-to-tool binding table.
// Tool and argument names match the conventional Jira and GitHub MCP servers;
// operators override them in the tools.bindings config section.
func DefaultBindings() map[string]BindingConfig {
	return map[string]BindingConfig{
		CapabilityFetchTicket: {
			Server: "jira",
			Tool:   "jira_get_issue",
			Args:   map[string]string{"key": "issue_key"},
		},
		CapabilityCreateBranch: {
			Server: "github",
			Tool:   "github_create_branch",
			Args: map[string]string{
				"branch": "branch_name",
				"base":   "base_branch",
				"owner":  "owner",
				"repo":   "repo",
			},
		},
		CapabilityPushFile: {
			Server: "github",
			Tool:   "github_push_file",
			Args: map[string]string{
				"path":    "path",
				"content": "content",
				"message": "message",
				"branch":  "branch",
				"owner":   "owner",
				"repo":    "repo",
			},
		},
		CapabilityCreatePR: {
			Server: "github",
			Tool:   "github_create_pr",
			Args: map[string]string{
				"title": "title",
				"body":  "body",
				"head":  "head_branch",
				"base":  "base_branch",
				"owner": "owner",
				"repo":  "repo",
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Tracker.Mode != ModeAPI && c.Tracker.Mode != ModeMCP {
		return fmt.Errorf("invalid tracker mode: %q (must be %q or %q)", c.Tracker.Mode, ModeAPI, ModeMCP)
	}
	if c.RepoHost.Mode != ModeAPI && c.RepoHost.Mode != ModeMCP {
		return fmt.Errorf("invalid repohost mode: %q (must be %q or %q)", c.RepoHost.Mode, ModeAPI, ModeMCP)
	}

	if c.Tracker.Mode == ModeAPI && !c.Tracker.HasAPICredentials() {
		return errors.New("tracker api mode requires base_url, email, and api_token")
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port: %d (must be 1-65535)", c.HTTP.Port)
	}
	if c.HTTP.ShutdownTimeout.Duration() <= 0 {
		return errors.New("http shutdown timeout must be positive")
	}

	if c.Validator.StepTimeout.Duration() <= 0 {
		return errors.New("validator step timeout must be positive")
	}

	for capability, b := range c.Tools.Bindings {
		if b.Tool == "" {
			return fmt.Errorf("tool binding for %q has no tool name", capability)
		}
		if b.Server == "" {
			return fmt.Errorf("tool binding for %q has no server name", capability)
		}
	}

	if c.Notify.Enabled {
		if c.Notify.SMTPHost == "" {
			return errors.New("notify enabled but smtp_host is empty")
		}
		if c.Notify.From == "" || len(c.Notify.To) == 0 {
			return errors.New("notify enabled but from/to addresses are missing")
		}
	}

	if c.Observability.Enabled && c.Observability.Endpoint == "" {
		return errors.New("observability enabled but endpoint is empty")
	}

	return nil
}
