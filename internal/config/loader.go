package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// envPrefix scopes structured overrides, e.g. AUTOPR_TRACKER_MODE.
	envPrefix = "AUTOPR_"
)

// Load loads configuration from a YAML file, then overrides with environment
// variables.
//
// Configuration precedence (highest to lowest):
//  1. Well-known integration variables (JIRA_API_TOKEN, GITHUB_TOKEN, ...)
//  2. AUTOPR_-prefixed environment variables (AUTOPR_TRACKER_MODE, ...)
//  3. YAML config file
//  4. Defaults
//
// If configPath is empty the default path ~/.config/autopr/config.yaml is
// used when it exists; an explicitly named file must exist.
func Load(configPath string) (*Config, error) {
	explicit := configPath != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "autopr", "config.yaml")
	}

	k := koanf.New(".")
	if err := loadFile(k, configPath, explicit); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyIntegrationEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadFile layers the YAML file onto k. A missing file is an error only
// when the operator named it explicitly. Secrets live in this file, so it
// must be private (0600 or 0400) and is capped at 1MB.
func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	// Open first and check through the descriptor to avoid a TOCTOU race.
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	// Windows has no unix permission bits worth checking.
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0600 && perm != 0400 {
			return fmt.Errorf("config file validation failed: insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file validation failed: config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return nil
}

// envToKey maps AUTOPR_TRACKER_BASE_URL to tracker.base_url: the first
// underscore after the prefix splits section from field, the rest stays.
func envToKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, field, found := strings.Cut(lower, "_")
	if !found {
		return lower
	}
	return section + "." + field
}

// applyIntegrationEnv maps the well-known integration environment variables
// onto config fields. These are the names the Jira/GitHub/OpenAI ecosystems
// already use, so operators can reuse existing credentials without writing
// a config file. They win over both the file and the prefixed variables.
func applyIntegrationEnv(cfg *Config) {
	if v := os.Getenv("JIRA_SERVER"); v != "" {
		cfg.Tracker.BaseURL = v
	}
	if v := os.Getenv("JIRA_EMAIL"); v != "" {
		cfg.Tracker.Email = v
	}
	if v := os.Getenv("JIRA_API_TOKEN"); v != "" {
		cfg.Tracker.APIToken = Secret(v)
	}
	if envBool("USE_MCP_JIRA") {
		cfg.Tracker.Mode = ModeMCP
	}

	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.RepoHost.Token = Secret(v)
	}
	if v := os.Getenv("GITHUB_REPO_OWNER"); v != "" {
		cfg.RepoHost.Owner = v
	}
	if v := os.Getenv("GITHUB_REPO_NAME"); v != "" {
		cfg.RepoHost.Name = v
	}
	if envBool("USE_MCP_GITHUB") {
		cfg.RepoHost.Mode = ModeMCP
	}

	if v := os.Getenv("GIT_USER_NAME"); v != "" {
		cfg.RepoHost.AuthorName = v
	}
	if v := os.Getenv("GIT_USER_EMAIL"); v != "" {
		cfg.RepoHost.AuthorEmail = v
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Generator.APIKey = Secret(v)
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Generator.BaseURL = v
	}
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
