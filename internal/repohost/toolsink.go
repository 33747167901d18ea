package repohost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/integration"
	"github.com/fyrsmithlabs/autopr/internal/toolcall"
)

// toolSink publishes through bound repo-host tools. It only serves the
// remote capabilities; the working tree stays with the git backend.
type toolSink struct {
	invoker  toolcall.Invoker
	registry *toolcall.Registry
}

func (s *toolSink) createBranch(ctx context.Context, target Target, name string) error {
	binding, args, err := s.registry.Translate(config.CapabilityCreateBranch, map[string]any{
		"branch": name,
		"base":   target.BaseBranch,
		"owner":  target.Owner,
		"repo":   target.Name,
	})
	if err != nil {
		return integration.NewError(integration.KindToolUnavailable, config.CapabilityCreateBranch, "mcp", err)
	}

	if _, err := s.invoker.InvokeTool(ctx, binding.Server, binding.Tool, args); err != nil {
		if alreadyExists(err) {
			return nil
		}
		return err
	}
	return nil
}

// pushFiles replays the pending change as one remote push per file. With
// no pending change there is nothing the tool can publish, so the call
// fails as unavailable and the fallback policy routes to the git backend.
func (s *toolSink) pushFiles(ctx context.Context, target Target, branch string, files map[string]string, message string) error {
	if len(files) == 0 {
		return integration.NewError(integration.KindToolUnavailable, config.CapabilityPushFile, "mcp",
			errors.New("no pending file set to publish"))
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		binding, args, err := s.registry.Translate(config.CapabilityPushFile, map[string]any{
			"path":    p,
			"content": files[p],
			"message": message,
			"branch":  branch,
			"owner":   target.Owner,
			"repo":    target.Name,
		})
		if err != nil {
			return integration.NewError(integration.KindToolUnavailable, config.CapabilityPushFile, "mcp", err)
		}
		if _, err := s.invoker.InvokeTool(ctx, binding.Server, binding.Tool, args); err != nil {
			return fmt.Errorf("pushing %s: %w", p, err)
		}
	}
	return nil
}

func (s *toolSink) createPullRequest(ctx context.Context, target Target, pr PullRequestSpec) (string, error) {
	binding, args, err := s.registry.Translate(config.CapabilityCreatePR, map[string]any{
		"title": pr.Title,
		"body":  pr.Body,
		"head":  pr.Head,
		"base":  pr.Base,
		"owner": target.Owner,
		"repo":  target.Name,
	})
	if err != nil {
		return "", integration.NewError(integration.KindToolUnavailable, config.CapabilityCreatePR, "mcp", err)
	}

	payload, err := s.invoker.InvokeTool(ctx, binding.Server, binding.Tool, args)
	if err != nil {
		return "", err
	}
	return pullRequestURL(payload), nil
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

// pullRequestURL extracts the PR link from a tool payload: a JSON object
// carrying url or html_url, any embedded link, or the raw payload.
func pullRequestURL(payload string) string {
	var obj struct {
		URL     string `json:"url"`
		HTMLURL string `json:"html_url"`
	}
	if err := json.Unmarshal([]byte(payload), &obj); err == nil {
		if obj.HTMLURL != "" {
			return obj.HTMLURL
		}
		if obj.URL != "" {
			return obj.URL
		}
	}
	if m := urlPattern.FindString(payload); m != "" {
		return m
	}
	return strings.TrimSpace(payload)
}

// alreadyExists reports whether a tool failure is the branch already
// existing, which the contract treats as success.
func alreadyExists(err error) bool {
	var ierr *integration.Error
	if errors.As(err, &ierr) {
		if strings.Contains(strings.ToLower(ierr.Detail), "already exists") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}
