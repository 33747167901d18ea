// Package repohost publishes pipeline output to the source-control host.
// It exposes the repo-sink capabilities (branch, snapshot, write, stage,
// commit, push, pull request) served by a local git backend (go-git plus
// the host REST API for pull requests) or a tool invocation backend,
// combined under the per-call fallback policy.
//
// The snapshot, write, stage, and commit capabilities operate on the local
// working tree and have no tool binding; under the fallback policy they
// always land on the git backend.
package repohost

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/integration"
	"github.com/fyrsmithlabs/autopr/internal/toolcall"
)

// SnapshotEntry is one working-tree file: its repo-relative path and a
// short human-readable summary (currently the file size).
type SnapshotEntry struct {
	Path    string
	Summary string
}

// RepoSnapshot is an ordered listing of the working tree, used as
// generation context. Read-only; regenerated per run.
type RepoSnapshot struct {
	Entries   []SnapshotEntry
	Truncated bool
}

// Paths returns the entry paths in listing order.
func (s RepoSnapshot) Paths() []string {
	paths := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		paths[i] = e.Path
	}
	return paths
}

// PullRequestSpec describes one pull request to open.
type PullRequestSpec struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// Target identifies the remote repository operations publish to.
type Target struct {
	Owner      string
	Name       string
	BaseBranch string
}

// Sink is the repo-sink capability contract consumed by the pipeline.
type Sink interface {
	CreateBranch(ctx context.Context, name string) error
	Snapshot(ctx context.Context) (RepoSnapshot, error)
	WriteFiles(ctx context.Context, files map[string]string) error
	Stage(ctx context.Context, paths []string) error
	Commit(ctx context.Context, message string) (string, error)
	Head(ctx context.Context) (string, error)
	Push(ctx context.Context, branch string) error
	CreatePullRequest(ctx context.Context, pr PullRequestSpec) (string, error)

	// WithTarget returns a sink publishing to a different remote
	// repository, for tickets that name their target repo. The underlying
	// working tree and backends are shared.
	WithTarget(owner, name string) Sink
}

// Dependencies holds the collaborators a Client needs.
type Dependencies struct {
	// Invoker serves the tool backend. May be nil when no tool servers are
	// configured; the client then degrades to the git backend.
	Invoker  toolcall.Invoker
	Registry *toolcall.Registry
	Logger   *zap.Logger
}

// pendingChange carries the last written file set and commit message so
// the tool backend can replay them as per-file remote pushes. One change
// in flight at a time; runs over one client are serialized by the caller.
type pendingChange struct {
	files   map[string]string
	message string
}

// Client serves the repo-sink capabilities under the configured transport
// mode.
type Client struct {
	mode    integration.Mode
	git     *gitSink
	tool    *toolSink
	target  Target
	pending *pendingChange
	logger  *zap.Logger
}

var _ Sink = (*Client)(nil)

// NewClient builds the repo-sink client over the working tree at repoPath.
// The local repository must exist: every mode needs it for snapshots,
// writes, and commits. The tool backend is attached only when an invoker
// is supplied.
func NewClient(cfg *config.RepoHostConfig, repoPath string, deps Dependencies) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("repohost")

	mode, err := integration.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	git, err := newGitSink(cfg, repoPath, logger)
	if err != nil {
		return nil, err
	}

	c := &Client{
		mode: mode,
		git:  git,
		target: Target{
			Owner:      cfg.Owner,
			Name:       cfg.Name,
			BaseBranch: cfg.BaseBranch,
		},
		pending: &pendingChange{},
		logger:  logger,
	}
	if deps.Invoker != nil {
		c.tool = &toolSink{invoker: deps.Invoker, registry: deps.Registry}
	}
	return c, nil
}

// WithTarget implements Sink. The returned client shares the working tree,
// backends, and pending change with the receiver.
func (c *Client) WithTarget(owner, name string) Sink {
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	if owner == "" || name == "" {
		return c
	}
	clone := *c
	clone.target.Owner = owner
	clone.target.Name = name
	clone.logger = c.logger.With(zap.String("owner", owner), zap.String("repo", name))
	return &clone
}

// CreateBranch makes the branch exist, as a no-op when it already does. In
// mcp mode the tool backend creates it on the remote; the local tree is
// then positioned on the branch as well, since every later step mutates
// the local tree.
func (c *Client) CreateBranch(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("branch name is required")
	}

	var tool func(context.Context) error
	if c.tool != nil {
		tool = func(ctx context.Context) error {
			return c.tool.createBranch(ctx, c.target, name)
		}
	}
	api := func(ctx context.Context) error {
		return c.git.ensureBranch(name)
	}

	if err := integration.CallErr(ctx, c.mode, config.CapabilityCreateBranch, tool, api); err != nil {
		return err
	}
	if c.mode == integration.ModeMCP {
		if err := c.git.ensureBranch(name); err != nil {
			return err
		}
	}
	c.logger.Info("branch ready", zap.String("branch", name))
	return nil
}

// Snapshot lists the working tree.
func (c *Client) Snapshot(ctx context.Context) (RepoSnapshot, error) {
	api := func(ctx context.Context) (RepoSnapshot, error) {
		return c.git.snapshot(ctx)
	}
	return integration.Call(ctx, c.mode, "repo.snapshot", nil, api)
}

// WriteFiles applies a generated file set to the working tree. Paths are
// validated before any byte is written; a failure part-way aborts the run
// before commit.
func (c *Client) WriteFiles(ctx context.Context, files map[string]string) error {
	if len(files) == 0 {
		return errors.New("file set is empty")
	}
	api := func(ctx context.Context) error {
		return c.git.writeFiles(files)
	}
	if err := integration.CallErr(ctx, c.mode, "repo.write_files", nil, api); err != nil {
		return err
	}
	c.pending.files = files
	return nil
}

// Stage adds paths to the index. Paths missing from the tree are skipped
// with a warning.
func (c *Client) Stage(ctx context.Context, paths []string) error {
	api := func(ctx context.Context) error {
		return c.git.stage(paths)
	}
	return integration.CallErr(ctx, c.mode, "repo.stage", nil, api)
}

// Commit records the staged change and returns the commit id. A clean tree
// fails with NothingToCommit.
func (c *Client) Commit(ctx context.Context, message string) (string, error) {
	c.pending.message = message
	api := func(ctx context.Context) (string, error) {
		return c.git.commit(message)
	}
	return integration.Call(ctx, c.mode, "repo.commit", nil, api)
}

// Head returns the commit id the current branch points at. This is a local
// state probe, not a transport capability.
func (c *Client) Head(ctx context.Context) (string, error) {
	return c.git.head()
}

// Push publishes the branch. The tool backend replays the pending file set
// as per-file pushes; the git backend pushes the branch ref to origin.
func (c *Client) Push(ctx context.Context, branch string) error {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return errors.New("branch name is required")
	}

	var tool func(context.Context) error
	if c.tool != nil {
		tool = func(ctx context.Context) error {
			return c.tool.pushFiles(ctx, c.target, branch, c.pending.files, c.pending.message)
		}
	}
	api := func(ctx context.Context) error {
		return c.git.push(ctx, branch)
	}

	if err := integration.CallErr(ctx, c.mode, config.CapabilityPushFile, tool, api); err != nil {
		return err
	}
	c.logger.Info("branch published", zap.String("branch", branch))
	return nil
}

// CreatePullRequest opens a pull request and returns its URL.
func (c *Client) CreatePullRequest(ctx context.Context, pr PullRequestSpec) (string, error) {
	if pr.Base == "" {
		pr.Base = c.target.BaseBranch
	}

	var tool, api integration.Backend[string]
	if c.tool != nil {
		tool = func(ctx context.Context) (string, error) {
			return c.tool.createPullRequest(ctx, c.target, pr)
		}
	}
	api = func(ctx context.Context) (string, error) {
		return c.git.createPullRequest(ctx, c.target, pr)
	}

	url, err := integration.Call(ctx, c.mode, config.CapabilityCreatePR, tool, api)
	if err != nil {
		return "", err
	}
	c.logger.Info("pull request opened", zap.String("url", url))
	return url, nil
}
