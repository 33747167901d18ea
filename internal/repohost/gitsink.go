package repohost

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/autopr/internal/config"
	"github.com/fyrsmithlabs/autopr/internal/integration"
	"github.com/fyrsmithlabs/autopr/internal/sanitize"
)

// skipDirs are dependency and build directories excluded from snapshots.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
}

// gitSink is the local working-tree backend: go-git for branch, stage,
// commit, and push, plus the host REST API for pull requests.
type gitSink struct {
	repo        *git.Repository
	root        string
	baseBranch  string
	authorName  string
	authorEmail string
	token       config.Secret
	timeout     time.Duration
	maxEntries  int
	github      *githubAPI
	logger      *zap.Logger
}

func newGitSink(cfg *config.RepoHostConfig, repoPath string, logger *zap.Logger) (*gitSink, error) {
	root, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving repo path: %w", err)
	}

	repo, err := git.PlainOpen(root)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, gitStateErr("repo.open", fmt.Errorf("not a git repository: %s", root))
		}
		return nil, gitStateErr("repo.open", err)
	}

	s := &gitSink{
		repo:        repo,
		root:        root,
		baseBranch:  cfg.BaseBranch,
		authorName:  cfg.AuthorName,
		authorEmail: cfg.AuthorEmail,
		token:       cfg.Token,
		timeout:     cfg.Timeout.Duration(),
		maxEntries:  cfg.SnapshotMaxEntries,
		logger:      logger,
	}
	if cfg.Token.IsSet() {
		api, err := newGitHubAPI(cfg)
		if err != nil {
			return nil, err
		}
		s.github = api
	}
	return s, nil
}

// ensureBranch checks the branch out, creating it from the base branch
// when it does not exist yet. No-op when the tree is already on it.
func (s *gitSink) ensureBranch(name string) error {
	wt, err := s.repo.Worktree()
	if err != nil {
		return gitStateErr("repo.create_branch", err)
	}

	branchRef := plumbing.NewBranchReferenceName(name)
	if _, err := s.repo.Reference(branchRef, true); err == nil {
		if head, herr := s.repo.Head(); herr == nil && head.Name() == branchRef {
			return nil
		}
		if err := wt.Checkout(&git.CheckoutOptions{Branch: branchRef}); err != nil {
			return gitStateErr("repo.create_branch", err)
		}
		s.logger.Debug("branch exists, checked out", zap.String("branch", name))
		return nil
	}

	// Branch the base when it exists locally; otherwise branch whatever
	// HEAD points at.
	if s.baseBranch != "" && s.baseBranch != name {
		baseRef := plumbing.NewBranchReferenceName(s.baseBranch)
		if _, err := s.repo.Reference(baseRef, true); err == nil {
			if head, herr := s.repo.Head(); herr != nil || head.Name() != baseRef {
				if err := wt.Checkout(&git.CheckoutOptions{Branch: baseRef}); err != nil {
					return gitStateErr("repo.create_branch", err)
				}
			}
		}
	}

	if err := wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Create: true}); err != nil {
		return gitStateErr("repo.create_branch", err)
	}
	return nil
}

// snapshot lists the working tree, skipping hidden entries and dependency
// directories, capped at maxEntries.
func (s *gitSink) snapshot(ctx context.Context) (RepoSnapshot, error) {
	var snap RepoSnapshot
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if path == s.root {
				return nil
			}
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if s.maxEntries > 0 && len(snap.Entries) >= s.maxEntries {
			snap.Truncated = true
			return fs.SkipAll
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}
		snap.Entries = append(snap.Entries, SnapshotEntry{
			Path:    filepath.ToSlash(rel),
			Summary: humanSize(size),
		})
		return nil
	})
	if err != nil {
		return RepoSnapshot{}, gitStateErr("repo.snapshot", err)
	}
	return snap, nil
}

// writeFiles applies the file set to the tree. Every path is validated
// before the first byte is written.
func (s *gitSink) writeFiles(files map[string]string) error {
	paths := make([]string, 0, len(files))
	cleaned := make(map[string]string, len(files))
	for p := range files {
		rel, err := sanitize.RelFilePath(p)
		if err != nil {
			return gitStateErr("repo.write_files", err)
		}
		cleaned[p] = rel
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		abs := filepath.Join(s.root, filepath.FromSlash(cleaned[p]))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return gitStateErr("repo.write_files", err)
		}
		if err := os.WriteFile(abs, []byte(files[p]), 0o644); err != nil {
			return gitStateErr("repo.write_files", err)
		}
		s.logger.Debug("file written", zap.String("path", cleaned[p]))
	}
	return nil
}

// stage adds paths to the index. Missing paths are skipped with a warning.
func (s *gitSink) stage(paths []string) error {
	wt, err := s.repo.Worktree()
	if err != nil {
		return gitStateErr("repo.stage", err)
	}

	for _, p := range paths {
		rel, err := sanitize.RelFilePath(p)
		if err != nil {
			return gitStateErr("repo.stage", err)
		}
		if _, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(rel))); err != nil {
			s.logger.Warn("path not staged, missing from tree", zap.String("path", rel))
			continue
		}
		if _, err := wt.Add(rel); err != nil {
			return gitStateErr("repo.stage", err)
		}
	}
	return nil
}

// commit records the staged change. A clean tree fails with
// NothingToCommit.
func (s *gitSink) commit(message string) (string, error) {
	wt, err := s.repo.Worktree()
	if err != nil {
		return "", gitStateErr("repo.commit", err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", gitStateErr("repo.commit", err)
	}
	if status.IsClean() {
		return "", integration.NewError(integration.KindNothingToCommit, "repo.commit", "api",
			errors.New("working tree is clean, nothing to commit"))
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  s.authorName,
			Email: s.authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return "", integration.NewError(integration.KindNothingToCommit, "repo.commit", "api", err)
		}
		return "", gitStateErr("repo.commit", err)
	}
	return hash.String(), nil
}

// head returns the commit id HEAD points at.
func (s *gitSink) head() (string, error) {
	ref, err := s.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", gitStateErr("repo.head", errors.New("branch has no commits"))
		}
		return "", gitStateErr("repo.head", err)
	}
	return ref.Hash().String(), nil
}

// push publishes the branch ref to origin, authenticating with the host
// token when configured. Already-up-to-date is success.
func (s *gitSink) push(ctx context.Context, branch string) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	opts := &git.PushOptions{
		RemoteName: "origin",
		RefSpecs: []gitcfg.RefSpec{
			gitcfg.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)),
		},
	}
	if s.token.IsSet() {
		opts.Auth = &githttp.BasicAuth{
			Username: "x-access-token",
			Password: s.token.Value(),
		}
	}

	err := s.repo.PushContext(ctx, opts)
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, git.ErrRemoteNotFound):
		return gitStateErr("repo.push", errors.New("remote origin is not configured"))
	default:
		return integration.NewError(integration.KindIntegrationError, "repo.push", "api",
			fmt.Errorf("pushing %s: %w", branch, err))
	}
}

// createPullRequest opens a pull request through the host REST API.
func (s *gitSink) createPullRequest(ctx context.Context, target Target, pr PullRequestSpec) (string, error) {
	if s.github == nil {
		return "", integration.NewError(integration.KindIntegrationError, "repo.create_pr", "api",
			errors.New("repo host token not configured"))
	}
	if target.Owner == "" || target.Name == "" {
		return "", integration.NewError(integration.KindIntegrationError, "repo.create_pr", "api",
			errors.New("repository owner and name must be configured"))
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.github.createPullRequest(ctx, target, pr, s.logger)
}

func gitStateErr(op string, err error) error {
	return integration.NewError(integration.KindGitState, op, "api", err)
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
