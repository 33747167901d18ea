// Package git provides small Git working-tree probes for autopr.
//
// A pipeline run mutates whatever working tree it is pointed at, so
// callers verify the tree is actually a repository, and report which
// branch a run starts from, before any ticket is fetched.
package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotGitRepo indicates the directory is not a Git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrHeadNotFound indicates the HEAD file is missing.
	ErrHeadNotFound = errors.New("HEAD file not found")
)

// DetectBranch detects the current Git branch of the working tree at
// projectPath.
//
// It parses HEAD directly instead of opening the repository, so it works
// on freshly initialized trees with no commits. Linked worktrees, where
// .git is a file holding a "gitdir:" pointer, are followed.
//
// Returns:
//   - the branch name (e.g. "main", "feature/proj-7")
//   - "detached" when HEAD holds a commit hash or is empty
//   - an error when projectPath is not a repository or HEAD is unreadable
func DetectBranch(projectPath string) (string, error) {
	gitDir, err := resolveGitDir(projectPath)
	if err != nil {
		return "", err
	}

	headFile := filepath.Join(gitDir, "HEAD")
	content, err := os.ReadFile(headFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrHeadNotFound, headFile)
		}
		return "", fmt.Errorf("reading HEAD file: %w", err)
	}

	head := strings.TrimSpace(string(content))
	if head == "" {
		return "detached", nil
	}
	if branch, ok := strings.CutPrefix(head, "ref: refs/heads/"); ok {
		return branch, nil
	}
	return "detached", nil
}

// resolveGitDir locates the git directory for a working tree, following
// the worktree indirection where .git is a file containing
// "gitdir: <path>".
func resolveGitDir(projectPath string) (string, error) {
	gitPath := filepath.Join(projectPath, ".git")
	info, err := os.Stat(gitPath)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrNotGitRepo, projectPath)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", gitPath, err)
	}
	if info.IsDir() {
		return gitPath, nil
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", gitPath, err)
	}
	target, ok := strings.CutPrefix(strings.TrimSpace(string(content)), "gitdir:")
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotGitRepo, projectPath)
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("%w: %s", ErrNotGitRepo, projectPath)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(projectPath, target)
	}
	return target, nil
}

// IsMainBranch reports whether branch is a repository default branch.
//
// Default branches are "main" or "master". A run starting from one gets
// its own feature branch; a run already on the ticket's feature branch
// reuses it.
func IsMainBranch(branch string) bool {
	return branch == "main" || branch == "master"
}
