package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyPath reports a blank path, or one that resolves to the tree root.
	ErrEmptyPath = errors.New("empty path")

	// ErrAbsolutePath reports an absolute path where a repo-relative one is required.
	ErrAbsolutePath = errors.New("path must be repo-relative")

	// ErrPathTraversal reports a path that escapes the working tree.
	ErrPathTraversal = errors.New("path escapes the working tree")

	// ErrGitPath reports a path that touches the .git directory.
	ErrGitPath = errors.New("path touches the git directory")
)

// RelFilePath validates a repo-relative file path and returns it cleaned,
// with forward slashes. The path must be relative, stay inside the tree,
// and not touch the .git directory.
func RelFilePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("%w: %q", ErrAbsolutePath, path)
	}

	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(clean, "/../") {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, path)
	}
	if clean == "." {
		return "", fmt.Errorf("%w: %q resolves to the tree root", ErrEmptyPath, path)
	}
	if clean == ".git" || strings.HasPrefix(clean, ".git/") {
		return "", fmt.Errorf("%w: %q", ErrGitPath, path)
	}
	return clean, nil
}
