package integration

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an integration failure. The pipeline controller reports
// kinds, not raw error chains, so a run report stays readable without the
// stack.
type Kind string

const (
	// KindNotFound means the requested entity does not exist (e.g. ticket key).
	KindNotFound Kind = "not_found"
	// KindIntegrationUnavailable means no reachable backend for a capability.
	KindIntegrationUnavailable Kind = "integration_unavailable"
	// KindIntegrationError means a backend was reachable but rejected the call.
	KindIntegrationError Kind = "integration_error"
	// KindToolUnavailable means the tool-invocation mechanism is not configured
	// or the named tool is not bound.
	KindToolUnavailable Kind = "tool_unavailable"
	// KindToolError means a tool invocation was attempted and failed (error
	// response, timeout, or malformed payload).
	KindToolError Kind = "tool_error"
	// KindGitState means the local repository is in an unexpected state.
	KindGitState Kind = "git_state"
	// KindGenerationFailed means the code generator could not produce a file set.
	KindGenerationFailed Kind = "generation_failed"
	// KindValidationExecution means validation tooling itself could not run,
	// distinct from the build or tests failing.
	KindValidationExecution Kind = "validation_execution"
	// KindNothingToCommit means the working tree had no staged changes.
	KindNothingToCommit Kind = "nothing_to_commit"
)

// Error is a classified failure from one backend call.
type Error struct {
	Kind    Kind
	Op      string // capability or call that failed, e.g. "ticket.fetch"
	Backend string // "api", "mcp", "git"; empty when not backend-specific
	Err     error
	Detail  string // extra context, e.g. HTTP status line
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(" failed")
	if e.Backend != "" {
		fmt.Fprintf(&b, " on %s backend", e.Backend)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err.Error())
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	return b.String()
}

// Unwrap allows errors.Is and errors.As to traverse the chain.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error.
func NewError(kind Kind, op, backend string, err error) *Error {
	return &Error{Kind: kind, Op: op, Backend: backend, Err: err}
}

// Attempt records one backend try inside an UnavailableError.
type Attempt struct {
	Backend string
	Err     error
}

// UnavailableError means every allowed backend was attempted for a capability
// and none could serve it. It carries which backends were tried and why each
// failed.
type UnavailableError struct {
	Op       string
	Attempts []Attempt
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no reachable backend for %s", e.Op)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %v", a.Backend, a.Err)
	}
	return b.String()
}

// Unwrap exposes every attempt's error for errors.Is/As.
func (e *UnavailableError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// KindOf extracts the classification from an error chain. Unclassified
// errors return the empty Kind.
func KindOf(err error) Kind {
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return KindIntegrationUnavailable
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}

// IsKind reports whether the error chain carries the given classification.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
