// Package integration defines the transport plumbing shared by the ticket
// source and the repo sink: the transport mode, the classified error
// taxonomy, and the per-call fallback policy between the tool-invocation
// backend and the direct-API backend.
package integration

import "fmt"

// Mode selects the backend family for one external integration. It is
// resolved once at client construction and never changes mid-run.
type Mode string

const (
	// ModeAPI calls the service's documented endpoint directly.
	ModeAPI Mode = "api"
	// ModeMCP translates capability calls into named tool invocations,
	// falling back to the API backend per call when the tool path fails.
	ModeMCP Mode = "mcp"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAPI:
		return ModeAPI, nil
	case ModeMCP:
		return ModeMCP, nil
	default:
		return "", fmt.Errorf("unknown transport mode: %q", s)
	}
}
