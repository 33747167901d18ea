package integration

import (
	"context"
	"errors"
)

// Backend is one way to serve a capability call. Implementations return
// classified errors (see Kind) so the fallback policy can tell a transport
// failure from a domain answer.
type Backend[T any] func(ctx context.Context) (T, error)

// Call runs one capability call under the integration's transport mode.
//
// In ModeAPI the API backend is called directly; a nil API backend fails
// with IntegrationUnavailable.
//
// In ModeMCP the tool backend runs first. When it fails with a
// transport-level error (ToolUnavailable, ToolError, or a deadline) and an
// API backend is configured, the same call is retried once on the API
// backend; the mode itself is never downgraded. When both backends fail
// with transport-level errors the call returns an UnavailableError listing
// each attempt. Domain errors (NotFound, GitStateError, ...) from either
// backend propagate unchanged: they are answers, not outages.
func Call[T any](ctx context.Context, mode Mode, op string, tool, api Backend[T]) (T, error) {
	var zero T

	if mode == ModeAPI {
		if api == nil {
			return zero, &UnavailableError{
				Op:       op,
				Attempts: []Attempt{{Backend: "api", Err: errors.New("api backend not configured")}},
			}
		}
		return api(ctx)
	}

	attempts := make([]Attempt, 0, 2)
	toolAttempted := false

	if tool == nil {
		attempts = append(attempts, Attempt{
			Backend: "mcp",
			Err:     NewError(KindToolUnavailable, op, "mcp", errors.New("tool backend not configured")),
		})
	} else {
		toolAttempted = true
		result, err := tool(ctx)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return zero, err
		}
		if !fallbackEligible(err) {
			return zero, err
		}
		attempts = append(attempts, Attempt{Backend: "mcp", Err: err})
	}

	if api == nil {
		attempts = append(attempts, Attempt{Backend: "api", Err: errors.New("api backend not configured")})
		if toolAttempted {
			recordFallback(op, outcomeExhausted)
		}
		return zero, &UnavailableError{Op: op, Attempts: attempts}
	}

	result, err := api(ctx)
	if err == nil {
		if toolAttempted {
			recordFallback(op, outcomeRecovered)
		}
		return result, nil
	}
	if transportLevel(err) {
		attempts = append(attempts, Attempt{Backend: "api", Err: err})
		if toolAttempted {
			recordFallback(op, outcomeExhausted)
		}
		return zero, &UnavailableError{Op: op, Attempts: attempts}
	}
	return zero, err
}

// CallErr adapts Call for capability calls that carry no result value.
func CallErr(ctx context.Context, mode Mode, op string, tool, api func(ctx context.Context) error) error {
	var toolBackend, apiBackend Backend[struct{}]
	if tool != nil {
		toolBackend = func(ctx context.Context) (struct{}, error) { return struct{}{}, tool(ctx) }
	}
	if api != nil {
		apiBackend = func(ctx context.Context) (struct{}, error) { return struct{}{}, api(ctx) }
	}
	_, err := Call(ctx, mode, op, toolBackend, apiBackend)
	return err
}

// fallbackEligible reports whether a tool-backend failure should be retried
// on the API backend. Domain answers carried over the tool transport (a
// ticket that does not exist, a dirty tree) must not trigger a retry.
func fallbackEligible(err error) bool {
	switch KindOf(err) {
	case KindToolUnavailable, KindToolError:
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// transportLevel reports whether an API-backend failure counts as the
// backend being unreachable or broken, as opposed to a domain answer.
// Unclassified errors count as transport failures so the caller still sees
// every attempt.
func transportLevel(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindGitState, KindGenerationFailed, KindValidationExecution, KindNothingToCommit:
		return false
	}
	return true
}
