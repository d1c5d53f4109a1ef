package generate

import (
	"fmt"
	"time"
)

// The four generation failure classes are typed and non-overlapping so the
// orchestrator can decide retry vs abort per class.

type ProviderTimeoutError struct {
	Stage    string
	Attempts int
	Cause    error
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("provider timeout (stage=%s attempts=%d): %v", e.Stage, e.Attempts, e.Cause)
}

func (e *ProviderTimeoutError) Unwrap() error { return e.Cause }

type ProviderRateLimitedError struct {
	Stage      string
	Attempts   int
	RetryAfter time.Duration
	Cause      error
}

func (e *ProviderRateLimitedError) Error() string {
	return fmt.Sprintf("provider rate limited (stage=%s attempts=%d retry_after=%s): %v",
		e.Stage, e.Attempts, e.RetryAfter, e.Cause)
}

func (e *ProviderRateLimitedError) Unwrap() error { return e.Cause }

type SchemaValidationError struct {
	Stage    string
	Attempts int
	Reason   string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed (stage=%s attempts=%d): %s", e.Stage, e.Attempts, e.Reason)
}

type ToolBudgetExceededError struct {
	Stage  string
	Tool   string
	Calls  int
	Budget int
}

func (e *ToolBudgetExceededError) Error() string {
	return fmt.Sprintf("tool budget exceeded (stage=%s tool=%s calls=%d budget=%d)",
		e.Stage, e.Tool, e.Calls, e.Budget)
}
