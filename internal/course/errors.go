package course

import "fmt"

// InvariantViolationError is fatal for the stage that produced the value:
// assembly/persistence must abort instead of committing a truncated aggregate.
type InvariantViolationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %s.%s: %s", e.Entity, e.Field, e.Reason)
}

func violation(entity, field, format string, args ...any) *InvariantViolationError {
	return &InvariantViolationError{
		Entity: entity,
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}
