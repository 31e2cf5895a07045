package application

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a preview token is unknown, expired, or
	// already consumed.
	ErrNotFound = errors.New("application: not found")
	// ErrCapacityExceeded is returned when staging another preview would
	// exceed the store's byte budget.
	ErrCapacityExceeded = errors.New("application: staging capacity exceeded")
	// ErrConflict is returned when a commit collides with existing state: a
	// duplicate period under duplicateMode=reject, an idempotency key reused
	// against a different preview, or a concurrent confirm on the same token.
	ErrConflict = errors.New("application: conflict")
	// ErrConfirmInProgress marks a confirm racing another confirm on the same
	// token. It matches ErrConflict via errors.Is for callers that only branch
	// on the broad class.
	ErrConfirmInProgress = fmt.Errorf("%w: confirm in progress", ErrConflict)
	// ErrPersistenceFailure is returned when the durable store rejected every
	// write of a commit attempt. The preview stays staged so the operation can
	// be retried.
	ErrPersistenceFailure = errors.New("application: persistence failure")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
