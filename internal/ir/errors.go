package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation tags every error that makes a declaration set unusable
// before any external call has been made. Callers match with errors.Is.
var ErrValidation = errors.New("validation error")

// ErrPlanning indicates an internal invariant violation in the planner.
// It should be impossible to hit after validation passes.
var ErrPlanning = errors.New("planning error")

// CycleError reports a dependency cycle among the named resources.
type CycleError struct {
	Involved []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle involving: %s", strings.Join(e.Involved, ", "))
}

func (e *CycleError) Unwrap() error { return ErrValidation }

// DanglingReferenceError reports an edge to an undeclared resource.
type DanglingReferenceError struct {
	ResourceID string
	Target     string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("resource %q references undeclared resource %q", e.ResourceID, e.Target)
}

func (e *DanglingReferenceError) Unwrap() error { return ErrValidation }

// TransientAPIError wraps a cloud API failure worth retrying, such as
// throttling or a timeout.
type TransientAPIError struct {
	Err error
}

func (e *TransientAPIError) Error() string {
	return fmt.Sprintf("transient API error: %v", e.Err)
}

func (e *TransientAPIError) Unwrap() error { return e.Err }

// PermanentAPIError wraps a cloud API failure that retrying cannot fix,
// such as a bad request or a permission denial. It fails the resource and
// its dependent subtree while independent branches continue.
type PermanentAPIError struct {
	Err error
}

func (e *PermanentAPIError) Error() string {
	return fmt.Sprintf("permanent API error: %v", e.Err)
}

func (e *PermanentAPIError) Unwrap() error { return e.Err }

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	var t *TransientAPIError
	return errors.As(err, &t)
}
