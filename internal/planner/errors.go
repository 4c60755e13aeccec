package planner

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSelection: the user's selection cannot be planned, e.g. periods
	// are checked but no boundary is resolved.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrPrecondition: a planning or session call was made out of sequence.
	ErrPrecondition = errors.New("precondition failed")
	// ErrCollaborator: the zonal engine failed; the planning call is aborted.
	ErrCollaborator = errors.New("collaborator failed")
)

// SelectionError carries the operation and reason behind one of the
// sentinels above.
type SelectionError struct {
	Op     string
	Reason string
	Err    error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Err, e.Reason)
}

func (e *SelectionError) Unwrap() error { return e.Err }

func invalid(op, format string, args ...any) error {
	return &SelectionError{Op: op, Reason: fmt.Sprintf(format, args...), Err: ErrInvalidSelection}
}

func precondition(op, format string, args ...any) error {
	return &SelectionError{Op: op, Reason: fmt.Sprintf(format, args...), Err: ErrPrecondition}
}
