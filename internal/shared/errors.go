package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input rejected before any persistence call.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence marks a failing store call.
	ErrPersistence = errors.New("persistence failed")
	// ErrConflict indicates a unique constraint violation (document number, entity code).
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition indicates a status change outside the allowed graph.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyConverted indicates the source document already produced its target.
	ErrAlreadyConverted = errors.New("document already converted")
	// ErrStatusDerived indicates a direct edit of a status computed from payments.
	ErrStatusDerived = errors.New("status is derived from payments")
	// ErrPipelineBusy indicates another conversion of the same source is in flight.
	ErrPipelineBusy = errors.New("pipeline already running for source")
	// ErrLocked indicates the record can no longer be edited or deleted in its status.
	ErrLocked = errors.New("record locked by status")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Is reports ErrValidation membership.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// PersistenceError wraps a failing store call.
type PersistenceError struct {
	Op         string
	Collection string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is reports ErrPersistence membership.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Persistence wraps err unless it already carries persistence context.
func Persistence(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return err
	}
	return &PersistenceError{Op: op, Collection: collection, Err: err}
}

// NotFoundError reports a missing record.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Collection, e.ID)
}

// Is reports ErrNotFound membership.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CompletedStep records a pipeline step that already persisted.
type CompletedStep struct {
	Step     string `json:"step"`
	RecordID string `json:"recordId,omitempty"`
}

// StepError reports a pipeline stopped part way. Completed steps are not rolled back.
type StepError struct {
	Pipeline  string
	Step      string
	Completed []CompletedStep
	Err       error
}

func (e *StepError) Error() string {
	done := make([]string, 0, len(e.Completed))
	for _, c := range e.Completed {
		done = append(done, c.Step)
	}
	return fmt.Sprintf("%s: step %s failed after [%s]: %v", e.Pipeline, e.Step, strings.Join(done, ", "), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
