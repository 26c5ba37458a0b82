package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by the orchestrator's public operations.
var (
	// ErrNotFound is returned when a job id is unknown.
	ErrNotFound = errors.New("job not found")
	// ErrConflict is returned when a concurrent worker won the claim
	// race. The caller may retry the claim; the job itself is unharmed.
	ErrConflict = errors.New("job claim conflict")
	// ErrInvalidState is returned for a transition the state machine
	// does not permit, including retrying past the retry limit.
	ErrInvalidState = errors.New("invalid job state")
)

// InvalidRequestError rejects a submission before a job is created.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// UnsupportedFormatError is returned when no parser can handle the
// declared format and content sniffing failed to determine one.
type UnsupportedFormatError struct {
	Format Format
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format %q", e.Format)
}

// MalformedDocumentError is returned on a payload decode failure,
// carrying a location hint when the underlying syntax provides one.
type MalformedDocumentError struct {
	Location string
	Err      error
}

func (e *MalformedDocumentError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("malformed document at %s: %v", e.Location, e.Err)
	}
	return fmt.Sprintf("malformed document: %v", e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// ValidationFailedError carries the full report of a failed validation.
type ValidationFailedError struct {
	Report ValidationReport
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Report.Errors, "; "))
}

// TransformationError names the endpoint the graph builder could not
// represent. Nothing is silently dropped.
type TransformationError struct {
	Endpoint string
	Reason   string
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("cannot transform endpoint %q: %s", e.Endpoint, e.Reason)
}

// StoreFailureError wraps an I/O failure from the job or graph store.
// Always retryable up to the retry limit.
type StoreFailureError struct {
	Op  string
	Err error
}

func (e *StoreFailureError) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreFailureError) Unwrap() error { return e.Err }

// TimeoutError marks a pipeline phase that exceeded its budget.
type TimeoutError struct {
	Phase string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s phase timed out", e.Phase)
}
