// Package faults defines the error taxonomy shared by the preparation
// pipeline and the job synchronizer. Callers classify failures with
// errors.As against these types rather than matching message strings.
package faults

import (
	"errors"
	"fmt"
)

// InvalidFormatError indicates unparseable input. Fatal, no retry.
type InvalidFormatError struct {
	Format string
	Reason string
}

func (e *InvalidFormatError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("invalid format: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s input: %s", e.Format, e.Reason)
}

// InvalidModelError indicates a structurally valid file whose geometry is
// unprintable. Carries the 1:1 paired errors and repair suggestions from
// validation so callers can render actionable guidance.
type InvalidModelError struct {
	Reason            string
	Errors            []string
	RepairSuggestions []string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("unprintable model: %s", e.Reason)
}

// ProcessingError indicates an unexpected internal failure during parsing or
// encoding. The underlying cause is preserved for the chain.
type ProcessingError struct {
	Op    string
	Cause error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed during %s: %v", e.Op, e.Cause)
}

func (e *ProcessingError) Unwrap() error { return e.Cause }

// ServiceUnavailableError indicates the external print-control service or a
// webhook endpoint could not be reached. Retryable with backoff.
type ServiceUnavailableError struct {
	Service string
	Cause   error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Cause)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Cause }

// SyncExhaustedError indicates the synchronizer gave up on a job after the
// configured retry budget. Terminal; the job is forced to failed.
type SyncExhaustedError struct {
	JobID    string
	Attempts int
	Last     error
}

func (e *SyncExhaustedError) Error() string {
	return fmt.Sprintf("status sync for job %s gave up after %d attempts: %v", e.JobID, e.Attempts, e.Last)
}

func (e *SyncExhaustedError) Unwrap() error { return e.Last }

// ErrJobNotFound is returned when a job id resolves to no persisted record.
var ErrJobNotFound = errors.New("job not found")

// IsRetryable reports whether the error class permits another attempt.
func IsRetryable(err error) bool {
	var su *ServiceUnavailableError
	return errors.As(err, &su)
}
