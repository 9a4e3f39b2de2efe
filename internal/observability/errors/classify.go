// Package errors maps errors onto stable class names for metric tags.
package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"strings"

	"github.com/printforge/printforge/internal/faults"
)

// Classify maps an error onto a stable class name for metric tags and log
// fields. The fault taxonomy gets fixed names so dashboards survive internal
// renames; anything else falls back to the innermost concrete type.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var (
		formatErr      *faults.InvalidFormatError
		modelErr       *faults.InvalidModelError
		unavailableErr *faults.ServiceUnavailableError
		exhaustedErr   *faults.SyncExhaustedError
		processingErr  *faults.ProcessingError
	)
	switch {
	case goerrors.As(err, &formatErr):
		return "invalid_format"
	case goerrors.As(err, &modelErr):
		return "invalid_model"
	case goerrors.As(err, &unavailableErr):
		// Checked before processing: a ProcessingError wrapping an outage
		// should tag as the outage.
		return "service_unavailable"
	case goerrors.As(err, &exhaustedErr):
		return "sync_exhausted"
	case goerrors.As(err, &processingErr):
		return "processing"
	case goerrors.Is(err, faults.ErrJobNotFound):
		return "job_not_found"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}
	name := strings.ToLower(fmt.Sprintf("%T", err))
	name = strings.NewReplacer("*", "", ".", "_").Replace(name)
	if name == "" {
		return "unknown"
	}
	return name
}
