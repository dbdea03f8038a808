// Package reviewerr holds the typed failures of a review job. Validation
// and extraction failures end the job; reasoning and persistence failures
// are scoped to one unit.
package reviewerr

import (
	"errors"
	"fmt"
	"time"

	"github.com/AICC2024/video-review/internal/platform/apierr"
)

type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("review job: %s is required", e.Field)
}

// Is lets handlers map validation failures to 400 through apierr.
func (e *ValidationError) Is(target error) bool {
	return target == apierr.ErrInvalidArgument
}

type ExtractionError struct {
	AssetID string
	Op      string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.AssetID != "" {
		return fmt.Sprintf("extract %s (asset %s): %v", e.Op, e.AssetID, e.Err)
	}
	return fmt.Sprintf("extract %s: %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func Extraction(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExtractionError{Op: op, Err: err}
}

type ReasoningServiceError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ReasoningServiceError) Error() string {
	switch {
	case e.Err != nil && e.Reason != "":
		return fmt.Sprintf("reasoning %s: %s: %v", e.Op, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("reasoning %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("reasoning %s: %s", e.Op, e.Reason)
	}
}

func (e *ReasoningServiceError) Unwrap() error { return e.Err }

type ReasoningTimeoutError struct {
	Op       string
	Attempts int
	Interval time.Duration
}

func (e *ReasoningTimeoutError) Error() string {
	return fmt.Sprintf("reasoning %s: no result after %d polls every %s", e.Op, e.Attempts, e.Interval)
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Kind names the failure class of err for logs and metric labels.
func Kind(err error) string {
	var (
		ve *ValidationError
		ee *ExtractionError
		se *ReasoningServiceError
		te *ReasoningTimeoutError
		pe *PersistenceError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		return "reasoning_timeout"
	case errors.As(err, &se):
		return "reasoning_error"
	case errors.As(err, &pe):
		return "persistence_error"
	case errors.As(err, &ee):
		return "extraction_error"
	case errors.As(err, &ve):
		return "validation_error"
	default:
		return "error"
	}
}
