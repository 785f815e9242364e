package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned by no-wait submissions when the category
	// budget is exhausted
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrJobNotFound is returned when no active or archived job matches
	ErrJobNotFound = errors.New("job not found")

	// ErrBatchNotFound is returned when no batch matches
	ErrBatchNotFound = errors.New("batch not found")

	// ErrNotCancellable is returned when cancelling an already terminal job
	ErrNotCancellable = errors.New("job already terminal")
)

// ValidationError rejects a malformed submission before it enters the queue
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
