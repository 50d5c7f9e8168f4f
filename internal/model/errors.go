package model

import (
	"errors"
	"fmt"
)

var (
	// Document lifecycle errors
	ErrNotFound       = errors.New("document not found")
	ErrAlreadyDeleted = errors.New("document already soft-deleted")
	ErrNotDeleted     = errors.New("document is not soft-deleted")
	ErrNotSoftDeleted = errors.New("document must be soft-deleted first")

	// Log errors
	ErrLogEntryNotFound     = errors.New("log entry not found")
	ErrUnsupportedOperation = errors.New("operation cannot be restored")

	// Input errors
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyInput   = errors.New("empty input")

	// Store errors
	ErrStoreUnavailable = errors.New("document store unavailable")
)

// RetentionWindowError rejects a permanent delete attempted before the
// retention window has elapsed and without the force override.
type RetentionWindowError struct {
	DaysSinceDeleted int
	RequiredDays     int
}

func (e *RetentionWindowError) Error() string {
	return fmt.Sprintf("retention window not elapsed: deleted %d days ago, %d required", e.DaysSinceDeleted, e.RequiredDays)
}

// BatchError reports a batch soft-delete that failed partway. Count is the
// number of documents stamped before the failure so the caller can resume
// from the correct offset instead of re-processing stamped ids.
type BatchError struct {
	Count int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch failed after %d documents: %v", e.Count, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
