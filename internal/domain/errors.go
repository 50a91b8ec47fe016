package domain

import (
	"errors"
)

// Common domain errors
var (
	ErrInvalidInput = errors.New("invalid input")

	// Entry errors
	ErrUnsupportedKind = errors.New("unsupported entry kind")
	ErrEntryNotFound   = errors.New("entry not found")

	// Capture errors
	ErrNoRepresentation = errors.New("snapshot has no usable representation")
	ErrConcealed        = errors.New("payload is marked concealed")
	ErrBlacklistedApp   = errors.New("source application is blacklisted")
	ErrPayloadTooLarge  = errors.New("payload exceeds maximum item size")
	ErrDuplicateImage   = errors.New("image identical to the previous capture")

	// Persistence errors
	ErrMalformedSnapshot = errors.New("malformed history snapshot")
)

// SkippableError represents a capture that was rejected on purpose.
// The capture loop logs it and waits for the next change.
type SkippableError struct {
	Err     error
	Context string
}

// Error returns the error message
func (e *SkippableError) Error() string {
	if e.Context != "" {
		if e.Err != nil {
			return e.Context + ": " + e.Err.Error()
		}
		return e.Context
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "skippable error"
}

// Unwrap returns the underlying error
func (e *SkippableError) Unwrap() error {
	return e.Err
}

// NewSkippableError creates a new skippable error
func NewSkippableError(err error, context string) *SkippableError {
	return &SkippableError{Err: err, Context: context}
}

// IsSkippable returns true if the error can be skipped
func IsSkippable(err error) bool {
	var se *SkippableError
	return errors.As(err, &se)
}

// Skippable capture rejections
var (
	ErrSkipEmpty       = NewSkippableError(ErrNoRepresentation, "nothing to capture")
	ErrSkipConcealed   = NewSkippableError(ErrConcealed, "concealed content ignored")
	ErrSkipBlacklisted = NewSkippableError(ErrBlacklistedApp, "blacklisted source")
	ErrSkipDuplicate   = NewSkippableError(ErrDuplicateImage, "duplicate image")
)
