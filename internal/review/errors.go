package review

import (
	"errors"

	"github.com/renderinc/review-queue/internal/normalize"
)

var (
	// ErrInvalidIdentifier means the caller supplied a malformed id.
	ErrInvalidIdentifier = errors.New("invalid id")
	// ErrNotFound means no source record has the id.
	ErrNotFound = errors.New("not found")
	// ErrNormalizationFailed wraps a normalize.MissingFieldError. The source
	// stays undecided.
	ErrNormalizationFailed = errors.New("normalize failed")
	// ErrStoreUnavailable wraps store failures. Nothing was written.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Reason codes returned by Code.
const (
	CodeInvalidID        = "INVALID_ID"
	CodeNotFound         = "NOT_FOUND"
	CodeNormalizeFailed  = "NORMALIZE_FAILED"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternal         = "INTERNAL"
)

// Code classifies err for transport layers.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidIdentifier):
		return CodeInvalidID
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrNormalizationFailed), errors.Is(err, normalize.ErrMissingField):
		return CodeNormalizeFailed
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	}
	return CodeInternal
}

// normalizeError joins the sentinel with the missing-field cause so both
// errors.Is(err, ErrNormalizationFailed) and errors.As(err, *MissingFieldError)
// hold.
type normalizeError struct {
	cause error
}

func (e *normalizeError) Error() string {
	return ErrNormalizationFailed.Error() + ": " + e.cause.Error()
}

func (e *normalizeError) Unwrap() []error {
	return []error{ErrNormalizationFailed, e.cause}
}
