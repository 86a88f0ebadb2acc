package normalize

import (
	"errors"
	"fmt"
)

// ErrMissingField matches every MissingFieldError via errors.Is.
var ErrMissingField = errors.New("missing required field")

// MissingFieldError reports which canonical field could not be resolved.
type MissingFieldError struct {
	Field string
	Hint  string // alternate keys the field may appear under
}

func (e *MissingFieldError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("missing required field: %s", e.Field)
	}
	return fmt.Sprintf("missing required field: %s (e.g., %s)", e.Field, e.Hint)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}
