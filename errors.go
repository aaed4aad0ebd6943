package linkaudit

import (
	"errors"
	"fmt"
)

// Failure kinds reported through events and result details. None of them abort a batch.
var (
	ErrUnreachable          = errors.New("link unreachable")
	ErrContentUnavailable   = errors.New("content unavailable")
	ErrNoReplacement        = errors.New("no replacement found")
	ErrAnalysisInconclusive = errors.New("analysis inconclusive")
)

// UnreachableError carries the classified reason a link failed validation
type UnreachableError struct {
	URL    string
	Reason string
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: %s", e.URL, e.Reason)
}

// Unwrap lets errors.Is match ErrUnreachable
func (e *UnreachableError) Unwrap() error {
	return ErrUnreachable
}
