package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected is returned by validators for structurally impossible candidates.
	ErrRejected = errors.New("candidate rejected")

	// ErrMissingGroup is reported when a pattern's capture group did not take
	// part in the match, so no candidate can be read from it.
	ErrMissingGroup = errors.New("capture group did not participate in match")
)

// RejectionError describes why a candidate was not accepted.
type RejectionError struct {
	Field     string
	Candidate string
	Reason    string
	Err       error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("extract: %s candidate %q: %s: %v", e.Field, e.Candidate, e.Reason, e.Err)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

func reject(field, candidate, reason string) error {
	return &RejectionError{Field: field, Candidate: candidate, Reason: reason, Err: ErrRejected}
}
