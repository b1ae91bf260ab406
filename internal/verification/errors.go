package verification

import (
	"errors"
	"fmt"
)

var (
	ErrConnectorUnavailable = errors.New("connector unavailable")
	ErrMalformedRecord      = errors.New("malformed record")
)

// ErrorKind separates the user-visible failure classes of a verification.
type ErrorKind string

const (
	// KindInputError marks a record that cannot be verified as given.
	KindInputError ErrorKind = "input_error"

	// KindConnectorUnavailable marks a failed candidate search. It is never
	// the same as a record that was searched and not found.
	KindConnectorUnavailable ErrorKind = "connector_unavailable"

	// KindCancelled marks a batch item abandoned before it started.
	KindCancelled ErrorKind = "cancelled"
)

// MatchingError is surfaced alongside (or instead of) a classification outcome.
type MatchingError struct {
	Kind    ErrorKind `json:"kind"`
	Op      string    `json:"op"`
	Err     error     `json:"-"`
	Details string    `json:"details,omitempty"`
}

func (e *MatchingError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("verification: %s failed (%s): %s: %v", e.Op, e.Kind, e.Details, e.Err)
	}
	return fmt.Sprintf("verification: %s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *MatchingError) Unwrap() error {
	return e.Err
}

func (e *MatchingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewMatchingError creates a MatchingError of the given kind.
func NewMatchingError(kind ErrorKind, op string, err error, details string) *MatchingError {
	return &MatchingError{Kind: kind, Op: op, Err: err, Details: details}
}
