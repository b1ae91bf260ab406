package mapping

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gauravpcu/vendor-statements-sub000/internal/overlay"
)

var (
	ErrEmptyHeader       = errors.New("empty header")
	ErrAmbiguousHeader   = errors.New("ambiguous header")
	ErrOracleUnavailable = errors.New("suggestion oracle unavailable")

	// ErrTemplateNotFound is the overlay's sentinel, so callers can match
	// either package's name.
	ErrTemplateNotFound = overlay.ErrTemplateNotFound
)

// MappingError describes a header that could not be mapped.
type MappingError struct {
	Op      string
	Header  string
	Err     error
	Details map[string]interface{}
}

func (e *MappingError) Error() string {
	if e.Header != "" {
		return fmt.Sprintf("%s: header %q: %v", e.Op, e.Header, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

func (e *MappingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewAmbiguousHeaderError reports a header that exactly matches aliases of several fields.
func NewAmbiguousHeaderError(header string, fields []string) *MappingError {
	return &MappingError{
		Op:      "ExactAlias",
		Header:  header,
		Err:     fmt.Errorf("%w: matches %s", ErrAmbiguousHeader, strings.Join(fields, ", ")),
		Details: map[string]interface{}{"fields": fields},
	}
}
