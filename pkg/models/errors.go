package models

import "errors"

// Configuration errors are fatal at construction time.
var (
	ErrInvalidConfiguration    = errors.New("invalid configuration")
	ErrMissingFieldDefinitions = errors.New("missing field definitions")
)
