package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField means a required inbound field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidIdentifier means the entity id is not integer-coercible.
	ErrInvalidIdentifier = errors.New("invalid entity identifier")
	// ErrInvalidAttachment means the map image is not valid base64.
	ErrInvalidAttachment = errors.New("invalid attachment encoding")
	// ErrInvalidBody means the request body is not a JSON object.
	ErrInvalidBody = errors.New("invalid request body")
	// ErrSchemaMismatch means a history or response does not conform.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// MismatchError locates a schema violation.
type MismatchError struct {
	Path   string
	Reason string
}

func (e *MismatchError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema mismatch: %s", e.Reason)
	}
	return fmt.Sprintf("schema mismatch at %s: %s", e.Path, e.Reason)
}

func (e *MismatchError) Unwrap() error { return ErrSchemaMismatch }

func mismatch(path, format string, args ...any) error {
	return &MismatchError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidIdentifier) ||
		errors.Is(err, ErrInvalidAttachment) ||
		errors.Is(err, ErrInvalidBody)
}
