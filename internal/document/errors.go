package document

import (
	"errors"
	"fmt"
)

// ErrorKind identifies why a document was rejected at the door. Input
// errors are never retried and surface verbatim to the caller.
type ErrorKind string

const (
	UnsupportedFormat ErrorKind = "unsupported_format"
	SizeExceeded      ErrorKind = "size_exceeded"
	PageLimitExceeded ErrorKind = "page_limit_exceeded"
	CorruptImage      ErrorKind = "corrupt_image"
)

// ValidationError is the typed rejection produced by the validator.
type ValidationError struct {
	Kind     ErrorKind
	SourceID string
	Detail   string
	Err      error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document %s: %s: %s: %v", e.SourceID, e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("document %s: %s: %s", e.SourceID, e.Kind, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is (or wraps) a ValidationError
// and returns it if so.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
