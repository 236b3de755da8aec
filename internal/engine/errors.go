package engine

import "errors"

// Sentinels for the progress validation failures. A *ValidationError matches
// its kind with errors.Is.
var (
	ErrTaskNotFound           = errors.New("task not found")
	ErrTaskRepositoryMismatch = errors.New("task repository mismatch")
	ErrSequentialLock         = errors.New("sequential lock violation")
	ErrMissingEvidenceLink    = errors.New("missing evidence link")
)

// ValidationError is an expected, caller-recoverable rejection of a progress
// update. Message is the user-facing text.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Kind }

func newValidationError(kind error, msg string) *ValidationError {
	return &ValidationError{Kind: kind, Message: msg}
}

// IsValidation reports whether err is a progress validation failure rather
// than a store fault.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
