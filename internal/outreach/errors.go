package outreach

import (
	"errors"
	"fmt"
)

// ValidationError blocks an attempt until the input is corrected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// GenerationError means the AI collaborator failed or timed out. The draft
// is left as it was.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate email: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// TransportError means the mail transport rejected the send.
type TransportError struct {
	Recipient string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Recipient, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceWarning is attached to a successful send whose history record
// could not be written.
type PersistenceWarning struct {
	ContactID string
	Err       error
}

func (e *PersistenceWarning) Error() string {
	return fmt.Sprintf("email to contact %s was sent but history was not saved: %v", e.ContactID, e.Err)
}

func (e *PersistenceWarning) Unwrap() error { return e.Err }

// IsRecoverable reports whether the user can simply retry the attempt with
// the same draft.
func IsRecoverable(err error) bool {
	var genErr *GenerationError
	var trErr *TransportError
	return errors.As(err, &genErr) || errors.As(err, &trErr)
}
