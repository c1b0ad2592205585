package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, filesystem, etc.).

var (
	// ErrDataRoomNotFound indicates the room does not exist or is not owned by
	// the caller. The two cases are deliberately indistinguishable to prevent
	// existence probing across tenants.
	ErrDataRoomNotFound = errors.New("data room not found")

	// ErrDocumentNotFound indicates the document does not exist within the
	// caller's room.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrFolderNotFound indicates the referenced parent folder does not
	// resolve to a document in the same room.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrEmptyName indicates a room was created or renamed with an empty name.
	ErrEmptyName = errors.New("name must not be empty")

	// ErrInvalidTier indicates an unknown tier value.
	ErrInvalidTier = errors.New("invalid tier")

	// ErrInvalidAccess indicates an unknown access level.
	ErrInvalidAccess = errors.New("invalid access level")

	// ErrInvalidStatus indicates an unknown lifecycle status.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrMissingUploadFile indicates the multipart request carried no file.
	ErrMissingUploadFile = errors.New("missing upload file")

	// ErrFileTooLarge indicates an upload exceeded the fixed size ceiling.
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")

	// ErrAlreadyPromoted indicates an attempt to promote a document twice.
	// The Received -> Promoted transition is one way.
	ErrAlreadyPromoted = errors.New("document already promoted")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., room id, document id).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}
