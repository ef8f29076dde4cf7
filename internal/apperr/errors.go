package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Authorization and authentication
	ErrUnauthorized       = fmt.Errorf("not authorized")
	ErrUnauthenticated    = fmt.Errorf("authentication required")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	ErrNotFound = fmt.Errorf("not found")

	// Input errors
	ErrValidation        = fmt.Errorf("validation failed")
	ErrInvalidMediaType  = fmt.Errorf("invalid media type")
	ErrSizeLimitExceeded = fmt.Errorf("size limit exceeded")
	ErrDuplicateEntry    = fmt.Errorf("duplicate entry")

	// Concurrent modification retries exhausted
	ErrConflict = fmt.Errorf("conflict")

	ErrStorage = fmt.Errorf("storage failure")
)

// Error carries a client-facing message on top of one of the sentinel kinds.
// errors.Is(err, kind) holds for every Error built from kind.
type Error struct {
	Kind    error
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an Error of the given kind with a client-facing message
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Field returns a validation style Error attached to an input field
func Field(kind error, field, message string) *Error {
	return &Error{Kind: kind, Field: field, Message: message}
}

// Wrap attaches cause to a new Error of the given kind
func Wrap(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Message returns the text that is safe to show to a client
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	switch HTTPStatus(err) {
	case http.StatusInternalServerError:
		return "Internal server error"
	default:
		return err.Error()
	}
}

// FieldOf returns the input field an error refers to, if any
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// HTTPStatus maps an error onto the HTTP status code a handler should send
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidMediaType),
		errors.Is(err, ErrSizeLimitExceeded),
		errors.Is(err, ErrDuplicateEntry):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a stable machine-readable code for the error kind
func Code(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "UNAUTHENTICATED"
	case errors.Is(err, ErrInvalidCredentials):
		return "INVALID_CREDENTIALS"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrValidation):
		return "VALIDATION"
	case errors.Is(err, ErrInvalidMediaType):
		return "INVALID_MEDIA_TYPE"
	case errors.Is(err, ErrSizeLimitExceeded):
		return "SIZE_LIMIT_EXCEEDED"
	case errors.Is(err, ErrDuplicateEntry):
		return "DUPLICATE_ENTRY"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	default:
		return "STORAGE"
	}
}
