package errors

import (
	"errors"
	"fmt"
)

// Domain errors - these represent contract violations at the gateway edge
var (
	// Handshake & identity
	ErrIdentityInvalid   = errors.New("identity invalid")
	ErrCredentialMissing = errors.New("authentication credential is required")
	ErrRoleInvalid       = errors.New("staff role is invalid")
	ErrBranchInvalid     = errors.New("branch id is invalid")
	ErrBranchUnresolved  = errors.New("branch could not be resolved for staff member")
	ErrOrderNumberFormat = errors.New("order number format is invalid")

	// Publishing
	ErrRoomTargetUnresolvable = errors.New("event has neither branch nor order scope")
	ErrUnknownEventKind       = errors.New("unknown event kind")
	ErrInvalidPayload         = errors.New("event payload must be a JSON object")

	// Membership
	ErrConnectionClosed = errors.New("connection is not live")
	ErrScopeMismatch    = errors.New("requested scope does not match connection identity")
	ErrOrderNotFound    = errors.New("order not found")

	// Generic
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("action forbidden")
	ErrNotFound     = errors.New("resource not found")
	ErrInternal     = errors.New("internal server error")
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error constructors for common cases
func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: 400,
	}
}

func NewIdentityError(err error, message string) *AppError {
	return &AppError{
		Err:        Identity(err),
		Message:    message,
		Code:       "IDENTITY_INVALID",
		StatusCode: 401,
	}
}

func NewRateLimitError() *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Message:    "Too many requests. Please try again later.",
		Code:       "RATE_LIMITED",
		StatusCode: 429,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "An unexpected error occurred",
		Code:       "INTERNAL_ERROR",
		StatusCode: 500,
	}
}

// Identity wraps cause so that it matches ErrIdentityInvalid as well as the cause itself.
func Identity(cause error) error {
	if cause == nil || errors.Is(cause, ErrIdentityInvalid) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrIdentityInvalid, cause)
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}
