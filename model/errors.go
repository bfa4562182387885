package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest      = "BAD_REQUEST"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrForbidden       = "FORBIDDEN"
	ErrNotFound        = "NOT_FOUND"
	ErrConflict        = "CONFLICT"
	ErrValidationError = "VALIDATION_ERROR"
	ErrInternalError   = "INTERNAL_ERROR"
)

// Planning and engine-gateway error codes.
const (
	ErrSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCommitInFlight    = "COMMIT_IN_FLIGHT"
	ErrEngineRejected    = "ENGINE_REJECTED"
	ErrEngineUnavailable = "ENGINE_UNAVAILABLE"
	ErrEngineTimeout     = "ENGINE_TIMEOUT"
)

// ErrorEnvelope is the standard error response envelope returned by the
// console API. It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	TraceID string       `json:"trace_id"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN error.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewSessionNotFoundError returns a SESSION_NOT_FOUND error.
func NewSessionNotFoundError(sessionID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrSessionNotFound,
		Message: fmt.Sprintf("planning session %q not found", sessionID),
	}
}

// NewCommitInFlightError returns a COMMIT_IN_FLIGHT error, raised when a
// validate or execute call is attempted while another one is still pending
// for the same session.
func NewCommitInFlightError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrCommitInFlight,
		Message: "A validate or execute request is already in flight for this session",
	}
}

// NewEngineRejectedError wraps an engine-side rejection. The engine's own
// message is surfaced verbatim so the operator sees exactly what the engine
// said.
func NewEngineRejectedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrEngineRejected, Message: msg}
}

// NewEngineUnavailableError returns an ENGINE_UNAVAILABLE error.
func NewEngineUnavailableError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrEngineUnavailable,
		Message: "The workflow engine is temporarily unavailable",
	}
}

// NewEngineTimeoutError returns an ENGINE_TIMEOUT error.
func NewEngineTimeoutError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrEngineTimeout,
		Message: "The workflow engine did not respond in time",
	}
}
