package errors

import "fmt"

// ErrorCode represents a FitPlan engine error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrConflict          ErrorCode = "CONFLICT"           // 409
	ErrRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE" // 503 (absorbed internally, never surfaced)
	ErrRolloverFailed    ErrorCode = "ROLLOVER_FAILED"    // 500 (the one reportable failure)
	ErrInternal          ErrorCode = "INTERNAL"           // 500
)

// EngineError represents a structured error with code, status, and details.
type EngineError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *EngineError {
	return &EngineError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing product or log entry.
func NewNotFound(identifier string) *EngineError {
	return &EngineError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *EngineError {
	return &EngineError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewRemoteUnavailable creates a 503 error for provider timeouts and failures.
// Callers inside the engine degrade to local-only results instead of
// propagating this to the UI layer.
func NewRemoteUnavailable(err error) *EngineError {
	msg := "remote provider unavailable"
	if err != nil {
		msg = err.Error()
	}
	return &EngineError{
		Code:    ErrRemoteUnavailable,
		Status:  503,
		Message: msg,
		Cause:   err,
	}
}

// NewRolloverFailed creates a 500 error for a failed rollover transaction.
// This is the only engine error allowed to bubble up to the caller.
func NewRolloverFailed(err error) *EngineError {
	msg := "rollover transaction failed"
	if err != nil {
		msg = fmt.Sprintf("rollover transaction failed: %v", err)
	}
	return &EngineError{
		Code:    ErrRolloverFailed,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *EngineError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &EngineError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// Is checks if an error is an EngineError with the given code.
func Is(err error, code ErrorCode) bool {
	if eErr, ok := err.(*EngineError); ok {
		return eErr.Code == code
	}
	return false
}
