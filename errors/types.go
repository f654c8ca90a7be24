package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Registry errors
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeStoreCorrupt    ErrorCode = "STORE_CORRUPT"
	ErrCodeStoreVersion    ErrorCode = "STORE_VERSION"
	ErrCodeStoreWrite      ErrorCode = "STORE_WRITE"

	// Event protocol errors
	ErrCodeEventInvalid  ErrorCode = "EVENT_INVALID"
	ErrCodeEventRejected ErrorCode = "EVENT_REJECTED"

	// Daemon errors
	ErrCodeDaemonRunning     ErrorCode = "DAEMON_RUNNING"
	ErrCodeDaemonNotRunning  ErrorCode = "DAEMON_NOT_RUNNING"
	ErrCodeDaemonUnreachable ErrorCode = "DAEMON_UNREACHABLE"

	// Terminal errors
	ErrCodeTerminalProvider ErrorCode = "TERMINAL_PROVIDER"
	ErrCodeTerminalGone     ErrorCode = "TERMINAL_GONE"

	// Command execution errors
	ErrCodeCommandTimeout  ErrorCode = "COMMAND_TIMEOUT"
	ErrCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	ErrCodeCommandFailed   ErrorCode = "COMMAND_FAILED"

	// General errors
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
)

// RosterError represents a structured error with context
type RosterError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *RosterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *RosterError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *RosterError) WithDetail(key string, value interface{}) *RosterError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *RosterError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new RosterError
func New(code ErrorCode, message string) *RosterError {
	return &RosterError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a RosterError
func Wrap(err error, code ErrorCode, message string) *RosterError {
	return &RosterError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific RosterError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	rosterErr, ok := err.(*RosterError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return rosterErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	rosterErr, ok := err.(*RosterError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return rosterErr.Code
}
