package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for Corsair framework errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Lane serializer error codes
const (
	LANE_ACQUIRE_CANCELLED ErrorCode = "LANE_ACQUIRE_CANCELLED"
	LANE_DOUBLE_RELEASE    ErrorCode = "LANE_DOUBLE_RELEASE"
)

// Raid error codes
const (
	RAID_APPROVAL_DENIED    ErrorCode = "RAID_APPROVAL_DENIED"
	RAID_APPROVAL_TIMEOUT   ErrorCode = "RAID_APPROVAL_TIMEOUT"
	RAID_VECTOR_UNKNOWN     ErrorCode = "RAID_VECTOR_UNKNOWN"
	RAID_INTENSITY_INVALID  ErrorCode = "RAID_INTENSITY_INVALID"
	RAID_SIMULATION_FAILED  ErrorCode = "RAID_SIMULATION_FAILED"
)

// Evidence chain error codes
const (
	EVIDENCE_APPEND_FAILED ErrorCode = "EVIDENCE_APPEND_FAILED"
	EVIDENCE_CHAIN_BROKEN  ErrorCode = "EVIDENCE_CHAIN_BROKEN"
	EVIDENCE_RESET_FAILED  ErrorCode = "EVIDENCE_RESET_FAILED"
)

// Scope guard error codes
const (
	GUARD_INACTIVE ErrorCode = "GUARD_INACTIVE"
	GUARD_EXPIRED  ErrorCode = "GUARD_EXPIRED"
)

// Plugin error codes
const (
	PLUGIN_MANIFEST_INVALID ErrorCode = "PLUGIN_MANIFEST_INVALID"
	PLUGIN_NOT_FOUND        ErrorCode = "PLUGIN_NOT_FOUND"
	PLUGIN_SCAN_FAILED      ErrorCode = "PLUGIN_SCAN_FAILED"
)

// Mission error codes
const (
	MISSION_NOT_FOUND      ErrorCode = "MISSION_NOT_FOUND"
	MISSION_STORE_FAILED   ErrorCode = "MISSION_STORE_FAILED"
	MISSION_TARGET_INVALID ErrorCode = "MISSION_TARGET_INVALID"
)

// CorsairError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type CorsairError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *CorsairError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *CorsairError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a CorsairError with the same Code.
func (e *CorsairError) Is(target error) bool {
	var corsairErr *CorsairError
	if errors.As(target, &corsairErr) {
		return e.Code == corsairErr.Code
	}
	return false
}

// NewError creates a new non-retryable CorsairError with the given code and message.
func NewError(code ErrorCode, message string) *CorsairError {
	return &CorsairError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable CorsairError with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., file contention).
func NewRetryableError(code ErrorCode, message string) *CorsairError {
	return &CorsairError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable CorsairError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *CorsairError {
	return &CorsairError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// IsRetryable reports whether err (or any error in its chain) is a
// CorsairError marked retryable.
func IsRetryable(err error) bool {
	var corsairErr *CorsairError
	if errors.As(err, &corsairErr) {
		return corsairErr.Retryable
	}
	return false
}

// CodeOf extracts the ErrorCode from err if it is a CorsairError,
// returning an empty code otherwise.
func CodeOf(err error) ErrorCode {
	var corsairErr *CorsairError
	if errors.As(err, &corsairErr) {
		return corsairErr.Code
	}
	return ""
}
