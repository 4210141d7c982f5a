// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Verdant.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Verdant errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeToolFailure indicates a tool execution failed.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeLLMError indicates a model backend transport or status failure.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeBridgeError indicates the bridge subprocess failed or misbehaved.
	CodeBridgeError ErrorCode = "BRIDGE_ERROR"

	// CodeQueueDropped indicates a waiting interaction was evicted from a
	// full queue.
	CodeQueueDropped ErrorCode = "QUEUE_DROPPED"

	// CodeQueueCancelled indicates a waiting interaction was cancelled
	// before it started.
	CodeQueueCancelled ErrorCode = "QUEUE_CANCELLED"

	// CodeDebounced indicates an interaction was dropped by the debounce
	// window before it was queued.
	CodeDebounced ErrorCode = "DEBOUNCED"
)

// VerdantError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type VerdantError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *VerdantError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *VerdantError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *VerdantError) MarshalJSON() ([]byte, error) {
	type Alias VerdantError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new VerdantError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *VerdantError {
	return &VerdantError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *VerdantError) WithContext(key string, value interface{}) *VerdantError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *VerdantError) WithRecoverable(recoverable bool) *VerdantError {
	e.Recoverable = recoverable
	return e
}

// AsVerdantError attempts to convert an error to a VerdantError.
// Returns the error as VerdantError if it is one, or wraps it otherwise.
func AsVerdantError(err error) *VerdantError {
	if err == nil {
		return nil
	}
	if ve, ok := err.(*VerdantError); ok {
		return ve
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the error code of err, or CodeInternal for untyped errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if ve, ok := err.(*VerdantError); ok {
		return ve.Code
	}
	return CodeInternal
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *VerdantError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}
