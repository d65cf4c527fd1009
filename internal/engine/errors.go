package engine

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of session error
type ErrorType string

const (
	// ErrorTypeStartFailure means the engine executable could not be spawned
	ErrorTypeStartFailure ErrorType = "start_failure"
	// ErrorTypeUnexpectedPrompt means a known marker other than the ready prompt arrived
	ErrorTypeUnexpectedPrompt ErrorType = "unexpected_prompt"
	// ErrorTypeDataMissing is the engine's explicit "no data" condition
	ErrorTypeDataMissing ErrorType = "data_missing"
	// ErrorTypeTimeout means no pattern appeared before the ceiling
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeHung is a timeout escalated to session teardown
	ErrorTypeHung ErrorType = "hung"
	// ErrorTypeExited means the engine closed its output or stdin
	ErrorTypeExited ErrorType = "exited"
	// ErrorTypeCancelled means the caller's context ended the wait
	ErrorTypeCancelled ErrorType = "cancelled"
)

// SessionError is returned by every engine operation
type SessionError struct {
	Type     ErrorType `json:"type"`
	Command  string    `json:"command,omitempty"`
	Message  string    `json:"message"`
	Captured string    `json:"captured,omitempty"`
	Cause    error     `json:"-"`
}

// Error implements the error interface
func (e *SessionError) Error() string {
	if e == nil {
		return "unknown session error"
	}
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Command != "" {
		msg = fmt.Sprintf("%s (command %q)", msg, e.Command)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *SessionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewStartError creates a start failure error
func NewStartError(command string, cause error) *SessionError {
	return &SessionError{
		Type:    ErrorTypeStartFailure,
		Command: command,
		Message: "failed to start engine",
		Cause:   cause,
	}
}

// NewUnexpectedPromptError records which marker showed up instead of the ready prompt
func NewUnexpectedPromptError(command string, m Match) *SessionError {
	return &SessionError{
		Type:     ErrorTypeUnexpectedPrompt,
		Command:  command,
		Message:  fmt.Sprintf("expected ready prompt, got %q", m.Matched),
		Captured: m.Before,
	}
}

// NewDataMissingError reports a checkpoint that did not reach the ready
// prompt. cause is the timeout or unexpected prompt behind it; nil means the
// engine printed its missing-data message.
func NewDataMissingError(command, captured string, cause error) *SessionError {
	return &SessionError{
		Type:     ErrorTypeDataMissing,
		Command:  command,
		Message:  "engine reported missing data",
		Captured: captured,
		Cause:    cause,
	}
}

// NewHungError escalates a timeout for the given command
func NewHungError(command string, cause error) *SessionError {
	captured := ""
	var sErr *SessionError
	if errors.As(cause, &sErr) {
		captured = sErr.Captured
	}
	return &SessionError{
		Type:     ErrorTypeHung,
		Command:  command,
		Message:  "engine presumed hung",
		Captured: captured,
		Cause:    cause,
	}
}

// IsType reports whether err is, or wraps, a SessionError of type t
func IsType(err error, t ErrorType) bool {
	var sErr *SessionError
	for err != nil {
		if !errors.As(err, &sErr) {
			return false
		}
		if sErr.Type == t {
			return true
		}
		err = sErr.Cause
	}
	return false
}

// GetErrorType returns the outermost session error type, or "" if none
func GetErrorType(err error) ErrorType {
	var sErr *SessionError
	if errors.As(err, &sErr) {
		return sErr.Type
	}
	return ""
}

// IsFatalToRun reports errors after which no further event may be processed
func IsFatalToRun(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeStartFailure, ErrorTypeUnexpectedPrompt, ErrorTypeCancelled:
		return true
	}
	return false
}

// IsSkippable reports outcomes that only skip the current time window
func IsSkippable(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeDataMissing:
		return true
	}
	return false
}
