package operations

import (
	"errors"
	"fmt"

	"github.com/GovindGNampoothiri/windCode/internal/engine"
)

// ErrorType represents the type of operation error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeStartup      ErrorType = "startup"
	ErrorTypeSession      ErrorType = "session"
	ErrorTypeProtocol     ErrorType = "protocol"
	ErrorTypeParse        ErrorType = "parse"
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeFatal        ErrorType = "fatal"
)

// OperationError ties a failure to the event, window and step it hit
type OperationError struct {
	Type    ErrorType              `json:"type"`
	Step    string                 `json:"step,omitempty"`
	Event   string                 `json:"event,omitempty"`
	Window  string                 `json:"window,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	where := e.Step
	if e.Event != "" {
		where = e.Event + " " + where
	}
	if e.Window != "" {
		where = where + "@" + e.Window
	}
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if where != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Type, where, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(step, message string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeValidation,
		Step:    step,
		Message: message,
	}
}

// NewIOError wraps a local filesystem failure
func NewIOError(step string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeIO,
		Step:    step,
		Message: "filesystem operation failed",
		Cause:   cause,
	}
}

// NewParseError reports engine output that could not be interpreted
func NewParseError(step, event, window string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeParse,
		Step:    step,
		Event:   event,
		Window:  window,
		Message: "unreadable engine output",
		Cause:   cause,
	}
}

// NewCancellationError creates a new cancellation error
func NewCancellationError(step string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeCancellation,
		Step:    step,
		Message: "run was cancelled",
		Cause:   cause,
	}
}

// WrapEngineError classifies an engine failure and records where it happened
func WrapEngineError(step, event, window string, err error) *OperationError {
	if err == nil {
		return nil
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr
	}

	e := &OperationError{
		Step:   step,
		Event:  event,
		Window: window,
		Cause:  err,
	}
	switch engine.GetErrorType(err) {
	case engine.ErrorTypeStartFailure:
		e.Type = ErrorTypeStartup
		e.Message = "engine could not be started"
	case engine.ErrorTypeUnexpectedPrompt:
		e.Type = ErrorTypeProtocol
		e.Message = "engine left the expected prompt sequence"
	case engine.ErrorTypeHung, engine.ErrorTypeTimeout:
		e.Type = ErrorTypeSession
		e.Message = "engine hung"
	case engine.ErrorTypeExited:
		e.Type = ErrorTypeSession
		e.Message = "engine exited"
	case engine.ErrorTypeCancelled:
		e.Type = ErrorTypeCancellation
		e.Message = "run was cancelled"
	default:
		e.Type = ErrorTypeFatal
		e.Message = "step failed"
	}
	return e
}

// GetErrorType returns the type of the error
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ErrorTypeFatal
}

// IsEventScoped reports failures confined to one event's session. The
// batch profile moves on to the next date after these.
func IsEventScoped(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeSession, ErrorTypeParse:
		return true
	}
	return false
}

// ErrorList collects event failures of a run
type ErrorList struct {
	Errors []*OperationError `json:"errors"`
}

// Error implements the error interface
func (e *ErrorList) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors: %d errors occurred", len(e.Errors))
}

// Add adds an error to the list
func (e *ErrorList) Add(err *OperationError) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (e *ErrorList) HasErrors() bool {
	return len(e.Errors) > 0
}

// ByEvent returns the errors recorded for one event date
func (e *ErrorList) ByEvent(date string) []*OperationError {
	var out []*OperationError
	for _, err := range e.Errors {
		if err.Event == date {
			out = append(out, err)
		}
	}
	return out
}
