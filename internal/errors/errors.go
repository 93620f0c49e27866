// Package errors provides structured error types for the debug engine.
// These errors carry machine-readable codes and hints that the controller
// can surface to the user when something goes wrong.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a category of error for programmatic handling
type ErrorCode string

const (
	// Protocol errors
	CodeUnknownCommand ErrorCode = "UNKNOWN_COMMAND"
	CodeMalformedArgs  ErrorCode = "MALFORMED_ARGS"
	CodeLineTooLong    ErrorCode = "LINE_TOO_LONG"

	// Coordinator errors
	CodeNoSuchThread ErrorCode = "NO_SUCH_THREAD"
	CodeNoThreads    ErrorCode = "NO_THREADS"

	// Evaluation errors
	CodeEvaluationFailed ErrorCode = "EVALUATION_FAILED"
	CodeConditionSyntax  ErrorCode = "CONDITION_SYNTAX"

	// Breakpoint errors
	CodeBreakpointFailed ErrorCode = "BREAKPOINT_FAILED"

	// Transport / session errors
	CodeTransportClosed   ErrorCode = "TRANSPORT_CLOSED"
	CodeSessionTerminated ErrorCode = "SESSION_TERMINATED"

	// Configuration errors
	CodeConfigInvalid ErrorCode = "CONFIG_INVALID"
)

// DebugError is a structured error type that includes the error category
// and optional context for the controller.
type DebugError struct {
	// Code is a machine-readable error category
	Code ErrorCode `json:"code"`

	// Message is a human-readable description of what went wrong
	Message string `json:"message"`

	// Hint provides actionable guidance on how to fix the error
	Hint string `json:"hint,omitempty"`

	// Details contains additional context (e.g., the offending value)
	Details map[string]interface{} `json:"details,omitempty"`

	// Cause is the underlying error, if any
	Cause error `json:"-"`
}

// Error implements the error interface
func (e *DebugError) Error() string {
	if e.Hint != "" {
		return e.Message + " | Hint: " + e.Hint
	}
	return e.Message
}

// Unwrap returns the underlying error for error chaining
func (e *DebugError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *DebugError) WithDetails(key string, value interface{}) *DebugError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *DebugError) WithCause(err error) *DebugError {
	e.Cause = err
	return e
}

// --- Protocol Errors ---

// UnknownCommand creates an error for an unrecognized command token.
// The session continues after reporting it.
func UnknownCommand(token string) *DebugError {
	return &DebugError{
		Code:    CodeUnknownCommand,
		Message: fmt.Sprintf("unknown command token '%s'", token),
		Hint:    "Use the capabilities request to discover which commands this engine supports.",
		Details: map[string]interface{}{
			"token": token,
		},
	}
}

// MalformedArgs creates an error for a command with an unparsable argument list.
func MalformedArgs(token, args string) *DebugError {
	return &DebugError{
		Code:    CodeMalformedArgs,
		Message: fmt.Sprintf("malformed arguments for '%s'", token),
		Hint:    "Command arguments must be a single JSON object following the command token.",
		Details: map[string]interface{}{
			"token": token,
			"args":  args,
		},
	}
}

// LineTooLong creates an error for an inbound line exceeding the
// transport's length limit. The line is dropped; the session survives.
func LineTooLong(length, limit int) *DebugError {
	return &DebugError{
		Code:    CodeLineTooLong,
		Message: fmt.Sprintf("inbound line of %d bytes exceeds the %d byte limit", length, limit),
		Hint:    "Split the request or raise the maxLineLength configuration value.",
		Details: map[string]interface{}{
			"length": length,
			"limit":  limit,
		},
	}
}

// --- Coordinator Errors ---

// NoSuchThread creates an error for an operation on an unknown thread number.
func NoSuchThread(id int) *DebugError {
	return &DebugError{
		Code:    CodeNoSuchThread,
		Message: fmt.Sprintf("no such thread: %d", id),
		Hint:    "Use the thread list request to see the currently known threads.",
		Details: map[string]interface{}{
			"threadId": id,
		},
	}
}

// NoThreads creates an error when no thread has been observed yet.
func NoThreads() *DebugError {
	return &DebugError{
		Code:    CodeNoThreads,
		Message: "no traced thread available",
		Hint:    "The program has not produced a trace event yet, or has terminated.",
	}
}

// --- Evaluation Errors ---

// EvaluationFailed creates an error for a user-initiated evaluation failure.
// Condition and watch evaluation failures are swallowed and never reach this.
func EvaluationFailed(expression string, err error) *DebugError {
	return &DebugError{
		Code:    CodeEvaluationFailed,
		Message: fmt.Sprintf("failed to evaluate '%s': %v", expression, err),
		Cause:   err,
		Details: map[string]interface{}{
			"expression": expression,
		},
	}
}

// ConditionSyntax creates an error for a breakpoint or watch condition that
// does not parse.
func ConditionSyntax(condition string, err error) *DebugError {
	return &DebugError{
		Code:    CodeConditionSyntax,
		Message: fmt.Sprintf("condition does not parse: '%s'", condition),
		Hint:    "Conditions must be a single expression valid in the frame's evaluation context.",
		Cause:   err,
		Details: map[string]interface{}{
			"condition": condition,
		},
	}
}

// --- Breakpoint Errors ---

// BreakpointFailed creates an error for a breakpoint operation failure.
func BreakpointFailed(file string, line int, reason string) *DebugError {
	return &DebugError{
		Code:    CodeBreakpointFailed,
		Message: fmt.Sprintf("breakpoint operation failed at %s:%d: %s", file, line, reason),
		Details: map[string]interface{}{
			"file": file,
			"line": line,
		},
	}
}

// --- Transport / Session Errors ---

// TransportClosed creates the error returned by reads on a closed transport.
// It triggers session teardown, never a crash of other threads.
func TransportClosed(err error) *DebugError {
	return &DebugError{
		Code:    CodeTransportClosed,
		Message: "debug transport closed",
		Cause:   err,
	}
}

// SessionTerminated creates an error for operations on a torn-down session.
func SessionTerminated() *DebugError {
	return &DebugError{
		Code:    CodeSessionTerminated,
		Message: "debug session has terminated",
	}
}

// --- Helpers ---

// Wrap wraps a generic error with a code and message.
func Wrap(code ErrorCode, message string, err error) *DebugError {
	return &DebugError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// FromError creates a DebugError from a generic error, preserving any
// existing structure.
func FromError(err error) *DebugError {
	var de *DebugError
	if stderrors.As(err, &de) {
		return de
	}
	return &DebugError{
		Code:    "UNKNOWN_ERROR",
		Message: err.Error(),
		Cause:   err,
	}
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	var de *DebugError
	if stderrors.As(err, &de) {
		return de.Code == code
	}
	return false
}
