// Package printererr provides standardized error codes for the adapter.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (transport, codec, command, journal)
//   - error: The specific error type within that domain
//
// These codes are stable and can be used by embedding hosts for programmatic
// error handling. Human-readable messages are provided alongside codes.
package printererr

import (
	"errors"
	"fmt"
)

// Error codes by domain.
// These are stable identifiers that embedding hosts can rely on.
const (
	// Transport domain - socket and connection errors
	CodeNotConnected   = "transport.not_connected"   // Send attempted while disconnected
	CodeConnectFailed  = "transport.connect_failed"  // Dial or handshake failed
	CodeConnectionLost = "transport.connection_lost" // Connection unexpectedly closed
	CodeSendFailed     = "transport.send_failed"     // Write on an established connection failed

	// Codec domain - wire format errors
	CodeMalformedMessage = "codec.malformed_message" // Undecodable inbound frame
	CodeUnknownCommand   = "codec.unknown_command"   // No encoding for the requested operation

	// Command domain - dispatch-time errors
	CodeInvalidParameter = "command.invalid_parameter" // Local validation failed before send
	CodeNotApplicable    = "command.not_applicable"    // Lifecycle-state precondition not met
	CodeRateLimited      = "command.rate_limited"      // Too many commands per second

	// Journal domain - telemetry persistence errors
	CodeJournalOpenFailed  = "journal.open_failed"  // Database open failed
	CodeJournalWriteFailed = "journal.write_failed" // Failed to persist a row

	// Discovery domain - printer discovery errors
	CodeDiscoveryFailed = "discovery.failed" // No printer found on the network

	// General domain - catch-all errors
	CodeUnknown = "error.unknown" // Unknown error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "transport.not_connected")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// If the error is a CodedError, returns its code.
// Falls back to CodeUnknown for unrecognized errors.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Common error constructors for frequently used error types.

// NotConnected creates a "transport.not_connected" error.
func NotConnected() *CodedError {
	return New(CodeNotConnected, "not connected to printer")
}

// InvalidParameter creates a "command.invalid_parameter" error.
func InvalidParameter(detail string) *CodedError {
	return New(CodeInvalidParameter, detail)
}

// NotApplicable creates a "command.not_applicable" error describing why
// the operation was rejected in the current lifecycle state.
func NotApplicable(op, status string) *CodedError {
	return New(CodeNotApplicable, fmt.Sprintf("%s rejected: printer is %s", op, status))
}

// Malformed creates a "codec.malformed_message" error wrapping the parse failure.
func Malformed(cause error) *CodedError {
	return Wrap(CodeMalformedMessage, "undecodable inbound frame", cause)
}
