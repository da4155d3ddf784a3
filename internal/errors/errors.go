// Package errors defines the typed errors returned by the httpu transport.
//
// Two kinds of failure exist:
//
//   - ValidationError: the caller handed over something unusable (a malformed
//     address literal, an address that resolves to nothing, a multicast group
//     whose family does not match the interface). Nothing was sent to the OS.
//   - NetworkError: the OS refused an operation (bind, dup, getsockname,
//     setsockopt, write). The OS error is kept intact and reachable through
//     errors.Is / errors.As.
//
// The package name shadows the standard library on purpose so call sites read
// as &errors.NetworkError{...}; callers that also need errors.Is import the
// standard package under another name.
package errors

import (
	stderrors "errors"
	"fmt"
)

// NetworkError represents a failed OS-level socket operation.
//
// Example:
//
//	return &errors.NetworkError{
//	    Operation: "bind",
//	    Err:       err,
//	    Details:   "failed to bind 0.0.0.0:1900",
//	}
type NetworkError struct {
	Operation string // Operation that failed (e.g. "bind", "dup socket")
	Err       error  // Underlying OS error, never rewritten
	Details   string // Additional context, may be empty
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("network error: %s", e.Operation)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying OS error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ValidationError represents invalid caller input.
//
// Err carries the root cause when one exists (a *net.AddrError from
// SplitHostPort, a *net.DNSError from a failed lookup, a netip parse error).
// Resolution failures of every flavor collapse into this type, but the cause
// is never discarded.
type ValidationError struct {
	Field   string // Input that failed validation (e.g. "address", "host")
	Value   any    // The offending value
	Message string // Human readable reason
	Err     error  // Root cause, may be nil
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the root cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsInvalidInput reports whether err, or anything it wraps, is a
// *ValidationError.
func IsInvalidInput(err error) bool {
	var valErr *ValidationError
	return stderrors.As(err, &valErr)
}

// IsNetworkError reports whether err, or anything it wraps, is a
// *NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return stderrors.As(err, &netErr)
}
