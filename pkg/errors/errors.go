// Package errors provides standardized error types for use across the
// engine's modules.
//
// ContextualError is the base error type that captures component, operation, and
// optional status code and details. It implements the error and Unwrap interfaces
// for seamless integration with Go's errors package.
//
// Usage:
//
//	err := errors.New("upstream", "Connect", someErr).WithKind(errors.KindUpstreamTransport)
//	err = err.WithStatusCode(404).WithDetails(map[string]any{"url": u})
package errors

import "fmt"

// Kind classifies a ContextualError into one of the engine's named failure
// modes. Callers branch on Kind rather than matching Error() text.
type Kind string

// The error kinds named by the engine's error-handling design.
const (
	// KindInvalidFormat means a codec received input violating its precondition.
	KindInvalidFormat Kind = "INVALID_FORMAT"

	// KindNotConnected means ingress was pushed, or a send was attempted,
	// while the upstream connection was not open.
	KindNotConnected Kind = "NOT_CONNECTED"

	// KindUpstreamProtocol means a text frame from the upstream was not
	// valid JSON or lacked a type field.
	KindUpstreamProtocol Kind = "UPSTREAM_PROTOCOL"

	// KindUpstreamTransport means a socket error, unexpected close, or
	// handshake failure occurred on the upstream connection.
	KindUpstreamTransport Kind = "UPSTREAM_TRANSPORT"

	// KindBackoffExhausted means the reconnect attempt ceiling was reached.
	KindBackoffExhausted Kind = "BACKOFF_EXHAUSTED"

	// KindSessionGone means an operation was attempted on a session past
	// its terminal status.
	KindSessionGone Kind = "SESSION_GONE"
)

// ContextualError is a structured error type that provides consistent context
// about where and why an error occurred across the engine's modules.
type ContextualError struct {
	// Component identifies the module that produced the error (e.g. "upstream", "codec").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// Kind classifies the failure per the error-handling design. Zero value
	// means the error predates classification or is unclassified.
	Kind Kind

	// StatusCode is an optional HTTP or application-level status code.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Error returns a human-readable representation of the error.
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)

	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause, enabling use with errors.Is and errors.As.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithKind returns the error with the given Kind set.
func (e *ContextualError) WithKind(kind Kind) *ContextualError {
	e.Kind = kind
	return e
}

// WithStatusCode sets the status code on the error and returns the same
// pointer, for chaining.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetails sets the details map on the error and returns the same
// pointer, for chaining.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}

// Is reports whether target is a *ContextualError with the same Kind,
// allowing errors.Is(err, errors.New("", "", nil).WithKind(KindNotConnected))-style
// checks, and more usefully errors.Is(err, KindSentinel(KindNotConnected)).
func (e *ContextualError) Is(target error) bool {
	other, ok := target.(*ContextualError)
	if !ok || other.Kind == "" {
		return false
	}
	return e.Kind == other.Kind
}

// KindSentinel returns a minimal *ContextualError carrying only a Kind, suitable
// for use with errors.Is(err, KindSentinel(KindNotConnected)).
func KindSentinel(kind Kind) *ContextualError {
	return &ContextualError{Kind: kind}
}
