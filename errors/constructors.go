package errors

import (
	"fmt"
	"time"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *Error {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// NotConnected is returned when an event is emitted without a live connection.
func NotConnected(event string) *Error {
	return New(ErrCodeNotConnected, fmt.Sprintf("cannot emit '%s': not connected", event)).
		WithDetail("event", event)
}

// ConnectionFailed wraps a dial failure after all attempts were used.
func ConnectionFailed(url string, attempts int, err error) *Error {
	return Wrap(err, ErrCodeConnectionFailed, fmt.Sprintf("failed to connect to %s", url)).
		WithDetail("url", url).
		WithDetail("attempts", attempts)
}

// AckTimeout creates an acknowledgment timeout error
func AckTimeout(event string, timeout time.Duration) *Error {
	return New(ErrCodeAckTimeout,
		fmt.Sprintf("no acknowledgment for '%s' within %s", event, timeout)).
		WithDetail("event", event).
		WithDetail("timeout", timeout.String())
}

// Unauthenticated is returned when a guarded route is denied.
func Unauthenticated(path, redirect string) *Error {
	return New(ErrCodeUnauthenticated, fmt.Sprintf("route %s requires authentication", path)).
		WithDetail("path", path).
		WithDetail("redirect", redirect)
}

// AlreadyRunning creates an error for a second instance of a process.
func AlreadyRunning(name string, pid int) *Error {
	return New(ErrCodeAlreadyRunning, fmt.Sprintf("%s already running with PID %d", name, pid)).
		WithDetail("pid", pid)
}

// InvalidInput creates an invalid input error for a named field.
func InvalidInput(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithDetail("field", field)
}
