// Package errors provides domain-specific error types for flatctl.
//
// The session engine never lets these cross a surface boundary as raw
// failures: the dispatcher and the transport translate them into typed
// protocol responses.  The types exist so that collaborators (store,
// credentials, wire codec) can report structured context and callers can
// classify failures with errors.Is / errors.As.
package errors

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNoSuchCommand  = errors.New("no command with that id")
	ErrAuthFailed     = errors.New("authentication failed")
	ErrRecursion      = errors.New("script is already running")
	ErrFrameTooLarge  = errors.New("frame exceeds datagram size")
	ErrBadFrame       = errors.New("malformed frame")
	ErrNotFound       = errors.New("no flat with that id")
	ErrNotOwner       = errors.New("flat belongs to another user")
	ErrUserExists     = errors.New("user already exists")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a transport operation.
type NetworkError struct {
	Op        string // "bind", "read", "write", "encode"
	Addr      string // network address involved
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// FieldError reports a staged value or record field that failed its
// domain rule.  Message is shown to the user verbatim.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StoreError wraps a failure of a persistence collaborator.
type StoreError struct {
	Op   string // "add", "update", "remove", "save", "load"
	Path string // optional backing file
	Err  error
}

func (e *StoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // flag name
	Value   interface{} // the invalid value (nil if missing)
	Message string
	Hint    string // optional suggestion
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, detecting retryability from err.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// Field creates a FieldError.
func Field(field, format string, args ...interface{}) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsFieldError reports whether err carries a user-facing field message.
func IsFieldError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// Only a busy port is worth another bind.
		if opErr.Op == "listen" {
			return errors.Is(opErr.Err, syscall.EADDRINUSE)
		}
		return opErr.Temporary() //nolint:staticcheck // still the best hint available
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
