// Package errors defines the engine error taxonomy and classification
// helpers used by the dispatcher to decide retries.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ConfigError is fatal at startup: missing required option, unreadable key.
type ConfigError struct {
	Option string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error (%s): %v", e.Option, e.Err)
	}
	return fmt.Sprintf("config error: missing required option %q", e.Option)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError reports an argument shape/type/required mismatch.
// Never retried; the provider executor is not invoked.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Reason)
	}
	return fmt.Sprintf("validation error: parameter %q: %s", e.Field, e.Reason)
}

// SecurityError reports path traversal, forbidden extensions, or plugin
// validator rejection. Never retried, never bypassable.
type SecurityError struct {
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security error: %s", e.Reason)
}

// ConnectionError is an SSH authentication or transport failure. Retried.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s): %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ToolError is a provider-raised failure during execution. Retried.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error (%s): %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// TimeoutError reports a deadline exceeded, distinct from validation failure.
type TimeoutError struct {
	Tool    string
	Elapsed string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error (%s): deadline exceeded after %s", e.Tool, e.Elapsed)
}

// PlannerError reports an unresolvable step or a mid-plan failure.
type PlannerError struct {
	PlanID string
	Step   int
	Reason string
}

func (e *PlannerError) Error() string {
	return fmt.Sprintf("planner error (plan %s, step %d): %s", e.PlanID, e.Step, e.Reason)
}

// ParseError reports model output that contained call syntax but could not
// be parsed. Logged as a warning; the raw text is returned to the user.
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v (near %q)", e.Err, e.Snippet)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsSecurity reports whether err is (or wraps) a security error.
func IsSecurity(err error) bool {
	var se *SecurityError
	return errors.As(err, &se)
}

// IsTimeout reports whether err is (or wraps) a timeout error.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsConnection reports whether err is (or wraps) a connection error.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsRetryable reports whether the dispatcher should retry after err.
// Connection, tool and timeout failures are retryable; validation and
// security failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsValidation(err) || IsSecurity(err) {
		return false
	}
	if IsConnection(err) || IsTimeout(err) {
		return true
	}
	var te *ToolError
	if errors.As(err, &te) {
		return true
	}
	if isNetworkError(err) {
		return true
	}
	// Unclassified provider failures default to retryable tool errors.
	return true
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no route to host",
		"i/o timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
