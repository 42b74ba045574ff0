// Package errors provides the typed failures produced while discovering page requests.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Stage identifies the step of a discovery run that failed.
type Stage int

const (
	// Unknown is an uncategorized failure.
	Unknown Stage = iota
	// Driver is a failure to resolve or launch the browser binary.
	Driver
	// Session is a failure to connect to or prepare a launched browser.
	Session
	// Cookies is a failure to inject cookies into the session.
	Cookies
	// Navigate is a failure to load the target page.
	Navigate
	// LogRead is a failure to read the captured performance log.
	LogRead
	// Parse is a failure to decode a single performance log entry.
	Parse
	// Panic is a recovered panic inside a discovery run.
	Panic
)

// String returns the string representation of Stage.
func (s Stage) String() string {
	switch s {
	case Driver:
		return "driver"
	case Session:
		return "session"
	case Cookies:
		return "cookies"
	case Navigate:
		return "navigate"
	case LogRead:
		return "log_read"
	case Parse:
		return "parse"
	case Panic:
		return "panic"
	default:
		return "unknown"
	}
}

// IsFatal reports whether a failure at this stage leaves nothing to extract.
// Cookie, navigation and parse failures degrade the result instead.
func (s Stage) IsFatal() bool {
	switch s {
	case Driver, Session, LogRead, Panic, Unknown:
		return true
	default:
		return false
	}
}

// StageError represents a failure at one stage of a discovery run.
type StageError struct {
	Stage   Stage
	URL     string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.URL == "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s failed on %s: %s: %v", e.Stage, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s failed on %s: %s", e.Stage, e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Cause
}

// Is matches another StageError of the same stage.
func (e *StageError) Is(target error) bool {
	t, ok := target.(*StageError)
	if !ok {
		return false
	}
	return e.Stage == t.Stage
}

// New creates a new StageError.
func New(stage Stage, url, message string, cause error) *StageError {
	return &StageError{
		Stage:   stage,
		URL:     url,
		Message: message,
		Cause:   cause,
	}
}

// NewDriverError creates a browser resolution error.
func NewDriverError(message string, cause error) *StageError {
	return New(Driver, "", message, cause)
}

// NewSessionError creates a session setup error.
func NewSessionError(message string, cause error) *StageError {
	return New(Session, "", message, cause)
}

// NewCookieError creates a cookie injection error.
func NewCookieError(domain string, cause error) *StageError {
	return New(Cookies, "", "cookie injection for "+domain+" failed", cause)
}

// NewNavigateError creates a navigation error. Timeouts and cancellation are
// called out in the message.
func NewNavigateError(url string, cause error) *StageError {
	msg := "navigation failed"
	switch {
	case IsCancelled(cause):
		msg = "navigation cancelled"
	case IsTimeout(cause):
		msg = "navigation timed out"
	}
	return New(Navigate, url, msg, cause)
}

// NewLogReadError creates a performance log read error.
func NewLogReadError(url string, cause error) *StageError {
	return New(LogRead, url, "reading performance log failed", cause)
}

// NewParseError creates a log entry parse error.
func NewParseError(message string, cause error) *StageError {
	return New(Parse, "", message, cause)
}

// NewPanicError wraps a recovered panic value.
func NewPanicError(url string, recovered interface{}) *StageError {
	if err, ok := recovered.(error); ok {
		return New(Panic, url, "unexpected failure", err)
	}
	return New(Panic, url, fmt.Sprintf("unexpected failure: %v", recovered), nil)
}

// IsTimeout checks if an error is a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// IsCancelled checks if an error comes from context cancellation.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "context canceled")
}

// GetStage extracts the stage from an error.
func GetStage(err error) Stage {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return Unknown
}

// IsFatal checks if an error ends a discovery run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return GetStage(err).IsFatal()
}
