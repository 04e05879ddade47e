// File: internal/services/stream/errors.go
package stream

import "fmt"

type ErrorType string

const (
	ErrTypeConfig   ErrorType = "CONFIG"
	ErrTypeTimeout  ErrorType = "TIMEOUT"
	ErrTypeProvider ErrorType = "PROVIDER"
)

// StreamError is surfaced through a turn's Error phase. Timeouts and
// provider failures are recoverable: the caller may re-trigger the turn.
type StreamError struct {
	Type     ErrorType
	ThreadID string
	Message  string
	Cause    error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Stream %s error on thread %s: %s (caused by: %v)",
			e.Type, e.ThreadID, e.Message, e.Cause)
	}
	return fmt.Sprintf("Stream %s error on thread %s: %s", e.Type, e.ThreadID, e.Message)
}

func (e *StreamError) Unwrap() error { return e.Cause }

func NewConfigError(msg string) *StreamError {
	return &StreamError{Type: ErrTypeConfig, Message: msg}
}

func NewTimeoutError(threadID string, idle string) *StreamError {
	return &StreamError{
		Type:     ErrTypeTimeout,
		ThreadID: threadID,
		Message:  fmt.Sprintf("no chunk received for %s", idle),
	}
}

func NewProviderError(threadID, msg string, cause error) *StreamError {
	return &StreamError{Type: ErrTypeProvider, ThreadID: threadID, Message: msg, Cause: cause}
}
