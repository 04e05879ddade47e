// File: internal/services/retrieval/errors.go
package retrieval

import "fmt"

type ErrorType string

const (
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeConnection ErrorType = "CONNECTION"
	ErrTypeOperation  ErrorType = "OPERATION"
	ErrTypeTimeout    ErrorType = "TIMEOUT"
)

type RetrievalError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
}

func (e *RetrievalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Retrieval %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("Retrieval %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *RetrievalError) Unwrap() error { return e.Cause }

func NewConfigError(msg string) *RetrievalError {
	return &RetrievalError{Type: ErrTypeConfig, Operation: "config", Message: msg}
}

func NewConnectionError(msg string, cause error) *RetrievalError {
	return &RetrievalError{Type: ErrTypeConnection, Operation: "connect", Message: msg, Cause: cause}
}

func NewOperationError(msg string, cause error) *RetrievalError {
	return &RetrievalError{Type: ErrTypeOperation, Operation: "query", Message: msg, Cause: cause}
}

func NewTimeoutError(msg string, cause error) *RetrievalError {
	return &RetrievalError{Type: ErrTypeTimeout, Operation: "retry", Message: msg, Cause: cause}
}
