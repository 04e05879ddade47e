// File: internal/services/chat/types.go
package chat

import "github.com/iyunix/go-roomchat/internal/domain"

// Logger defines the logging interface used across chat services.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// ContextWindow is the bounded representation of a thread's history
// handed to the AI model. Rebuilt on every invocation; never persisted.
type ContextWindow struct {
	Recent          []domain.Message
	Summary         string
	EstimatedTokens int
}
