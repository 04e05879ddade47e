// File: internal/services/ai/config.go
package ai

import (
	"fmt"
	"time"
)

type Config struct {
	// LLM Configuration
	LLMKey     string
	LLMBaseURL string
	ChatModel  string

	// Embedding Configuration
	EmbeddingKey     string
	EmbeddingBaseURL string
	EmbeddingModel   string

	// Performance Configuration
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// Model Parameters
	Temperature float32
	TopP        float32
}

func (c *Config) Validate() error {
	if c.LLMKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.ChatModel == "" {
		return fmt.Errorf("CHAT_MODEL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		ChatModel:   "gpt-4o-mini",
		Timeout:     5 * time.Minute,
		MaxRetries:  3,
		RetryDelay:  2 * time.Second,
		Temperature: 0.7,
		TopP:        0.9,
	}
}
