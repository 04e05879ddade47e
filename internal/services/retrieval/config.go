// File: internal/services/retrieval/config.go
package retrieval

import (
	"fmt"
	"time"
)

type Config struct {
	// Connection Configuration
	APIKey    string
	IndexHost string
	Namespace string

	// Query Configuration
	TopK       int
	MaxSources int

	// Performance Configuration
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("PINECONE_API_KEY is required")
	}
	if c.IndexHost == "" {
		return fmt.Errorf("PINECONE_INDEX_HOST is required")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.TopK > 20 {
		return fmt.Errorf("top_k cannot exceed 20")
	}
	if c.MaxSources <= 0 {
		return fmt.Errorf("max_sources must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Namespace:  "roomchat",
		TopK:       8,
		MaxSources: 5,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}
