// File: internal/services/stream/config.go
package stream

import (
	"fmt"
	"time"
)

type Config struct {
	// IdleTimeout is how long a live turn may go without a chunk
	// before it is failed for retry.
	IdleTimeout time.Duration
	// SweepPeriod is how often the watchdog checks live turns.
	SweepPeriod time.Duration
	// ThinkingPlaceholder is shown as content until the first real
	// content chunk arrives.
	ThinkingPlaceholder string
}

func (c *Config) Validate() error {
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}
	if c.SweepPeriod <= 0 {
		return fmt.Errorf("sweep_period must be positive")
	}
	if c.SweepPeriod > c.IdleTimeout {
		return fmt.Errorf("sweep_period cannot exceed idle_timeout")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		IdleTimeout:         30 * time.Second,
		SweepPeriod:         5 * time.Second,
		ThinkingPlaceholder: "Thinking...",
	}
}
