// File: internal/services/chat/config.go
package chat

import "fmt"

type Config struct {
	// Compression Configuration
	RecentCount      int // messages kept verbatim
	ContextMaxTokens int // hard ceiling for the built window

	// Code Cache Configuration
	CodeCacheCapacity int // entries before eviction kicks in
	CodeCacheLowWater int // entries kept after an eviction pass

	// Digest Configuration
	MaxDecisions    int      // decision sentences kept in the digest
	TopicVocabulary []string // fixed vocabulary matched against history
}

func (c *Config) Validate() error {
	if c.RecentCount <= 0 {
		return fmt.Errorf("recent_count must be positive")
	}
	if c.ContextMaxTokens <= 0 {
		return fmt.Errorf("context_max_tokens must be positive")
	}
	if c.CodeCacheCapacity <= 0 {
		return fmt.Errorf("code_cache_capacity must be positive")
	}
	if c.CodeCacheLowWater <= 0 || c.CodeCacheLowWater > c.CodeCacheCapacity {
		return fmt.Errorf("code_cache_low_water must be within (0, capacity]")
	}
	if c.MaxDecisions < 0 {
		return fmt.Errorf("max_decisions cannot be negative")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		RecentCount:       10,
		ContextMaxTokens:  24000, // leaves headroom for the model's response
		CodeCacheCapacity: 100,
		CodeCacheLowWater: 50,
		MaxDecisions:      3,
		TopicVocabulary: []string{
			"deploy", "release", "rollback", "bug", "incident",
			"design", "architecture", "api", "schema", "database",
			"migration", "test", "performance", "latency", "security",
			"frontend", "backend", "budget", "deadline", "roadmap",
		},
	}
}
