// File: internal/services/chat/context.go
package chat

import (
	"strings"
	"unicode/utf8"

	"github.com/iyunix/go-roomchat/internal/domain"
)

// ContextBuilder produces a bounded-size representation of a thread's
// history for an AI model call. Recency is kept verbatim; everything
// older is compressed into a digest plus cached code blocks.
type ContextBuilder struct {
	config    *Config
	codeCache *CodeBlockCache
	logger    Logger
}

// NewContextBuilder creates a builder. The code cache is shared: pass
// the same instance to every builder in the process.
func NewContextBuilder(config *Config, codeCache *CodeBlockCache, logger Logger) (*ContextBuilder, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, NewConfigError(err.Error())
	}
	if codeCache == nil {
		codeCache = NewCodeBlockCache(config.CodeCacheCapacity, config.CodeCacheLowWater)
	}
	return &ContextBuilder{
		config:    config,
		codeCache: codeCache,
		logger:    logger,
	}, nil
}

// CodeCache exposes the shared cache, e.g. for resolving a code ref
// mentioned in the digest.
func (b *ContextBuilder) CodeCache() *CodeBlockCache {
	return b.codeCache
}

// Build partitions messages into a verbatim recent window and a
// compressed digest of everything older. The estimated token count of
// the result never exceeds the configured budget.
func (b *ContextBuilder) Build(messages []domain.Message) *ContextWindow {
	recent, older := b.partition(messages)

	// Cache fenced code from the compressed part so identical blocks
	// are referenced by hash instead of re-sent.
	var codeRefs []string
	seenRefs := make(map[string]bool)
	for _, msg := range older {
		for _, code := range ExtractCodeBlocks(msg.Content) {
			hash := b.codeCache.Put(code)
			if !seenRefs[hash] {
				seenRefs[hash] = true
				codeRefs = append(codeRefs, hash)
			}
		}
	}

	digest := BuildDigest(older, b.config.TopicVocabulary, b.config.MaxDecisions)
	digest.CodeRefs = codeRefs
	summary := digest.Render()

	window := &ContextWindow{
		Recent:  recent,
		Summary: summary,
	}
	window.EstimatedTokens = b.estimate(window)

	// Shrink the recent window if the total still overflows; the
	// dropped messages fold into the digest's raw count.
	for window.EstimatedTokens > b.config.ContextMaxTokens && len(window.Recent) > 1 {
		digest.MessageCount++
		window.Recent = window.Recent[1:]
		window.Summary = digest.Render()
		window.EstimatedTokens = b.estimate(window)
	}

	// Last resort: a single oversized message is truncated to fit.
	if window.EstimatedTokens > b.config.ContextMaxTokens && len(window.Recent) == 1 {
		trimmed := window.Recent[0]
		budgetChars := (b.config.ContextMaxTokens-EstimateTokens(window.Summary))*4 -
			len(trimmed.SenderName+": ") - 4
		if budgetChars < 0 {
			budgetChars = 0
		}
		trimmed.Content = TruncateText(trimmed.Content, budgetChars)
		window.Recent[0] = trimmed
		window.EstimatedTokens = b.estimate(window)
	}

	// The digest itself can overflow when compressed messages carry
	// huge decision or topic text. Cut the summary to whatever the
	// recent window leaves over.
	if window.EstimatedTokens > b.config.ContextMaxTokens {
		recentTokens := window.EstimatedTokens - EstimateTokens(window.Summary)
		budgetChars := (b.config.ContextMaxTokens - recentTokens) * 4
		if budgetChars < 0 {
			budgetChars = 0
		}
		window.Summary = TruncateText(window.Summary, budgetChars)
		window.EstimatedTokens = b.estimate(window)
	}

	b.logger.Debug("context window built",
		"recent", len(window.Recent),
		"compressed", digest.MessageCount,
		"estimated_tokens", window.EstimatedTokens,
	)
	return window
}

func (b *ContextBuilder) partition(messages []domain.Message) (recent, older []domain.Message) {
	if len(messages) <= b.config.RecentCount {
		return append([]domain.Message(nil), messages...), nil
	}
	cut := len(messages) - b.config.RecentCount
	older = messages[:cut]
	recent = append([]domain.Message(nil), messages[cut:]...)
	return recent, older
}

func (b *ContextBuilder) estimate(w *ContextWindow) int {
	total := EstimateTokens(w.Summary)
	for _, msg := range w.Recent {
		total += EstimateTokens(msg.SenderName + ": " + msg.Content)
	}
	return total
}

// EstimateTokens approximates the token count of a text as
// ceil(chars/4). A heuristic, not a tokenizer: precision is traded
// for simplicity and zero external dependency.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// TruncateText safely truncates a UTF-8 string to maxLen bytes
// without splitting a rune.
func TruncateText(input string, maxLen int) string {
	if input == "" || maxLen <= 0 {
		return ""
	}
	if len(input) <= maxLen {
		return input
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(input[cut]) {
		cut--
	}
	return input[:cut]
}

// CleanWhitespace normalizes whitespace in text for digest extraction.
func CleanWhitespace(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
