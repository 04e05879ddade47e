// File: internal/services/chat/codecache.go
package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlockCache stores fenced code blocks from compressed history,
// keyed by content hash, so identical code is referenced once rather
// than re-transmitted with every model call. The cache is shared
// between concurrent request paths and is safe for concurrent use.
type CodeBlockCache struct {
	mu       sync.Mutex
	capacity int
	lowWater int
	order    []string // insertion order, oldest first
	blocks   map[string]string
}

// NewCodeBlockCache creates a bounded cache. When capacity is
// exceeded, the oldest entries are evicted down to lowWater.
func NewCodeBlockCache(capacity, lowWater int) *CodeBlockCache {
	return &CodeBlockCache{
		capacity: capacity,
		lowWater: lowWater,
		blocks:   make(map[string]string),
	}
}

// Put stores a code block and returns its content hash. Storing the
// same content twice is a no-op returning the existing hash.
func (c *CodeBlockCache) Put(code string) string {
	hash := HashCode(code)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.blocks[hash]; ok {
		return hash
	}
	c.blocks[hash] = code
	c.order = append(c.order, hash)

	if len(c.order) > c.capacity {
		evict := len(c.order) - c.lowWater
		for _, old := range c.order[:evict] {
			delete(c.blocks, old)
		}
		c.order = append([]string(nil), c.order[evict:]...)
	}
	return hash
}

// Get returns the cached code for a hash.
func (c *CodeBlockCache) Get(hash string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	code, ok := c.blocks[hash]
	return code, ok
}

// Len returns the number of cached blocks.
func (c *CodeBlockCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// HashCode derives the cache key for a code block.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])[:16]
}

// ExtractCodeBlocks returns the fenced code blocks found in a
// markdown message body, in document order.
func ExtractCodeBlocks(markdown string) []string {
	if !strings.Contains(markdown, "```") && !strings.Contains(markdown, "~~~") {
		return nil
	}

	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		cb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		lines := cb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		if b.Len() > 0 {
			blocks = append(blocks, b.String())
		}
		return ast.WalkSkipChildren, nil
	})
	return blocks
}
