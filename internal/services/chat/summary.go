// File: internal/services/chat/summary.go
package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iyunix/go-roomchat/internal/domain"
)

// decisionIndicators are the phrases that mark a sentence as a
// decision worth keeping in the digest.
var decisionIndicators = []string{
	"we should", "we will", "let's", "decided", "agreed",
	"going with", "the plan is", "settled on",
}

// maxDecisionChars bounds a single decision line in the digest, so one
// pathological message cannot inflate the summary past the budget.
const maxDecisionChars = 240

// Digest is the compact summary of the compressed (older) part of a
// thread's history.
type Digest struct {
	Participants []string
	Topics       []string
	Decisions    []string
	CodeRefs     []string
	MessageCount int
}

// Render produces the digest text included in the model context.
func (d *Digest) Render() string {
	if d.MessageCount == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "EARLIER CONVERSATION (%d messages, summarized):\n", d.MessageCount)
	if len(d.Participants) > 0 {
		fmt.Fprintf(&b, "Participants: %s\n", strings.Join(d.Participants, ", "))
	}
	if len(d.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(d.Topics, ", "))
	}
	for _, decision := range d.Decisions {
		fmt.Fprintf(&b, "Decision: %s\n", decision)
	}
	for _, ref := range d.CodeRefs {
		fmt.Fprintf(&b, "Code block (cached): %s\n", ref)
	}
	return b.String()
}

// BuildDigest summarizes older messages into participants, topics
// matched against the fixed vocabulary, and a few decision sentences.
func BuildDigest(older []domain.Message, vocabulary []string, maxDecisions int) *Digest {
	d := &Digest{MessageCount: len(older)}
	if len(older) == 0 {
		return d
	}

	seenNames := make(map[string]bool)
	seenTopics := make(map[string]bool)

	for _, msg := range older {
		if msg.SenderName != "" && !seenNames[msg.SenderName] {
			seenNames[msg.SenderName] = true
			d.Participants = append(d.Participants, msg.SenderName)
		}

		lower := strings.ToLower(msg.Content)
		for _, topic := range vocabulary {
			if !seenTopics[topic] && strings.Contains(lower, topic) {
				seenTopics[topic] = true
				d.Topics = append(d.Topics, topic)
			}
		}

		if len(d.Decisions) < maxDecisions {
			d.Decisions = append(d.Decisions, extractDecisions(msg.Content, maxDecisions-len(d.Decisions))...)
		}
	}

	sort.Strings(d.Participants)
	sort.Strings(d.Topics)
	return d
}

// extractDecisions returns up to max lines that contain a decision
// indicator phrase. Heuristic by design; precision is traded for
// zero model calls.
func extractDecisions(content string, max int) []string {
	if max <= 0 {
		return nil
	}
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, indicator := range decisionIndicators {
			if strings.Contains(lower, indicator) {
				out = append(out, TruncateText(line, maxDecisionChars))
				break
			}
		}
		if len(out) >= max {
			break
		}
	}
	return out
}
