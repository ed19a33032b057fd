// Package budget estimates prompt size and keeps the generator's tool-calling
// transcript inside a token budget. Chat backends use different tokenizers,
// so estimates use a character heuristic of 1 token per 4 characters.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// perMessageOverhead approximates the framing tokens each message costs.
	perMessageOverhead = 4

	// DefaultMaxContextTokens is the input budget applied to one model pass.
	DefaultMaxContextTokens = 8000
)

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated token count of msgs, including the
// tool call arguments an assistant message carries.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
		for _, tc := range m.ToolCalls {
			total += Estimate(tc.Function.Name) + Estimate(tc.Function.Arguments)
		}
	}
	return total
}

// TrimRounds drops the oldest tool rounds until fixed plus the remaining
// rounds fit within maxTokens. A round is an assistant message with tool
// calls followed by its tool results; rounds are dropped whole so every tool
// result keeps the call it answers. fixed (system prompt and question) is
// never dropped, and the newest round is always kept so the model sees the
// result it just asked for.
//
// The second return value is the number of rounds dropped.
func TrimRounds(fixed []*schema.Message, rounds [][]*schema.Message, maxTokens int) ([][]*schema.Message, int) {
	if maxTokens <= 0 || len(rounds) <= 1 {
		return rounds, 0
	}

	total := EstimateMessages(fixed)
	for _, r := range rounds {
		total += EstimateMessages(r)
	}

	dropped := 0
	for len(rounds) > 1 && total > maxTokens {
		total -= EstimateMessages(rounds[0])
		rounds = rounds[1:]
		dropped++
	}
	return rounds, dropped
}

// Flatten concatenates fixed and rounds into one message list.
func Flatten(fixed []*schema.Message, rounds [][]*schema.Message) []*schema.Message {
	n := len(fixed)
	for _, r := range rounds {
		n += len(r)
	}
	out := make([]*schema.Message, 0, n)
	out = append(out, fixed...)
	for _, r := range rounds {
		out = append(out, r...)
	}
	return out
}
