package usecase

import (
	"github.com/pkoukk/tiktoken-go"

	"cricsight/internal/domain"
)

// tokenOverheadPerMessage approximates the per-message framing cost of
// the chat format (role markers, separators).
const tokenOverheadPerMessage = 4

// TokenCounter estimates token usage for messages using the model's BPE
// encoding, with a characters/4 heuristic when the encoding is not
// available for the model.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter for the given model.
func NewTokenCounter(model string) *TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			enc = nil
		}
	}
	return &TokenCounter{enc: enc}
}

// Count returns the estimated token count of a text.
func (tc *TokenCounter) Count(text string) int {
	if tc.enc == nil {
		return len(text)/4 + 1
	}
	return len(tc.enc.Encode(text, nil, nil))
}

// CountMessage returns the estimated token count of one message,
// including framing overhead and tool call arguments.
func (tc *TokenCounter) CountMessage(msg domain.Message) int {
	n := tokenOverheadPerMessage + tc.Count(msg.Content)
	for _, call := range msg.ToolCalls {
		n += tc.Count(call.Name) + tc.Count(string(call.Arguments))
	}
	return n
}

// CountMessages sums the estimates over a message slice.
func (tc *TokenCounter) CountMessages(msgs []domain.Message) int {
	total := 0
	for _, m := range msgs {
		total += tc.CountMessage(m)
	}
	return total
}
