package usecase

import (
	"time"

	"cricsight/internal/domain"
)

// ContextBuilder constructs the prompt message array for LLM calls,
// keeping the conversation within a token budget.
type ContextBuilder struct {
	systemPrompt string
	model        string
	budgetTokens int
	maxTokens    int
	temperature  float64
	counter      *TokenCounter
}

// NewContextBuilder creates a context builder. budgetTokens bounds the
// history portion of the prompt; zero disables trimming.
func NewContextBuilder(systemPrompt, model string, budgetTokens int) *ContextBuilder {
	return &ContextBuilder{
		systemPrompt: systemPrompt,
		model:        model,
		budgetTokens: budgetTokens,
		counter:      NewTokenCounter(model),
	}
}

// WithSampling sets generation parameters applied to every request.
func (cb *ContextBuilder) WithSampling(maxTokens int, temperature float64) *ContextBuilder {
	cb.maxTokens = maxTokens
	cb.temperature = temperature
	return cb
}

// Build assembles: system prompt + trimmed conversation history.
func (cb *ContextBuilder) Build(history []domain.Message, tools []domain.ToolSchema) domain.ChatRequest {
	messages := make([]domain.Message, 0, 1+len(history))

	messages = append(messages, domain.Message{
		Role:      domain.RoleSystem,
		Content:   cb.systemPrompt,
		Timestamp: time.Now(),
	})
	messages = append(messages, cb.trimHistory(history)...)

	return domain.ChatRequest{
		Model:       cb.model,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   cb.maxTokens,
		Temperature: cb.temperature,
	}
}

// trimHistory drops the oldest messages once the token budget is
// exceeded. Messages are dropped in atomic groups so an assistant
// message with tool calls is never separated from its tool results.
func (cb *ContextBuilder) trimHistory(history []domain.Message) []domain.Message {
	if cb.budgetTokens <= 0 {
		return history
	}
	if cb.counter.CountMessages(history) <= cb.budgetTokens {
		return history
	}

	groups := groupMessages(history)

	// Keep groups from the end until the budget is spent. The newest
	// group is always kept, even when it alone exceeds the budget.
	var kept [][]domain.Message
	total := 0
	for i := len(groups) - 1; i >= 0; i-- {
		groupTokens := 0
		for _, m := range groups[i] {
			groupTokens += cb.counter.CountMessage(m)
		}
		if total+groupTokens > cb.budgetTokens && total > 0 {
			break
		}
		kept = append(kept, groups[i])
		total += groupTokens
	}

	// Reverse to restore chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	result := make([]domain.Message, 0, len(history))
	for _, g := range kept {
		result = append(result, g...)
	}
	return result
}

// groupMessages partitions messages into atomic groups.
// An assistant message with tool calls and its immediately following
// tool result messages form a single group. All other messages are
// individual groups.
func groupMessages(msgs []domain.Message) [][]domain.Message {
	var groups [][]domain.Message
	i := 0
	for i < len(msgs) {
		msg := msgs[i]
		if msg.Role == domain.RoleAssistant && len(msg.ToolCalls) > 0 {
			group := []domain.Message{msg}
			j := i + 1
			for j < len(msgs) && msgs[j].Role == domain.RoleTool {
				group = append(group, msgs[j])
				j++
			}
			groups = append(groups, group)
			i = j
		} else {
			groups = append(groups, []domain.Message{msg})
			i++
		}
	}
	return groups
}
