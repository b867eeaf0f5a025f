package usecase

import (
	"context"
	"io"
	"log/slog"

	"cricsight/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedLLM replays a fixed sequence of responses, then keeps
// returning the last one.
type scriptedLLM struct {
	responses []*domain.ChatResponse
	errs      []error
	calls     int
	requests  []domain.ChatRequest
}

func (s *scriptedLLM) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	s.requests = append(s.requests, req)
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func (s *scriptedLLM) Name() string { return "scripted" }

func assistantText(content string) *domain.ChatResponse {
	return &domain.ChatResponse{
		Message: domain.Message{
			Role:    domain.RoleAssistant,
			Content: content,
		},
	}
}

func assistantToolCalls(calls ...domain.ToolCall) *domain.ChatResponse {
	return &domain.ChatResponse{
		Message: domain.Message{
			Role:      domain.RoleAssistant,
			Content:   "let me look that up",
			ToolCalls: calls,
		},
	}
}

// recordingDispatcher returns canned content per tool name and records
// invocation order.
type recordingDispatcher struct {
	content map[string]string
	invoked []string
}

func (d *recordingDispatcher) Invoke(_ context.Context, call domain.ToolCall) *domain.ToolResult {
	d.invoked = append(d.invoked, call.Name)
	content, ok := d.content[call.Name]
	if !ok {
		return &domain.ToolResult{
			ToolCallID: call.ID,
			Content:    `{"error": "Unknown tool: ` + call.Name + `"}`,
			IsError:    true,
		}
	}
	return &domain.ToolResult{ToolCallID: call.ID, Content: content}
}

func (d *recordingDispatcher) Schemas() []domain.ToolSchema {
	return []domain.ToolSchema{}
}

func newTestAgent(llm domain.LLMProvider, tools ToolDispatcher) *Agent {
	return NewAgent(AgentDeps{
		LLM:            llm,
		Tools:          tools,
		ContextBuilder: NewContextBuilder(DefaultSystemPrompt(), "gpt-4o", 0),
		Synthesizer:    NewSynthesizer(llm, "gpt-4o", testLogger()),
		Logger:         testLogger(),
		MaxToolRounds:  10,
	})
}
