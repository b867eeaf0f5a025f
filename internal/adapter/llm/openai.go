package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cricsight/internal/domain"
	"cricsight/internal/infra/config"
	"cricsight/internal/infra/tracer"
)

// OpenAIProvider speaks the chat completions API, which also covers any
// OpenAI-compatible endpoint (vLLM, llama.cpp server, OpenRouter).
type OpenAIProvider struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewOpenAIProvider(cfg config.ProviderConfig, logger *slog.Logger) *OpenAIProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		name:    cfg.Name,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  NewHTTPClient(cfg),
		logger:  logger,
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := startChatSpan(ctx, p.name, req.Model)
	defer span.End()

	if req.Model == "" {
		req.Model = p.model
	}

	header := http.Header{}
	if p.apiKey != "" {
		header.Set("Authorization", "Bearer "+p.apiKey)
	}

	raw, err := postChat(ctx, p.client, p.baseURL+"/chat/completions", toOpenAIRequest(req), header)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var reply openaiResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	resp := reply.toDomain()
	finishChat(span, p.logger, p.name, resp)
	return resp, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

// --- chat completions wire types ---

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Tools       []openaiTool    `json:"tools,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	Name       string           `json:"name,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type openaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func toOpenAIRequest(req domain.ChatRequest) openaiRequest {
	out := openaiRequest{
		Model:    req.Model,
		Messages: make([]openaiMessage, 0, len(req.Messages)),
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		out.Temperature = &req.Temperature
	}

	for _, m := range req.Messages {
		out.Messages = append(out.Messages, toOpenAIMessage(m))
	}

	for _, t := range req.Tools {
		var ot openaiTool
		ot.Type = "function"
		ot.Function.Name = t.Name
		ot.Function.Description = t.Description
		ot.Function.Parameters = t.Parameters
		out.Tools = append(out.Tools, ot)
	}
	return out
}

func toOpenAIMessage(m domain.Message) openaiMessage {
	msg := openaiMessage{
		Role:    m.Role,
		Content: m.Content,
		Name:    m.Name,
	}

	// A tool-result message links back to its call via tool_call_id and
	// never carries tool_calls itself.
	if m.Role == domain.RoleTool {
		if len(m.ToolCalls) > 0 {
			msg.ToolCallID = m.ToolCalls[0].ID
		}
		return msg
	}

	for _, tc := range m.ToolCalls {
		var call openaiToolCall
		call.ID = tc.ID
		call.Type = "function"
		call.Function.Name = tc.Name
		call.Function.Arguments = string(tc.Arguments)
		msg.ToolCalls = append(msg.ToolCalls, call)
	}
	return msg
}

func (r openaiResponse) toDomain() *domain.ChatResponse {
	resp := &domain.ChatResponse{
		ID:        r.ID,
		Model:     r.Model,
		CreatedAt: time.Unix(r.Created, 0),
		Usage: domain.Usage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		},
	}

	msg := domain.Message{Role: domain.RoleAssistant, Timestamp: time.Now()}
	if len(r.Choices) > 0 {
		choice := r.Choices[0].Message
		msg.Content = choice.Content
		for _, tc := range choice.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
	}
	resp.Message = msg
	return resp
}

var _ domain.LLMProvider = (*OpenAIProvider)(nil)
