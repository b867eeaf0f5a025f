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

const (
	anthropicVersion          = "2023-06-01"
	anthropicDefaultMaxTokens = 4096
)

// AnthropicProvider speaks the Anthropic Messages API.
type AnthropicProvider struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewAnthropicProvider(cfg config.ProviderConfig, logger *slog.Logger) *AnthropicProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &AnthropicProvider{
		name:    cfg.Name,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  NewHTTPClient(cfg),
		logger:  logger,
	}
}

func (p *AnthropicProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := startChatSpan(ctx, p.name, req.Model)
	defer span.End()

	if req.Model == "" {
		req.Model = p.model
	}

	header := http.Header{}
	header.Set("x-api-key", p.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	raw, err := postChat(ctx, p.client, p.baseURL+"/v1/messages", toAnthropicRequest(req), header)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var reply anthropicResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	resp := reply.toDomain()
	finishChat(span, p.logger, p.name, resp)
	return resp, nil
}

func (p *AnthropicProvider) Name() string { return p.name }

// --- Messages API wire types ---

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Content []anthropicContent `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func toAnthropicRequest(req domain.ChatRequest) anthropicRequest {
	out := anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = anthropicDefaultMaxTokens
	}

	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			// The Messages API takes the system prompt out of band.
			out.System = m.Content
		case domain.RoleTool:
			out.Messages = append(out.Messages, toolResultMessage(m))
		default:
			out.Messages = append(out.Messages, contentMessage(m))
		}
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}
	return out
}

// toolResultMessage renders a tool output as a user-role tool_result block.
// The originating call ID rides in ToolCalls[0].
func toolResultMessage(m domain.Message) anthropicMessage {
	var callID string
	if len(m.ToolCalls) > 0 {
		callID = m.ToolCalls[0].ID
	}
	return anthropicMessage{
		Role: "user",
		Content: []anthropicContent{{
			Type:      "tool_result",
			ToolUseID: callID,
			Content:   m.Content,
		}},
	}
}

// contentMessage renders a user or assistant message, expanding any tool
// calls into tool_use blocks after the text.
func contentMessage(m domain.Message) anthropicMessage {
	msg := anthropicMessage{Role: m.Role}
	if m.Content != "" || len(m.ToolCalls) == 0 {
		msg.Content = append(msg.Content, anthropicContent{Type: "text", Text: m.Content})
	}
	for _, tc := range m.ToolCalls {
		msg.Content = append(msg.Content, anthropicContent{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Name,
			Input: tc.Arguments,
		})
	}
	return msg
}

func (r anthropicResponse) toDomain() *domain.ChatResponse {
	now := time.Now()
	msg := domain.Message{Role: domain.RoleAssistant, Timestamp: now}

	for _, block := range r.Content {
		switch block.Type {
		case "text":
			msg.Content = block.Text
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}

	return &domain.ChatResponse{
		ID:        r.ID,
		Model:     r.Model,
		Message:   msg,
		CreatedAt: now,
		Usage: domain.Usage{
			PromptTokens:     r.Usage.InputTokens,
			CompletionTokens: r.Usage.OutputTokens,
			TotalTokens:      r.Usage.InputTokens + r.Usage.OutputTokens,
		},
	}
}

var _ domain.LLMProvider = (*AnthropicProvider)(nil)
