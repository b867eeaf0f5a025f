package domain

import (
	"context"
	"encoding/json"
)

// ToolSchema advertises a tool to the function-calling protocol.
// Parameters holds the raw JSON Schema for the tool's arguments.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is the model asking for a tool invocation.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult carries what a tool produced. IsRetryable marks transient
// failures the model may reasonably try again.
type ToolResult struct {
	ToolCallID  string `json:"tool_call_id"`
	Content     string `json:"content"`
	IsError     bool   `json:"is_error"`
	IsRetryable bool   `json:"is_retryable,omitempty"`
}

// ToolOutput pairs a tool name with the raw content it produced. A turn
// accumulates these across dispatch rounds, append-only, in request order.
type ToolOutput struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Tool is one callable capability exposed to the model.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolExecutor abstracts tool lookup for the agent loop.
type ToolExecutor interface {
	Get(name string) (Tool, error)
	Schemas() []ToolSchema
}
