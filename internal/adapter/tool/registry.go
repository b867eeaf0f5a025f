// Package tool implements the fixed cricket tool catalog and the
// registry that dispatches LLM tool calls to it.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"cricsight/internal/domain"
)

// Registry holds named tools.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]domain.Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
// If logger is non-nil, tools are wrapped with schema validation on Register;
// compilation errors are logged and the tool is registered unwrapped.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]domain.Tool),
		logger: logger,
	}
}

// Register adds a tool. Returns error if name already registered.
func (r *Registry) Register(t domain.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	if r.logger != nil {
		wrapped, err := WithSchemaValidation(t)
		if err != nil {
			r.logger.Warn("schema validation disabled for tool",
				"tool", name, "error", err)
		} else {
			t = wrapped
		}
	}

	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

// Schemas returns all tool schemas in registration order, for LLM
// function-calling.
func (r *Registry) Schemas() []domain.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]domain.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.tools[name].Schema())
	}
	return schemas
}

// Invoke dispatches a single tool call and always produces a result the
// reasoning loop can feed back to the LLM. An unknown tool name and a
// tool failure both come back as error-shaped JSON content, never as a
// returned error.
func (r *Registry) Invoke(ctx context.Context, call domain.ToolCall) *domain.ToolResult {
	t, err := r.Get(call.Name)
	if err != nil {
		return &domain.ToolResult{
			ToolCallID: call.ID,
			Content:    errorJSON(map[string]any{"error": "Unknown tool: " + call.Name}),
			IsError:    true,
		}
	}

	result, err := t.Execute(ctx, call.Arguments)
	if err != nil {
		var args any
		if len(call.Arguments) > 0 {
			_ = json.Unmarshal(call.Arguments, &args)
		}
		if r.logger != nil {
			r.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		}
		return &domain.ToolResult{
			ToolCallID: call.ID,
			Content: errorJSON(map[string]any{
				"error":     fmt.Sprintf("Tool execution failed: %v", err),
				"tool":      call.Name,
				"arguments": args,
			}),
			IsError:     true,
			IsRetryable: classifyToolError(err),
		}
	}

	result.ToolCallID = call.ID
	return result
}

func errorJSON(v map[string]any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, fmt.Sprint(v["error"]))
	}
	return string(data)
}
