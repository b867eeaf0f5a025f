package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"cricsight/internal/domain"
)

// SchemaValidatingTool rejects params that fail the tool's declared JSON
// Schema before the inner tool ever sees them.
type SchemaValidatingTool struct {
	inner  domain.Tool
	schema *jsonschema.Schema
}

// WithSchemaValidation wraps t with schema enforcement. Tools without a
// parameter schema pass through unwrapped; a schema that fails to compile
// is a programming error and surfaces at registration time.
func WithSchemaValidation(t domain.Tool) (domain.Tool, error) {
	raw := t.Schema().Parameters
	if len(raw) == 0 || string(raw) == "null" {
		return t, nil
	}

	compiled, err := compileSchema(t.Name(), raw)
	if err != nil {
		return nil, err
	}
	return &SchemaValidatingTool{inner: t, schema: compiled}, nil
}

func compileSchema(toolName string, raw json.RawMessage) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", toolName, err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", toolName, err)
	}
	return compiled, nil
}

func (s *SchemaValidatingTool) Name() string              { return s.inner.Name() }
func (s *SchemaValidatingTool) Description() string       { return s.inner.Description() }
func (s *SchemaValidatingTool) Schema() domain.ToolSchema { return s.inner.Schema() }

func (s *SchemaValidatingTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}

	var decoded any
	if err := json.Unmarshal(params, &decoded); err != nil {
		return &domain.ToolResult{IsError: true, Content: fmt.Sprintf("invalid JSON: %v", err)}, nil
	}
	if err := s.schema.Validate(decoded); err != nil {
		return &domain.ToolResult{IsError: true, Content: fmt.Sprintf("schema validation failed: %v", err)}, nil
	}
	return s.inner.Execute(ctx, params)
}
