package tool

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"cricsight/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTool is a minimal domain.Tool for registry tests.
type fakeTool struct {
	name    string
	params  string
	execute func(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error)
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake tool " + f.name }

func (f *fakeTool) Schema() domain.ToolSchema {
	params := f.params
	if params == "" {
		params = `{"type": "object", "properties": {}}`
	}
	return domain.ToolSchema{
		Name:        f.name,
		Description: f.Description(),
		Parameters:  json.RawMessage(params),
	}
}

func (f *fakeTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	if f.execute != nil {
		return f.execute(ctx, params)
	}
	return &domain.ToolResult{Content: "ok"}, nil
}
