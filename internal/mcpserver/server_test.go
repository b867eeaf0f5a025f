package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"cricsight/internal/adapter/tool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := testLogger()
	registry := tool.NewRegistry(logger)
	if err := registry.Register(tool.NewSampleQueriesTool("/tmp/cricket.db", logger)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(tool.NewExecuteSQLTool(nil, "/missing/cricket.db", logger)); err != nil {
		t.Fatalf("register: %v", err)
	}
	return New(registry, logger)
}

func callRequest(name string, args map[string]any) mcplib.CallToolRequest {
	req := mcplib.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("content blocks = %d, want 1", len(result.Content))
	}
	tc, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want TextContent", result.Content[0])
	}
	return tc.Text
}

func TestHandlerDelegatesToRegistry(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handler("get_sample_queries")(context.Background(), callRequest("get_sample_queries", nil))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if result.IsError {
		t.Fatalf("IsError = true: %s", textOf(t, result))
	}

	var payload struct {
		Queries []any `json:"queries"`
	}
	if err := json.Unmarshal([]byte(textOf(t, result)), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(payload.Queries) == 0 {
		t.Error("no sample queries returned")
	}
}

func TestHandlerMissingDatabaseHint(t *testing.T) {
	s := newTestServer(t)

	req := callRequest("execute_sql", map[string]any{"sql": "SELECT 1"})
	result, err := s.handler("execute_sql")(context.Background(), req)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	text := textOf(t, result)
	if !strings.Contains(text, "Statistics database not found at /missing/cricket.db") {
		t.Errorf("text = %s", text)
	}
	if !strings.Contains(text, "hint") {
		t.Errorf("missing hint field: %s", text)
	}
}

func TestHandlerUnknownTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handler("nope")(context.Background(), callRequest("nope", nil))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !result.IsError {
		t.Error("IsError = false for unknown tool")
	}
	if !strings.Contains(textOf(t, result), "Unknown tool: nope") {
		t.Errorf("text = %s", textOf(t, result))
	}
}

func TestNewExposesRegistrySchemas(t *testing.T) {
	s := newTestServer(t)
	if s.MCPServer() == nil {
		t.Fatal("MCPServer() = nil")
	}
	if got := len(s.registry.Schemas()); got != 2 {
		t.Errorf("schemas = %d, want 2", got)
	}
}
