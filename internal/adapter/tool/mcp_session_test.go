package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"cricsight/internal/domain"
)

// mockMCPClient implements mcpClient for testing.
type mockMCPClient struct {
	tools    []mcp.Tool
	callFunc func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	closed   int
	listErr  error
}

func (m *mockMCPClient) ListTools(_ context.Context, _ mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return &mcp.ListToolsResult{
		Tools: m.tools,
	}, nil
}

func (m *mockMCPClient) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if m.callFunc != nil {
		return m.callFunc(ctx, req)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(fmt.Sprintf("called %s", req.Params.Name)),
		},
	}, nil
}

func (m *mockMCPClient) Close() error {
	m.closed++
	return nil
}

func TestMCPSessionDiscoverTools(t *testing.T) {
	mock := &mockMCPClient{
		tools: []mcp.Tool{
			{Name: "get_database_schema", Description: "Get schema"},
			{Name: "execute_sql", Description: "Run SQL"},
		},
	}

	session, err := newMCPSessionWithClients(context.Background(), []mcpServerConn{
		{name: "cricket", client: mock},
	}, testLogger())
	if err != nil {
		t.Fatalf("newMCPSessionWithClients: %v", err)
	}
	defer session.Close()

	tools, err := session.Tools()
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("Tools count = %d, want 2", len(tools))
	}
	if tools[0].Name() != "mcp_cricket_get_database_schema" {
		t.Errorf("tools[0].Name = %q", tools[0].Name())
	}
	if tools[1].Name() != "mcp_cricket_execute_sql" {
		t.Errorf("tools[1].Name = %q", tools[1].Name())
	}
}

func TestMCPSessionToolsBeforeInitialize(t *testing.T) {
	session := NewMCPSession(nil, testLogger())

	_, err := session.Tools()
	if !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("err = %v, want ErrNotInitialized", err)
	}
}

func TestMCPSessionInitializeNoServers(t *testing.T) {
	session := NewMCPSession(nil, testLogger())

	if err := session.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	tools, err := session.Tools()
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	if len(tools) != 0 {
		t.Errorf("Tools count = %d, want 0", len(tools))
	}
	// A second Initialize is a no-op.
	if err := session.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
}

func TestMCPSessionCloseIdempotent(t *testing.T) {
	mock := &mockMCPClient{
		tools: []mcp.Tool{{Name: "search", Description: "Search"}},
	}
	session, err := newMCPSessionWithClients(context.Background(), []mcpServerConn{
		{name: "srv", client: mock},
	}, testLogger())
	if err != nil {
		t.Fatalf("newMCPSessionWithClients: %v", err)
	}

	session.Close()
	session.Close()
	if mock.closed != 1 {
		t.Errorf("client closed %d times, want 1", mock.closed)
	}

	if _, err := session.Tools(); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("Tools after Close: err = %v, want ErrNotInitialized", err)
	}
}

func TestMCPSessionCloseBeforeInitialize(t *testing.T) {
	session := NewMCPSession(nil, testLogger())
	session.Close() // must not panic
	session.Close()
}

func TestMCPSessionAllServersFailDiscovery(t *testing.T) {
	mock := &mockMCPClient{
		listErr: fmt.Errorf("connection refused"),
	}

	_, err := newMCPSessionWithClients(context.Background(), []mcpServerConn{
		{name: "bad-server", client: mock},
	}, testLogger())
	if err == nil {
		t.Error("expected error when all servers fail discovery")
	}
}

func TestMCPSessionPartialDiscoveryFailure(t *testing.T) {
	mockOK := &mockMCPClient{
		tools: []mcp.Tool{{Name: "search", Description: "Search"}},
	}
	mockBad := &mockMCPClient{
		listErr: fmt.Errorf("connection refused"),
	}

	session, err := newMCPSessionWithClients(context.Background(), []mcpServerConn{
		{name: "good", client: mockOK},
		{name: "bad", client: mockBad},
	}, testLogger())
	if err != nil {
		t.Fatalf("newMCPSessionWithClients: %v", err)
	}
	defer session.Close()

	tools, err := session.Tools()
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	if len(tools) != 1 {
		t.Errorf("Tools count = %d, want 1 (only the healthy server)", len(tools))
	}
}

func TestMCPToolAdapterExecute(t *testing.T) {
	mock := &mockMCPClient{
		tools: []mcp.Tool{{Name: "execute_sql", Description: "Run SQL"}},
		callFunc: func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(`{"row_count": 3}`)},
			}, nil
		},
	}
	session, err := newMCPSessionWithClients(context.Background(), []mcpServerConn{
		{name: "cricket", client: mock},
	}, testLogger())
	if err != nil {
		t.Fatalf("newMCPSessionWithClients: %v", err)
	}
	defer session.Close()

	tools, _ := session.Tools()
	result, err := tools[0].Execute(context.Background(), json.RawMessage(`{"sql": "SELECT 1"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}
	if result.Content != `{"row_count": 3}` {
		t.Errorf("Content = %q", result.Content)
	}
}

func TestMCPToolAdapterCallError(t *testing.T) {
	mock := &mockMCPClient{
		tools: []mcp.Tool{{Name: "flaky", Description: "Flaky tool"}},
		callFunc: func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return nil, fmt.Errorf("transport broke")
		},
	}
	session, err := newMCPSessionWithClients(context.Background(), []mcpServerConn{
		{name: "srv", client: mock},
	}, testLogger())
	if err != nil {
		t.Fatalf("newMCPSessionWithClients: %v", err)
	}
	defer session.Close()

	tools, _ := session.Tools()
	result, err := tools[0].Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result")
	}
	if !result.IsRetryable {
		t.Error("transport errors should be retryable")
	}
}

func TestExtractMCPContentMixed(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent("first"),
			mcp.NewTextContent("second"),
		},
	}
	if got := extractMCPContent(result); got != "first\nsecond" {
		t.Errorf("extractMCPContent = %q", got)
	}
}
