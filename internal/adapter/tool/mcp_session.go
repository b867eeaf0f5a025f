package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"cricsight/internal/domain"
	"cricsight/internal/infra/config"
)

// mcpCallTimeout is the default per-call timeout for MCP tool execution.
const mcpCallTimeout = 30 * time.Second

// MCPSession manages the lifecycle of connections to external MCP servers
// and exposes their tools as domain.Tool instances. No tool is visible
// until Initialize completes successfully; Close is idempotent and safe
// after a partial Initialize failure.
type MCPSession struct {
	configs []config.MCPServerConfig
	logger  *slog.Logger

	mu          sync.RWMutex
	servers     []mcpServerConn
	tools       []domain.Tool
	initialized bool
	closed      bool
}

type mcpServerConn struct {
	name   string
	client mcpClient
}

// mcpClient abstracts the MCP client interface for testability.
type mcpClient interface {
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// NewMCPSession creates an unconnected session for the configured servers.
// Call Initialize before requesting tools.
func NewMCPSession(servers []config.MCPServerConfig, logger *slog.Logger) *MCPSession {
	return &MCPSession{
		configs: servers,
		logger:  logger,
	}
}

// newMCPSessionWithClients creates an initialized session from pre-built
// clients (for testing).
func newMCPSessionWithClients(ctx context.Context, servers []mcpServerConn, logger *slog.Logger) (*MCPSession, error) {
	s := &MCPSession{
		servers: servers,
		logger:  logger,
	}
	if err := s.discoverTools(ctx); err != nil {
		return nil, err
	}
	s.initialized = true
	return s, nil
}

// Initialize connects to all configured servers and discovers their
// tools. Calling it again after success is a no-op. On failure every
// connection opened so far is closed; the session may be initialized
// again afterwards.
func (s *MCPSession) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	if s.closed {
		return domain.NewDomainError("MCPSession.Initialize", domain.ErrNotInitialized, "session closed")
	}

	for _, srv := range s.configs {
		conn, err := s.connectServer(ctx, srv)
		if err != nil {
			s.closeLocked()
			s.closed = false // partial failure: allow a retry
			return fmt.Errorf("mcp server %q: %w", srv.Name, err)
		}
		s.servers = append(s.servers, *conn)
	}

	if err := s.discoverTools(ctx); err != nil {
		s.closeLocked()
		s.closed = false
		return fmt.Errorf("discover tools: %w", err)
	}

	s.initialized = true
	return nil
}

func (s *MCPSession) connectServer(ctx context.Context, srv config.MCPServerConfig) (*mcpServerConn, error) {
	var c mcpClient
	var err error

	switch srv.Transport {
	case "stdio":
		env := envSlice(srv.Env)
		c, err = mcpclient.NewStdioMCPClient(srv.Command, env, srv.Args...)
		if err != nil {
			return nil, fmt.Errorf("create stdio client: %w", err)
		}
	case "http":
		t, tErr := transport.NewStreamableHTTP(srv.URL)
		if tErr != nil {
			return nil, fmt.Errorf("create http transport: %w", tErr)
		}
		httpClient := mcpclient.NewClient(t)
		if err = httpClient.Start(ctx); err != nil {
			return nil, fmt.Errorf("start http client: %w", err)
		}
		c = httpClient
	default:
		return nil, fmt.Errorf("unsupported transport %q", srv.Transport)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "cricsight",
		Version: "1.0.0",
	}

	if ic, ok := c.(interface {
		Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	}); ok {
		if _, err = ic.Initialize(ctx, initReq); err != nil {
			c.Close()
			return nil, domain.WrapOp("initialize", err)
		}
	}

	s.logger.Info("mcp server connected", "name", srv.Name, "transport", srv.Transport)

	return &mcpServerConn{
		name:   srv.Name,
		client: c,
	}, nil
}

func (s *MCPSession) discoverTools(ctx context.Context) error {
	var errs []string
	successCount := 0

	for _, srv := range s.servers {
		result, err := srv.client.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			s.logger.Warn("mcp server discovery failed, skipping",
				"server", srv.name,
				"error", err,
			)
			errs = append(errs, fmt.Sprintf("%s: %v", srv.name, err))
			continue
		}

		for _, t := range result.Tools {
			var tool domain.Tool = newMCPToolAdapter(srv.name, srv.client, t, s.logger)
			// Validate against the server's declared schema before any
			// arguments cross the wire.
			if wrapped, err := WithSchemaValidation(tool); err != nil {
				s.logger.Warn("schema validation disabled for mcp tool",
					"server", srv.name, "tool", t.Name, "error", err)
			} else {
				tool = wrapped
			}
			s.tools = append(s.tools, tool)
			s.logger.Debug("mcp tool discovered",
				"server", srv.name,
				"tool", t.Name)
		}

		s.logger.Info("mcp tools discovered", "server", srv.name, "count", len(result.Tools))
		successCount++
	}

	// Only fail if every server failed.
	if successCount == 0 && len(errs) > 0 {
		return fmt.Errorf("all mcp servers failed discovery: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Tools returns all discovered tools. It fails before Initialize has
// completed so that nothing can dispatch through a half-open session.
func (s *MCPSession) Tools() ([]domain.Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, domain.NewDomainError("MCPSession.Tools", domain.ErrNotInitialized, "initialize the session first")
	}
	return s.tools, nil
}

// Close shuts down all server connections. Safe to call multiple times
// and safe when Initialize never ran or failed partway.
func (s *MCPSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *MCPSession) closeLocked() {
	if s.closed {
		return
	}
	for _, srv := range s.servers {
		if err := srv.client.Close(); err != nil {
			s.logger.Warn("mcp server close error", "server", srv.name, "error", err)
		}
	}
	s.servers = nil
	s.tools = nil
	s.initialized = false
	s.closed = true
}

// --- MCP Tool Adapter ---

// mcpToolAdapter wraps a single MCP tool as a domain.Tool.
type mcpToolAdapter struct {
	serverName string
	client     mcpClient
	mcpTool    mcp.Tool
	fullName   string
	logger     *slog.Logger
}

func newMCPToolAdapter(serverName string, client mcpClient, t mcp.Tool, logger *slog.Logger) *mcpToolAdapter {
	return &mcpToolAdapter{
		serverName: serverName,
		client:     client,
		mcpTool:    t,
		fullName:   fmt.Sprintf("mcp_%s_%s", sanitizeName(serverName), sanitizeName(t.Name)),
		logger:     logger,
	}
}

func (a *mcpToolAdapter) Name() string {
	return a.fullName
}

func (a *mcpToolAdapter) Description() string {
	desc := a.mcpTool.Description
	if desc == "" {
		desc = fmt.Sprintf("MCP tool %q from server %q", a.mcpTool.Name, a.serverName)
	}
	return desc
}

func (a *mcpToolAdapter) Schema() domain.ToolSchema {
	params := json.RawMessage(`{"type": "object"}`)
	if a.mcpTool.InputSchema.Properties != nil || a.mcpTool.InputSchema.Required != nil {
		if data, err := json.Marshal(a.mcpTool.InputSchema); err == nil {
			params = data
		}
	}

	return domain.ToolSchema{
		Name:        a.fullName,
		Description: a.Description(),
		Parameters:  params,
	}
}

func (a *mcpToolAdapter) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	var args map[string]interface{}
	if len(params) > 0 && string(params) != "null" {
		if err := json.Unmarshal(params, &args); err != nil {
			return &domain.ToolResult{
				Content: fmt.Sprintf("invalid arguments: %v", err),
				IsError: true,
			}, nil
		}
	}

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = a.mcpTool.Name
	callReq.Params.Arguments = args

	a.logger.Debug("mcp tool call",
		"server", a.serverName,
		"tool", a.mcpTool.Name,
		"full_name", a.fullName)

	callCtx, cancel := context.WithTimeout(ctx, mcpCallTimeout)
	defer cancel()

	result, err := a.client.CallTool(callCtx, callReq)
	if err != nil {
		return &domain.ToolResult{
			Content:     fmt.Sprintf("MCP tool error: %v", err),
			IsError:     true,
			IsRetryable: true,
		}, nil
	}

	content := extractMCPContent(result)

	return &domain.ToolResult{
		Content: content,
		IsError: result.IsError,
	}, nil
}

// extractMCPContent converts MCP CallToolResult content to a string.
func extractMCPContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n")
}

// --- Helpers ---

// sanitizeName replaces characters that aren't valid in tool names.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// envSlice converts a map of env vars to KEY=VALUE slices.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}
