// Package mcpserver exposes the cricket tool catalog over the Model
// Context Protocol, so MCP-compatible agents can query the statistics
// database and the news index without going through the chat loop.
package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"cricsight/internal/adapter/tool"
	"cricsight/internal/domain"
)

// Server wraps the mcp-go server around the tool registry. Every tool
// keeps the exact name, description, and input schema it advertises to
// the chat loop.
type Server struct {
	mcpServer *mcpserver.MCPServer
	registry  *tool.Registry
	logger    *slog.Logger
}

// New creates an MCP server exposing every registered tool.
func New(registry *tool.Registry, logger *slog.Logger) *Server {
	s := &Server{
		registry: registry,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"cricsight",
		"0.1.0",
		mcpserver.WithToolCapabilities(true),
	)

	for _, schema := range registry.Schemas() {
		s.mcpServer.AddTool(
			mcplib.NewToolWithRawSchema(schema.Name, schema.Description, schema.Parameters),
			s.handler(schema.Name),
		)
	}

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// ServeStdio blocks serving the MCP protocol over stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("mcp server listening on stdio",
		"tools", len(s.registry.Schemas()))
	return mcpserver.ServeStdio(s.mcpServer)
}

// handler adapts one registry tool into an mcp-go tool handler. The
// registry produces the error payloads, so a handler never fails the
// protocol call itself.
func (s *Server) handler(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		args, err := json.Marshal(request.GetArguments())
		if err != nil {
			return errorResult("invalid tool arguments: " + err.Error()), nil
		}

		result := s.registry.Invoke(ctx, domain.ToolCall{
			ID:        request.Params.Name,
			Name:      name,
			Arguments: args,
		})

		s.logger.Debug("mcp tool call",
			"tool", name,
			"is_error", result.IsError,
		)

		return &mcplib.CallToolResult{
			Content: []mcplib.Content{
				mcplib.TextContent{Type: "text", Text: result.Content},
			},
			IsError: result.IsError,
		}, nil
	}
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
