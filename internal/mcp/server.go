package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"pagecraft/internal/domain"
	"pagecraft/internal/revision"
	"pagecraft/internal/service"
)

// Server is the MCP server of the page editor. It exposes tools, resources
// and prompts so AI agents can read and edit compositions and answer
// revision comments.
type Server struct {
	mcp       *server.MCPServer
	editor    *service.Editor
	revisions *revision.Protocol
	agent     *AgentQueue
	userID    string
	log       *zap.Logger
}

// Deps holds everything the server needs from the application layer.
type Deps struct {
	Editor    *service.Editor
	Revisions *revision.Protocol
	// Agent is the queue the Revisions protocol submits to.
	Agent *AgentQueue
	// UserID authors comments submitted through the tools.
	UserID  string
	Logger  *zap.Logger
	Version string
}

// New creates and configures the MCP server with all tools and resources.
func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	userID := deps.UserID
	if userID == "" {
		userID = "agent"
	}
	s := &Server{
		editor:    deps.Editor,
		revisions: deps.Revisions,
		agent:     deps.Agent,
		userID:    userID,
		log:       log,
	}

	s.mcp = server.NewMCPServer(
		"pagecraft-mcp",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerPageTools()
	s.registerBlockTools()
	s.registerVariantTools()
	s.registerHistoryTools()
	if s.revisions != nil {
		s.registerRevisionTools()
	}
	s.registerResources()
	s.registerPrompts()
	return s
}

// MCP exposes the underlying server, for transports and tests.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio serves on stdin/stdout until the client disconnects or ctx
// is done.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.log.Info("starting MCP stdio server")
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.log))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// toolError reports an editor failure to the agent as a tool error tagged
// with its kind, so the agent can tell a bad request from a broken server.
func (s *Server) toolError(tool string, err error) (*mcp.CallToolResult, error) {
	kind := domain.Kind(err)
	s.log.Debug("tool failed", zap.String("tool", tool), zap.String("kind", kind), zap.Error(err))
	res := mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err))
	if verr, ok := asValidation(err); ok {
		res.StructuredContent = map[string]any{"kind": kind, "fields": verr.Fields}
	} else {
		res.StructuredContent = map[string]any{"kind": kind}
	}
	return res, nil
}

// handler wraps tool handlers that report editor failures as tool errors.
func (s *Server) handler(tool string, fn func(ctx context.Context, req mcp.CallToolRequest) (any, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		v, err := fn(ctx, req)
		if err != nil {
			return s.toolError(tool, err)
		}
		if text, ok := v.(string); ok {
			return textResult(text), nil
		}
		return jsonResult(v)
	}
}
