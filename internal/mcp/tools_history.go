package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerHistoryTools() {
	// ── undo / redo ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Restore the page as it was before its last edit"),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
	), s.handler("undo", s.handleUndo))

	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Re-apply the most recently undone edit"),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
	), s.handler("redo", s.handleRedo))

	// ── get_history ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("List the undo tree of a page: every recorded edit, its parent and the current node"),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handler("get_history", s.handleGetHistory))

	// ── restore_history ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("restore_history",
		mcp.WithDescription("Restore the page to any node of its undo tree, including abandoned branches"),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
		mcp.WithString("nodeId", mcp.Description("Node ID from get_history"), mcp.Required()),
	), s.handler("restore_history", s.handleRestoreHistory))
}

func (s *Server) handleUndo(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, err := requireArg(req, "pageId")
	if err != nil {
		return nil, err
	}
	c, err := s.editor.Undo(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return outline(c), nil
}

func (s *Server) handleRedo(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, err := requireArg(req, "pageId")
	if err != nil {
		return nil, err
	}
	c, err := s.editor.Redo(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return outline(c), nil
}

func (s *Server) handleGetHistory(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, err := requireArg(req, "pageId")
	if err != nil {
		return nil, err
	}
	return s.editor.History(ctx, pageID)
}

func (s *Server) handleRestoreHistory(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, err := requireArg(req, "pageId")
	if err != nil {
		return nil, err
	}
	nodeID, err := requireArg(req, "nodeId")
	if err != nil {
		return nil, err
	}
	c, err := s.editor.JumpTo(ctx, pageID, nodeID)
	if err != nil {
		return nil, err
	}
	return outline(c), nil
}
