package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"pagecraft/internal/domain"
	"pagecraft/internal/registry"
)

func (s *Server) registerPageTools() {
	// ── list_pages ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List all pages"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handler("list_pages", s.handleListPages))

	// ── create_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_page",
		mcp.WithDescription("Create a new empty page"),
		mcp.WithString("name", mcp.Description("Name of the new page"), mcp.Required()),
	), s.handler("create_page", s.handleCreatePage))

	// ── get_composition ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_composition",
		mcp.WithDescription("Return the block tree of a page, with every block's type and props"),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handler("get_composition", s.handleGetComposition))

	// ── list_block_types ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_block_types",
		mcp.WithDescription("List the block types that can be inserted, with their props schema and nesting rules"),
		mcp.WithString("category", mcp.Description("Only list this category (optional)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handler("list_block_types", s.handleListBlockTypes))
}

func (s *Server) handleListPages(ctx context.Context, _ mcp.CallToolRequest) (any, error) {
	return s.editor.ListPages(ctx)
}

func (s *Server) handleCreatePage(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	name, err := requireArg(req, "name")
	if err != nil {
		return nil, err
	}
	return s.editor.CreatePage(ctx, name)
}

// blockNode is the nested view of a composition handed to agents.
type blockNode struct {
	ID       string           `json:"id"`
	Type     domain.BlockType `json:"type"`
	Props    domain.Props     `json:"props"`
	Children []blockNode      `json:"children,omitempty"`
}

type compositionView struct {
	PageID  string      `json:"pageId"`
	Version int64       `json:"version"`
	Blocks  []blockNode `json:"blocks"`
}

func outline(c domain.Composition) compositionView {
	var walk func(ids []string) []blockNode
	walk = func(ids []string) []blockNode {
		nodes := make([]blockNode, 0, len(ids))
		for _, id := range ids {
			b, ok := c.Blocks[id]
			if !ok {
				continue
			}
			nodes = append(nodes, blockNode{ID: b.ID, Type: b.Type, Props: b.Props, Children: walk(b.Children)})
		}
		return nodes
	}
	return compositionView{PageID: c.PageID, Version: c.Version, Blocks: walk(c.RootOrder)}
}

func (s *Server) handleGetComposition(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, err := requireArg(req, "pageId")
	if err != nil {
		return nil, err
	}
	c, err := s.editor.Composition(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return outline(c), nil
}

func (s *Server) handleListBlockTypes(_ context.Context, req mcp.CallToolRequest) (any, error) {
	reg := s.editor.Model().Registry()
	defs := reg.All()
	if cat := req.GetString("category", ""); cat != "" {
		defs = reg.ListByCategory(cat)
	}
	var out []registry.Definition
	for d := range defs {
		out = append(out, d)
	}
	return out, nil
}
