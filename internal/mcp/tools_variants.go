package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"pagecraft/internal/domain"
)

func (s *Server) registerVariantTools() {
	// ── list_variants ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_variants",
		mcp.WithDescription("List the preset variants of a block type, or of the type of a given block"),
		mcp.WithString("blockType", mcp.Description("Block type (use this or pageId + blockId)")),
		mcp.WithString("pageId", mcp.Description("Page ID")),
		mcp.WithString("blockId", mcp.Description("Block ID")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handler("list_variants", s.handleListVariants))

	// ── apply_variant ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("apply_variant",
		mcp.WithDescription("Apply a preset to a block. Only the preset's fields change; the block keeps its id and children."),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("variantId", mcp.Description("Variant ID from list_variants"), mcp.Required()),
	), s.handler("apply_variant", s.handleApplyVariant))
}

func (s *Server) handleListVariants(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	if t := req.GetString("blockType", ""); t != "" {
		if _, err := s.editor.Model().Registry().Get(domain.BlockType(t)); err != nil {
			return nil, err
		}
		return s.editor.Variants().VariantsFor(domain.BlockType(t)), nil
	}
	pageID, blockID, err := pageAndBlock(req)
	if err != nil {
		return nil, err
	}
	return s.editor.VariantsFor(ctx, pageID, blockID)
}

func (s *Server) handleApplyVariant(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, blockID, err := pageAndBlock(req)
	if err != nil {
		return nil, err
	}
	variantID, err := requireArg(req, "variantId")
	if err != nil {
		return nil, err
	}
	c, prev, err := s.editor.ApplyVariant(ctx, pageID, blockID, variantID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"block": c.Blocks[blockID], "previous": prev}, nil
}
