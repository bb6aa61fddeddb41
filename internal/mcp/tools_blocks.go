package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pagecraft/internal/domain"
)

func (s *Server) registerBlockTools() {
	// ── insert_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("insert_block",
		mcp.WithDescription("Insert a new block with default props. Nesting rules of list_block_types apply."),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
		mcp.WithString("type", mcp.Description("Block type, e.g. hero, features, button"), mcp.Required()),
		mcp.WithString("parentId", mcp.Description("Container block ID (optional, page root if omitted)")),
		mcp.WithNumber("index", mcp.Description("Position among the container's children (optional, appends if omitted)")),
	), s.handler("insert_block", s.handleInsertBlock))

	// ── move_block ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_block",
		mcp.WithDescription("Move a block with its children to another position. The index counts the destination's children without the moved block."),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("parentId", mcp.Description("Destination container ID (optional, page root if omitted)")),
		mcp.WithNumber("index", mcp.Description("Destination index"), mcp.Required()),
	), s.handler("move_block", s.handleMoveBlock))

	// ── duplicate_block ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("duplicate_block",
		mcp.WithDescription("Copy a block and its children right after the original"),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
	), s.handler("duplicate_block", s.handleDuplicateBlock))

	// ── delete_block (destructive) ─────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_block",
		mcp.WithDescription("DESTRUCTIVE: delete a block and everything inside it"),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID to delete"), mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	), s.handler("delete_block", s.handleDeleteBlock))

	// ── set_block_props ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_block_props",
		mcp.WithDescription("Merge a props patch into a block. The whole patch is validated against the block's schema; a null value resets a field to its default."),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithObject("props", mcp.Description("Fields to change"), mcp.Required()),
	), s.handler("set_block_props", s.handleSetBlockProps))

	// ── get_block_fields ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_block_fields",
		mcp.WithDescription("Describe every editable field of a block with its current value"),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handler("get_block_fields", s.handleGetBlockFields))
}

func pageAndBlock(req mcp.CallToolRequest) (string, string, error) {
	pageID, err := requireArg(req, "pageId")
	if err != nil {
		return "", "", err
	}
	blockID, err := requireArg(req, "blockId")
	if err != nil {
		return "", "", err
	}
	return pageID, blockID, nil
}

func (s *Server) handleInsertBlock(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, err := requireArg(req, "pageId")
	if err != nil {
		return nil, err
	}
	blockType, err := requireArg(req, "type")
	if err != nil {
		return nil, err
	}
	parentID := req.GetString("parentId", "")
	index := indexArg(req)
	if index < 0 {
		c, err := s.editor.Composition(ctx, pageID)
		if err != nil {
			return nil, err
		}
		siblings, _ := c.Container(parentID)
		index = len(siblings)
	}
	_, b, err := s.editor.Insert(ctx, pageID, domain.BlockType(blockType), parentID, index)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Server) handleMoveBlock(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, blockID, err := pageAndBlock(req)
	if err != nil {
		return nil, err
	}
	index := indexArg(req)
	if index < 0 {
		return nil, &domain.ValidationError{Fields: []domain.FieldError{{Field: "index", Reason: "required"}}}
	}
	c, err := s.editor.Move(ctx, pageID, blockID, req.GetString("parentId", ""), index)
	if err != nil {
		return nil, err
	}
	return outline(c), nil
}

func (s *Server) handleDuplicateBlock(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, blockID, err := pageAndBlock(req)
	if err != nil {
		return nil, err
	}
	_, b, err := s.editor.Duplicate(ctx, pageID, blockID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Server) handleDeleteBlock(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, blockID, err := pageAndBlock(req)
	if err != nil {
		return nil, err
	}
	_, removed, err := s.editor.Delete(ctx, pageID, blockID)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("Deleted %d block(s)", len(removed)), nil
}

func (s *Server) handleSetBlockProps(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, blockID, err := pageAndBlock(req)
	if err != nil {
		return nil, err
	}
	patch, err := propsArg(req, "props")
	if err != nil {
		return nil, err
	}
	c, prev, err := s.editor.SetProps(ctx, pageID, blockID, patch)
	if err != nil {
		return nil, err
	}
	return map[string]any{"block": c.Blocks[blockID], "previous": prev}, nil
}

func (s *Server) handleGetBlockFields(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, blockID, err := pageAndBlock(req)
	if err != nil {
		return nil, err
	}
	return s.editor.Fields(ctx, pageID, blockID)
}
