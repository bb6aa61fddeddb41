package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("landing_page",
		mcp.WithPromptDescription("Guide through composing a landing page from registered blocks"),
		mcp.WithArgument("product",
			mcp.ArgumentDescription("Product the page is about"),
			mcp.RequiredArgument(),
		),
	), s.handleLandingPagePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("answer_revisions",
		mcp.WithPromptDescription("Work through the queue of pending revision comments"),
	), s.handleAnswerRevisionsPrompt)
}

func (s *Server) handleLandingPagePrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	product := req.Params.Arguments["product"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Compose a landing page for: %s", product),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Compose a landing page for "%s". Follow these steps:

1. Use create_page to create a page named after the product
2. Call list_block_types to see which blocks exist and where each may be nested
3. Insert a hero at the top, then features, pricing, testimonials, a FAQ and a call to action (insert_block)
4. Fill in the children: features go into features, tiers into pricing, questions into the FAQ
5. Write real copy with set_block_props; only use fields listed in each block's schema
6. Try list_variants and apply_variant to pick a look for each section

Finish with get_composition and check the order reads well top to bottom.`, product),
				},
			},
		},
	}, nil
}

func (s *Server) handleAnswerRevisionsPrompt(_ context.Context, _ mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Answer pending revision comments",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: `Answer the pending revision comments. For each entry of list_pending_revisions:

1. Read the comment and the block's previousContent
2. Call get_block_fields for the block to see which fields exist and their limits
3. Call propose_patch with only the fields that need to change and a one-line response

A patch that fails validation leaves the comment in processing; check list_comments with status "processing" and send a corrected patch with propose_patch.`,
				},
			},
		},
	}, nil
}
