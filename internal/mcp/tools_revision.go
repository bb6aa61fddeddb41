package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"pagecraft/internal/domain"
	"pagecraft/internal/revision"
)

func (s *Server) registerRevisionTools() {
	// ── submit_comment ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("submit_comment",
		mcp.WithDescription("Leave a revision request on a block. It is queued for an agent and shows up in list_pending_revisions."),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block the comment is about"), mcp.Required()),
		mcp.WithString("text", mcp.Description("What should change"), mcp.Required()),
		mcp.WithArray("mediaIds", mcp.Description("Attached media references (optional)"), mcp.WithStringItems()),
		mcp.WithString("userId", mcp.Description("Author (optional)")),
	), s.handler("submit_comment", s.handleSubmitComment))

	// ── list_pending_revisions ─────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_pending_revisions",
		mcp.WithDescription("List comments waiting for a proposed patch, with the block's props at pickup time"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handler("list_pending_revisions", s.handleListPendingRevisions))

	// ── propose_patch ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("propose_patch",
		mcp.WithDescription("Answer a pending revision with a props patch for its block. The patch is applied to the page as it is when the patch arrives."),
		mcp.WithString("commentId", mcp.Description("Comment ID from list_pending_revisions"), mcp.Required()),
		mcp.WithObject("patch", mcp.Description("Props to change on the commented block"), mcp.Required()),
		mcp.WithString("response", mcp.Description("Short explanation shown to the author")),
	), s.handler("propose_patch", s.handleProposePatch))

	// ── revert_comment ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("revert_comment",
		mcp.WithDescription("Undo the patch of a resolved comment, restoring the fields it changed"),
		mcp.WithString("commentId", mcp.Description("Comment ID"), mcp.Required()),
	), s.handler("revert_comment", s.handleRevertComment))

	// ── retry_comment ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("retry_comment",
		mcp.WithDescription("Retry a comment stuck in processing"),
		mcp.WithString("commentId", mcp.Description("Comment ID"), mcp.Required()),
	), s.handler("retry_comment", s.handleRetryComment))

	// ── list_comments ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_comments",
		mcp.WithDescription("List the comments of a page, optionally filtered by status"),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
		mcp.WithString("status", mcp.Description("draft, pending, processing or resolved (optional)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handler("list_comments", s.handleListComments))
}

func (s *Server) handleSubmitComment(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, blockID, err := pageAndBlock(req)
	if err != nil {
		return nil, err
	}
	text, err := requireArg(req, "text")
	if err != nil {
		return nil, err
	}
	c, err := s.revisions.Draft(ctx, revision.DraftInput{
		PageID:   pageID,
		BlockID:  blockID,
		UserID:   req.GetString("userId", s.userID),
		Text:     text,
		MediaIDs: req.GetStringSlice("mediaIds", nil),
	})
	if err != nil {
		return nil, err
	}
	if err := s.revisions.Submit(ctx, c.ID); err != nil {
		return nil, err
	}
	c.Status = domain.CommentPending
	return c, nil
}

func (s *Server) handleListPendingRevisions(_ context.Context, _ mcp.CallToolRequest) (any, error) {
	pending := s.agent.Pending()
	if pending == nil {
		pending = []PendingRevision{}
	}
	return pending, nil
}

func (s *Server) handleProposePatch(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	commentID, err := requireArg(req, "commentId")
	if err != nil {
		return nil, err
	}
	patch, err := propsArg(req, "patch")
	if err != nil {
		return nil, err
	}

	threadID := ""
	if p, ok := s.agent.Take(commentID); ok {
		threadID = p.ThreadID
	} else {
		// Not parked: a corrected patch for a comment whose first answer
		// failed to apply.
		c, err := s.revisions.Comment(ctx, commentID)
		if err != nil {
			return nil, err
		}
		if c.Status != domain.CommentProcessing {
			return nil, fmt.Errorf("propose patch for comment %s in status %s: %w", commentID, c.Status, domain.ErrInvalidStatus)
		}
		threadID = c.ThreadID
	}

	err = s.revisions.Complete(ctx, revision.Completion{
		ThreadID:  threadID,
		CommentID: commentID,
		Result:    domain.Message{Role: domain.RoleAssistant, Content: req.GetString("response", "")},
		Patch:     patch,
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("patch proposed", zap.String("commentId", commentID), zap.Int("fields", len(patch)))
	return fmt.Sprintf("Patch for comment %s queued", commentID), nil
}

func (s *Server) handleRevertComment(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	commentID, err := requireArg(req, "commentId")
	if err != nil {
		return nil, err
	}
	replaced, err := s.revisions.Revert(ctx, commentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"commentId": commentID, "replaced": replaced}, nil
}

func (s *Server) handleRetryComment(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	commentID, err := requireArg(req, "commentId")
	if err != nil {
		return nil, err
	}
	if err := s.revisions.Retry(ctx, commentID); err != nil {
		return nil, err
	}
	return fmt.Sprintf("Comment %s retried", commentID), nil
}

func (s *Server) handleListComments(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	pageID, err := requireArg(req, "pageId")
	if err != nil {
		return nil, err
	}
	var statuses []domain.CommentStatus
	if st := req.GetString("status", ""); st != "" {
		statuses = append(statuses, domain.CommentStatus(st))
	}
	comments, err := s.revisions.Comments(ctx, pageID, statuses...)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	return comments, nil
}
