package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"pagecraft/internal/domain"
)

const pageURIPrefix = "pagecraft://pages/"

func (s *Server) registerResources() {
	// ── pagecraft://pages ──────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"pagecraft://pages",
		"All Pages",
		mcp.WithMIMEType("application/json"),
	), s.handlePagesResource)

	// ── pagecraft://pages/{pageId} ─────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			pageURIPrefix+"{pageId}",
			"Page Composition",
			mcp.WithTemplateDescription("Block tree of a page"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handlePageResource,
	)

	// ── pagecraft://pages/{pageId}/state ───────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			pageURIPrefix+"{pageId}/state",
			"Page State",
			mcp.WithTemplateDescription("Page, composition, comments and selection"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handlePageStateResource,
	)
}

func (s *Server) handlePagesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	pages, err := s.editor.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, pages)
}

func (s *Server) handlePageResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	pageID := pageIDFromURI(uri)
	if pageID == "" {
		return nil, fmt.Errorf("could not extract pageId from URI: %s", uri)
	}
	c, err := s.editor.Composition(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, outline(c))
}

func (s *Server) handlePageStateResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	pageID := pageIDFromURI(uri)
	if pageID == "" {
		return nil, fmt.Errorf("could not extract pageId from URI: %s", uri)
	}
	page, err := s.editor.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	c, err := s.editor.Composition(ctx, pageID)
	if err != nil {
		return nil, err
	}
	state := domain.PageState{Page: *page, Composition: c, Comments: []domain.Comment{}}
	if s.revisions != nil {
		comments, err := s.revisions.Comments(ctx, pageID)
		if err != nil {
			return nil, err
		}
		state.Comments = append(state.Comments, comments...)
	}
	if id, ok, err := s.editor.Selected(ctx, pageID); err == nil && ok {
		state.SelectedID = id
	}
	return jsonResource(uri, state)
}

// pageIDFromURI extracts the page ID from "pagecraft://pages/{id}".
func pageIDFromURI(uri string) string {
	id, ok := strings.CutPrefix(uri, pageURIPrefix)
	if !ok {
		return ""
	}
	id, _, _ = strings.Cut(id, "/")
	return id
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
