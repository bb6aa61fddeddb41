package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagecraft/internal/domain"
	"pagecraft/internal/registry"
	"pagecraft/internal/revision"
	"pagecraft/internal/service"
	"pagecraft/internal/storage"
	"pagecraft/internal/tree"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "pagecraft.db"))
	require.NoError(t, err)
	store := storage.NewStore(db, 0)

	editor, err := service.NewEditor(store, tree.NewModel(registry.Default(), nil), service.WithUndo(store.Undo))
	require.NoError(t, err)
	agent := NewAgentQueue()
	revisions := revision.New(store, agent, editor)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = revisions.Run(runCtx)
	}()
	t.Cleanup(func() {
		closeCtx, stop := context.WithTimeout(ctx, 5*time.Second)
		defer stop()
		_ = revisions.Close(closeCtx)
		cancel()
		<-done
		store.Close()
	})

	return New(Deps{Editor: editor, Revisions: revisions, Agent: agent, UserID: "tester"})
}

func call(t *testing.T, s *Server, name string, h server.ToolHandlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := h(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, resultText(t, res))
	var v T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &v))
	return v
}

func createPage(t *testing.T, s *Server) string {
	t.Helper()
	p := decode[domain.Page](t, call(t, s, "create_page", s.handler("create_page", s.handleCreatePage),
		map[string]any{"name": "Launch"}))
	return p.ID
}

func insert(t *testing.T, s *Server, pageID, typ, parentID string) domain.Block {
	t.Helper()
	args := map[string]any{"pageId": pageID, "type": typ}
	if parentID != "" {
		args["parentId"] = parentID
	}
	return decode[domain.Block](t, call(t, s, "insert_block", s.handler("insert_block", s.handleInsertBlock), args))
}

func TestTools_BuildPage(t *testing.T) {
	s := newTestServer(t)
	pageID := createPage(t, s)

	hero := insert(t, s, pageID, "hero", "")
	btn := insert(t, s, pageID, "button", hero.ID)
	insert(t, s, pageID, "faq", "")

	view := decode[compositionView](t, call(t, s, "get_composition", s.handler("get_composition", s.handleGetComposition),
		map[string]any{"pageId": pageID}))
	require.Len(t, view.Blocks, 2)
	assert.Equal(t, hero.ID, view.Blocks[0].ID)
	require.Len(t, view.Blocks[0].Children, 1)
	assert.Equal(t, btn.ID, view.Blocks[0].Children[0].ID)

	view = decode[compositionView](t, call(t, s, "move_block", s.handler("move_block", s.handleMoveBlock),
		map[string]any{"pageId": pageID, "blockId": hero.ID, "index": 1}))
	assert.Equal(t, hero.ID, view.Blocks[1].ID)

	dup := decode[domain.Block](t, call(t, s, "duplicate_block", s.handler("duplicate_block", s.handleDuplicateBlock),
		map[string]any{"pageId": pageID, "blockId": hero.ID}))
	assert.NotEqual(t, hero.ID, dup.ID)

	res := call(t, s, "delete_block", s.handler("delete_block", s.handleDeleteBlock),
		map[string]any{"pageId": pageID, "blockId": dup.ID})
	assert.Equal(t, "Deleted 2 block(s)", resultText(t, res))
}

func TestTools_ErrorsCarryKind(t *testing.T) {
	s := newTestServer(t)
	pageID := createPage(t, s)
	hero := insert(t, s, pageID, "hero", "")

	res := call(t, s, "insert_block", s.handler("insert_block", s.handleInsertBlock),
		map[string]any{"pageId": pageID, "type": "hero", "parentId": hero.ID})
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(resultText(t, res), "InvalidNesting:"), resultText(t, res))

	res = call(t, s, "set_block_props", s.handler("set_block_props", s.handleSetBlockProps),
		map[string]any{"pageId": pageID, "blockId": hero.ID, "props": map[string]any{"align": "diagonal"}})
	assert.True(t, res.IsError)
	sc, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ValidationError", sc["kind"])

	res = call(t, s, "apply_variant", s.handler("apply_variant", s.handleApplyVariant),
		map[string]any{"pageId": pageID, "blockId": hero.ID, "variantId": "missing"})
	assert.True(t, strings.HasPrefix(resultText(t, res), "UnknownVariant:"))

	res = call(t, s, "get_composition", s.handler("get_composition", s.handleGetComposition),
		map[string]any{"pageId": "nope"})
	assert.True(t, strings.HasPrefix(resultText(t, res), "NotFound:"))

	res = call(t, s, "move_block", s.handler("move_block", s.handleMoveBlock),
		map[string]any{"pageId": pageID, "blockId": hero.ID})
	assert.True(t, strings.HasPrefix(resultText(t, res), "ValidationError:"))
}

func TestTools_UndoRedo(t *testing.T) {
	s := newTestServer(t)
	pageID := createPage(t, s)
	insert(t, s, pageID, "hero", "")

	view := decode[compositionView](t, call(t, s, "undo", s.handler("undo", s.handleUndo), map[string]any{"pageId": pageID}))
	assert.Empty(t, view.Blocks)

	res := call(t, s, "undo", s.handler("undo", s.handleUndo), map[string]any{"pageId": pageID})
	assert.True(t, strings.HasPrefix(resultText(t, res), "NotFound:"))

	view = decode[compositionView](t, call(t, s, "redo", s.handler("redo", s.handleRedo), map[string]any{"pageId": pageID}))
	assert.Len(t, view.Blocks, 1)

	tr := decode[storage.UndoTree](t, call(t, s, "get_history", s.handler("get_history", s.handleGetHistory), map[string]any{"pageId": pageID}))
	require.Len(t, tr.Nodes, 2)
	view = decode[compositionView](t, call(t, s, "restore_history", s.handler("restore_history", s.handleRestoreHistory),
		map[string]any{"pageId": pageID, "nodeId": tr.RootID}))
	assert.Empty(t, view.Blocks)
}

func TestTools_PropsAsJSONString(t *testing.T) {
	s := newTestServer(t)
	pageID := createPage(t, s)
	hero := insert(t, s, pageID, "hero", "")

	out := decode[map[string]any](t, call(t, s, "set_block_props", s.handler("set_block_props", s.handleSetBlockProps),
		map[string]any{"pageId": pageID, "blockId": hero.ID, "props": `{"title":"Launch day"}`}))
	block := out["block"].(map[string]any)
	assert.Equal(t, "Launch day", block["props"].(map[string]any)["title"])
}

func TestTools_RevisionRoundTrip(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	pageID := createPage(t, s)
	hero := insert(t, s, pageID, "hero", "")

	c := decode[domain.Comment](t, call(t, s, "submit_comment", s.handler("submit_comment", s.handleSubmitComment),
		map[string]any{"pageId": pageID, "blockId": hero.ID, "text": "Punchier title please"}))
	assert.Equal(t, "tester", c.UserID)

	require.Eventually(t, func() bool { return s.agent.Len() == 1 }, 5*time.Second, 10*time.Millisecond)
	pending := decode[[]PendingRevision](t, call(t, s, "list_pending_revisions",
		s.handler("list_pending_revisions", s.handleListPendingRevisions), nil))
	require.Len(t, pending, 1)
	assert.Equal(t, c.ID, pending[0].CommentID)
	assert.Equal(t, "Build something great", pending[0].PreviousContent["title"])

	res := call(t, s, "propose_patch", s.handler("propose_patch", s.handleProposePatch),
		map[string]any{"commentId": c.ID, "patch": map[string]any{"title": "Ship it"}, "response": "Shorter."})
	require.False(t, res.IsError, resultText(t, res))
	assert.Zero(t, s.agent.Len())

	require.Eventually(t, func() bool {
		got, err := s.revisions.Comment(ctx, c.ID)
		return err == nil && got.Status == domain.CommentResolved
	}, 5*time.Second, 10*time.Millisecond)
	snap, err := s.editor.Snapshot(ctx, pageID, hero.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ship it", snap.Props["title"])

	res = call(t, s, "revert_comment", s.handler("revert_comment", s.handleRevertComment),
		map[string]any{"commentId": c.ID})
	require.False(t, res.IsError, resultText(t, res))
	snap, err = s.editor.Snapshot(ctx, pageID, hero.ID)
	require.NoError(t, err)
	assert.Equal(t, "Build something great", snap.Props["title"])

	comments := decode[[]domain.Comment](t, call(t, s, "list_comments", s.handler("list_comments", s.handleListComments),
		map[string]any{"pageId": pageID, "status": "resolved"}))
	require.Len(t, comments, 1)
	assert.Equal(t, "Shorter.", comments[0].AIResponse)
}

func TestTools_ProposePatchOnResolvedComment(t *testing.T) {
	s := newTestServer(t)
	pageID := createPage(t, s)
	hero := insert(t, s, pageID, "hero", "")
	c := decode[domain.Comment](t, call(t, s, "submit_comment", s.handler("submit_comment", s.handleSubmitComment),
		map[string]any{"pageId": pageID, "blockId": hero.ID, "text": "x"}))
	require.Eventually(t, func() bool { return s.agent.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	call(t, s, "propose_patch", s.handler("propose_patch", s.handleProposePatch),
		map[string]any{"commentId": c.ID, "patch": map[string]any{"title": "A"}})
	require.Eventually(t, func() bool {
		got, err := s.revisions.Comment(context.Background(), c.ID)
		return err == nil && got.Status == domain.CommentResolved
	}, 5*time.Second, 10*time.Millisecond)

	res := call(t, s, "propose_patch", s.handler("propose_patch", s.handleProposePatch),
		map[string]any{"commentId": c.ID, "patch": map[string]any{"title": "B"}})
	assert.True(t, strings.HasPrefix(resultText(t, res), "InvalidStatus:"))
}

func TestResources_PageComposition(t *testing.T) {
	s := newTestServer(t)
	pageID := createPage(t, s)
	insert(t, s, pageID, "hero", "")

	contents, err := s.handlePageResource(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: pageURIPrefix + pageID},
	})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text := contents[0].(mcp.TextResourceContents).Text
	var view compositionView
	require.NoError(t, json.Unmarshal([]byte(text), &view))
	assert.Equal(t, pageID, view.PageID)
	assert.Len(t, view.Blocks, 1)

	contents, err = s.handlePageStateResource(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: pageURIPrefix + pageID + "/state"},
	})
	require.NoError(t, err)
	var state domain.PageState
	require.NoError(t, json.Unmarshal([]byte(contents[0].(mcp.TextResourceContents).Text), &state))
	assert.Equal(t, "Launch", state.Page.Name)
	assert.Len(t, state.Composition.RootOrder, 1)
	assert.NotNil(t, state.Comments)
	assert.NotEmpty(t, state.SelectedID, "insert selects the new block")

	assert.Equal(t, "abc", pageIDFromURI("pagecraft://pages/abc"))
	assert.Equal(t, "abc", pageIDFromURI("pagecraft://pages/abc/state"))
	assert.Equal(t, "", pageIDFromURI("notes://page/abc"))
}

func TestAgentQueue_ResubmitReplaces(t *testing.T) {
	q := NewAgentQueue()
	msg := func(id string) domain.Message {
		return domain.Message{ID: id, Content: `{"commentId":"c1","comment":"x","blockId":"b"}`}
	}
	require.NoError(t, q.Submit(context.Background(), "t1", msg("m1")))
	require.NoError(t, q.Submit(context.Background(), "t1", msg("m2")))
	require.Equal(t, 1, q.Len())
	assert.Equal(t, "m2", q.Pending()[0].MessageID)

	assert.Error(t, q.Submit(context.Background(), "t1", domain.Message{ID: "m3", Content: "not json"}))
	assert.Error(t, q.Submit(context.Background(), "t1", domain.Message{ID: "m4", Content: `{}`}))

	_, ok := q.Take("c1")
	assert.True(t, ok)
	_, ok = q.Take("c1")
	assert.False(t, ok)
}
