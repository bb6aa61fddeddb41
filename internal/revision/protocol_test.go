package revision_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pagecraft/internal/domain"
	"pagecraft/internal/registry"
	"pagecraft/internal/revision"
	"pagecraft/internal/tree"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ── fakes ──────────────────────────────────────────────────

type memStore struct {
	mu       sync.Mutex
	threads  map[string]*domain.Thread
	created  int
	messages map[string][]domain.Message
	comments map[string]domain.Comment
}

func newMemStore() *memStore {
	return &memStore{
		threads:  map[string]*domain.Thread{},
		messages: map[string][]domain.Message{},
		comments: map[string]domain.Comment{},
	}
}

func (s *memStore) GetOrCreateThread(_ context.Context, userID string, purpose domain.ThreadPurpose, pageID string) (*domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "/" + pageID + "/" + string(purpose)
	if th, ok := s.threads[key]; ok {
		cp := *th
		return &cp, nil
	}
	s.created++
	th := &domain.Thread{ID: fmt.Sprintf("thread-%d", s.created), OwnerUserID: userID, Purpose: purpose, PageID: pageID}
	s.threads[key] = th
	cp := *th
	return &cp, nil
}

func (s *memStore) AppendMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Seq = int64(len(s.messages[m.ThreadID]) + 1)
	s.messages[m.ThreadID] = append(s.messages[m.ThreadID], *m)
	return nil
}

func (s *memStore) ListMessages(_ context.Context, threadID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages[threadID]...), nil
}

func (s *memStore) SaveComment(_ context.Context, c *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.PreviousContent = c.PreviousContent.Clone()
	cp.ProposedPatch = c.ProposedPatch.Clone()
	s.comments[c.ID] = cp
	return nil
}

func (s *memStore) GetComment(_ context.Context, id string) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	c.PreviousContent = c.PreviousContent.Clone()
	c.ProposedPatch = c.ProposedPatch.Clone()
	return &c, nil
}

func (s *memStore) ListComments(_ context.Context, pageID string, statuses ...domain.CommentStatus) ([]domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Comment
	for _, c := range s.comments {
		if c.PageID != pageID {
			continue
		}
		if len(statuses) > 0 && !contains(statuses, c.Status) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ListCommentsByStatus(ctx context.Context, status domain.CommentStatus) ([]domain.Comment, error) {
	s.mu.Lock()
	var out []domain.Comment
	for _, c := range s.comments {
		if c.Status == status {
			out = append(out, c)
		}
	}
	s.mu.Unlock()
	return out, nil
}

func contains(ss []domain.CommentStatus, s domain.CommentStatus) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

type submission struct {
	threadID string
	msg      domain.Message
}

type chanAgent struct {
	got chan submission
	err error
}

func (a *chanAgent) Submit(_ context.Context, threadID string, m domain.Message) error {
	if a.err != nil {
		return a.err
	}
	a.got <- submission{threadID: threadID, msg: m}
	return nil
}

type page struct {
	mu    sync.Mutex
	model *tree.Model
	c     domain.Composition
}

func (p *page) Snapshot(_ context.Context, pageID, blockID string) (domain.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.c.Blocks[blockID]
	if !ok || pageID != p.c.PageID {
		return domain.Block{}, fmt.Errorf("block %s: %w", blockID, domain.ErrNotFound)
	}
	return *b.Clone(), nil
}

func (p *page) ApplyPatch(_ context.Context, _ string, blockID string, patch domain.Props) (domain.Props, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, prev, err := p.model.SetProps(p.c, blockID, patch)
	if err != nil {
		return nil, err
	}
	p.c = next
	return prev, nil
}

func (p *page) prop(blockID, name string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.c.Blocks[blockID].Props[name]
}

type harness struct {
	store *memStore
	agent *chanAgent
	page  *page
	hero  string
	p     *revision.Protocol
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	m := tree.NewModel(registry.Default(), tree.NewSequence("b"))
	c, hero, err := m.Insert(domain.NewComposition("page-1"), registry.TypeHero, "", 0)
	require.NoError(t, err)

	h := &harness{
		store: newMemStore(),
		agent: &chanAgent{got: make(chan submission, 16)},
		page:  &page{model: m, c: c},
		hero:  hero.ID,
	}
	h.p = revision.New(h.store, h.agent, h.page)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.p.Run(ctx)
	}()
	t.Cleanup(func() {
		closeCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		require.NoError(t, h.p.Close(closeCtx))
		cancel()
		<-done
	})
	return h
}

func (h *harness) draft(t *testing.T, text string) *domain.Comment {
	t.Helper()
	c, err := h.p.Draft(context.Background(), revision.DraftInput{
		PageID: "page-1", BlockID: h.hero, UserID: "u1", X: 10, Y: 20, Text: text,
	})
	require.NoError(t, err)
	return c
}

func waitFor(t *testing.T, events <-chan revision.Event, commentID string, status domain.CommentStatus) revision.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Comment.ID == commentID && e.Comment.Status == status {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s to reach %s", commentID, status)
		}
	}
}

// waitAll waits until every comment in ids has reached status, in any order.
func waitAll(t *testing.T, events <-chan revision.Event, status domain.CommentStatus, ids ...string) map[string]revision.Event {
	t.Helper()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	got := make(map[string]revision.Event, len(ids))
	timeout := time.After(5 * time.Second)
	for len(got) < len(want) {
		select {
		case e := <-events:
			if want[e.Comment.ID] && e.Comment.Status == status {
				got[e.Comment.ID] = e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %v to reach %s, got %d", ids, status, len(got))
		}
	}
	return got
}

func waitAgent(t *testing.T, a *chanAgent) submission {
	t.Helper()
	select {
	case s := <-a.got:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("agent never received a message")
		return submission{}
	}
}

// ── tests ──────────────────────────────────────────────────

func TestProtocol_SubmitCompleteRevert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	events := h.p.Events()

	c := h.draft(t, "make the title punchier")
	assert.Equal(t, domain.CommentDraft, c.Status)

	require.NoError(t, h.p.Submit(ctx, c.ID))
	waitFor(t, events, c.ID, domain.CommentPending)
	processing := waitFor(t, events, c.ID, domain.CommentProcessing)
	assert.Equal(t, "Build something great", processing.Comment.PreviousContent["title"])

	sub := waitAgent(t, h.agent)
	assert.Equal(t, domain.RoleUser, sub.msg.Role)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(sub.msg.Content), &payload))
	assert.Equal(t, "make the title punchier", payload["comment"])
	assert.Equal(t, "hero", payload["blockType"])

	require.NoError(t, h.p.Complete(ctx, revision.Completion{
		ThreadID:  sub.threadID,
		CommentID: c.ID,
		Result:    domain.Message{Content: "Shortened the title."},
		Patch:     domain.Props{"title": "Ship it"},
	}))
	resolved := waitFor(t, events, c.ID, domain.CommentResolved)
	assert.Empty(t, resolved.Overwritten)
	assert.Equal(t, "Ship it", h.page.prop(h.hero, "title"))

	stored, err := h.p.Comment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shortened the title.", stored.AIResponse)
	assert.Equal(t, "Build something great", stored.PreviousContent["title"])

	msgs, err := h.p.Messages(ctx, sub.threadID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []int64{1, 2}, []int64{msgs[0].Seq, msgs[1].Seq})
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)

	replaced, err := h.p.Revert(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Props{"title": "Ship it"}, replaced)
	assert.Equal(t, "Build something great", h.page.prop(h.hero, "title"))
}

func TestProtocol_InvalidPatchLeavesProcessing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	events := h.p.Events()

	c := h.draft(t, "center it diagonally")
	require.NoError(t, h.p.Submit(ctx, c.ID))
	sub := waitAgent(t, h.agent)

	require.NoError(t, h.p.Complete(ctx, revision.Completion{
		ThreadID: sub.threadID, CommentID: c.ID,
		Result: domain.Message{Content: "done"},
		Patch:  domain.Props{"align": "diagonal"},
	}))
	var failed revision.Event
	for failed.Err == nil {
		failed = waitFor(t, events, c.ID, domain.CommentProcessing)
	}
	assert.True(t, errors.Is(failed.Err, domain.ErrAgentFailure))
	assert.True(t, errors.Is(failed.Err, domain.ErrValidation))
	assert.Equal(t, "AgentFailure", domain.Kind(failed.Err))
	assert.Contains(t, failed.Comment.Failure, "align")
	assert.Equal(t, "center", h.page.prop(h.hero, "align"))

	// A manual retry replays the same bad patch and fails the same way.
	require.NoError(t, h.p.Retry(ctx, c.ID))
	again := waitFor(t, events, c.ID, domain.CommentProcessing)
	assert.Error(t, again.Err)

	// A corrected answer still resolves it.
	require.NoError(t, h.p.Complete(ctx, revision.Completion{
		ThreadID: sub.threadID, CommentID: c.ID,
		Result: domain.Message{Content: "fixed"},
		Patch:  domain.Props{"align": "right"},
	}))
	waitFor(t, events, c.ID, domain.CommentResolved)
	assert.Equal(t, "right", h.page.prop(h.hero, "align"))
}

func TestProtocol_LastAppliedWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	events := h.p.Events()

	first := h.draft(t, "title A")
	second := h.draft(t, "title B")
	require.NoError(t, h.p.Submit(ctx, first.ID))
	require.NoError(t, h.p.Submit(ctx, second.ID))
	// Pickups run concurrently; either comment may reach processing first.
	waitAll(t, events, domain.CommentProcessing, first.ID, second.ID)
	s1, s2 := waitAgent(t, h.agent), waitAgent(t, h.agent)
	assert.Equal(t, s1.threadID, s2.threadID, "one editing thread per user and page")

	require.NoError(t, h.p.Complete(ctx, revision.Completion{ThreadID: s1.threadID, CommentID: second.ID, Patch: domain.Props{"title": "B"}}))
	waitFor(t, events, second.ID, domain.CommentResolved)
	require.NoError(t, h.p.Complete(ctx, revision.Completion{ThreadID: s1.threadID, CommentID: first.ID, Patch: domain.Props{"title": "A"}}))
	ev := waitFor(t, events, first.ID, domain.CommentResolved)

	assert.Equal(t, "A", h.page.prop(h.hero, "title"))
	assert.Equal(t, []string{"title"}, ev.Overwritten)
}

func TestProtocol_SubmitRequiresDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c := h.draft(t, "hello")
	require.NoError(t, h.p.Submit(ctx, c.ID))
	err := h.p.Submit(ctx, c.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidStatus))
	waitAgent(t, h.agent)

	err = h.p.Submit(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = h.p.Revert(ctx, c.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidStatus))
}

func TestProtocol_DraftValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.p.Draft(context.Background(), revision.DraftInput{PageID: "page-1", BlockID: h.hero, Text: "  "})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = h.p.Draft(context.Background(), revision.DraftInput{PageID: "page-1", BlockID: "nope", Text: "x"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestProtocol_AgentRejectsSubmission(t *testing.T) {
	h := newHarness(t)
	h.agent.err = errors.New("agent offline")
	ctx := context.Background()
	events := h.p.Events()

	c := h.draft(t, "hello")
	require.NoError(t, h.p.Submit(ctx, c.ID))
	var ev revision.Event
	for ev.Err == nil {
		ev = waitFor(t, events, c.ID, domain.CommentProcessing)
	}
	assert.Contains(t, ev.Comment.Failure, "agent offline")

	pending, err := h.p.Comments(ctx, "page-1", domain.CommentProcessing)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestProtocol_CloseDrainsQueuedCompletions(t *testing.T) {
	store := newMemStore()
	agent := &chanAgent{got: make(chan submission, 4)}
	m := tree.NewModel(registry.Default(), tree.NewSequence("b"))
	c, hero, err := m.Insert(domain.NewComposition("page-1"), registry.TypeHero, "", 0)
	require.NoError(t, err)
	pg := &page{model: m, c: c}
	p := revision.New(store, agent, pg)
	ctx := context.Background()

	draft, err := p.Draft(ctx, revision.DraftInput{PageID: "page-1", BlockID: hero.ID, UserID: "u", Text: "x"})
	require.NoError(t, err)
	require.NoError(t, p.Submit(ctx, draft.ID))
	sub := waitAgent(t, agent)
	require.NoError(t, p.Complete(ctx, revision.Completion{ThreadID: sub.threadID, CommentID: draft.ID, Patch: domain.Props{"title": "late"}}))

	require.NoError(t, p.Close(ctx))
	assert.Equal(t, "late", pg.prop(hero.ID, "title"))

	assert.ErrorIs(t, p.Run(ctx), revision.ErrClosed)
	assert.ErrorIs(t, p.Submit(ctx, draft.ID), revision.ErrClosed)
	for range p.Events() {
	}
}
