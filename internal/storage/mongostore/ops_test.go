package mongostore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagecraft/internal/domain"
)

// openTestStore connects to the server named by PAGECRAFT_TEST_MONGO_URI and
// uses a throwaway database that is dropped when the test ends.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("PAGECRAFT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PAGECRAFT_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, domain.DatabaseConnection{
		Driver:   domain.DatabaseDriverMongoDB,
		DSN:      uri,
		Database: "pagecraft_test_" + uuid.NewString()[:8],
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.db.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func createTestPage(t *testing.T, s *Store, id string) domain.Composition {
	t.Helper()
	c := domain.NewComposition(id)
	c.RootOrder = []string{"hero"}
	c.Blocks["hero"] = &domain.Block{ID: "hero", Type: "hero", Props: domain.Props{"title": "Hi"}, Children: []string{}}
	require.NoError(t, s.CreatePage(context.Background(), &domain.Page{ID: id, Name: "Landing"}, c))
	got, err := s.LoadComposition(context.Background(), id)
	require.NoError(t, err)
	return got
}

func TestStore_CompositionVersioning(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := createTestPage(t, s, "p1")
	assert.Equal(t, int64(1), c.Version)
	assert.Equal(t, domain.Props{"title": "Hi"}, c.Blocks["hero"].Props)

	c.Blocks["hero"].Props["title"] = "Hello"
	v, err := s.SaveComposition(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	// A writer still holding version 1 loses.
	_, err = s.SaveComposition(ctx, c)
	assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)

	got, err := s.LoadComposition(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, "Hello", got.Blocks["hero"].Props["title"])

	missing := domain.NewComposition("nope")
	_, err = s.SaveComposition(ctx, missing)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
	_, err = s.GetPage(ctx, "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	pages, err := s.ListPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Landing", pages[0].Name)
}

func TestStore_ThreadsAndMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTestPage(t, s, "p1")

	th, err := s.GetOrCreateThread(ctx, "u1", domain.PurposeEditing, "p1")
	require.NoError(t, err)
	again, err := s.GetOrCreateThread(ctx, "u1", domain.PurposeEditing, "p1")
	require.NoError(t, err)
	assert.Equal(t, th.ID, again.ID)
	other, err := s.GetOrCreateThread(ctx, "u1", domain.PurposeGeneration, "p1")
	require.NoError(t, err)
	assert.NotEqual(t, th.ID, other.ID)

	for _, text := range []string{"first", "second"} {
		m := &domain.Message{ID: uuid.NewString(), ThreadID: th.ID, Role: domain.RoleUser, Content: text}
		require.NoError(t, s.AppendMessage(ctx, m))
	}
	msgs, err := s.ListMessages(ctx, th.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(1), msgs[0].Seq)
	assert.Equal(t, int64(2), msgs[1].Seq)
	assert.Equal(t, "second", msgs[1].Content)

	err = s.AppendMessage(ctx, &domain.Message{ID: uuid.NewString(), ThreadID: "missing", Role: domain.RoleUser})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func TestStore_CommentsAndPageCleanup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTestPage(t, s, "p1")

	pending := &domain.Comment{ID: "c1", PageID: "p1", BlockID: "hero", UserID: "u1", Text: "shorter", Status: domain.CommentPending}
	require.NoError(t, s.SaveComment(ctx, pending))
	resolved := &domain.Comment{ID: "c2", PageID: "p1", BlockID: "hero", UserID: "u1", Text: "bolder",
		Status: domain.CommentResolved, PreviousContent: domain.Props{"title": "Hi"}}
	require.NoError(t, s.SaveComment(ctx, resolved))

	got, err := s.GetComment(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, domain.Props{"title": "Hi"}, got.PreviousContent)
	assert.Equal(t, []string{}, got.MediaIDs)

	open, err := s.ListComments(ctx, "p1", domain.CommentPending, domain.CommentProcessing)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "c1", open[0].ID)
	all, err := s.ListComments(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	byStatus, err := s.ListCommentsByStatus(ctx, domain.CommentResolved)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "c2", byStatus[0].ID)

	th, err := s.GetOrCreateThread(ctx, "u1", domain.PurposeEditing, "p1")
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, &domain.Message{ID: uuid.NewString(), ThreadID: th.ID, Role: domain.RoleUser, Content: "hi"}))

	require.NoError(t, s.DeletePage(ctx, "p1"))
	_, err = s.LoadComposition(ctx, "p1")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
	_, err = s.GetComment(ctx, "c1")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
	msgs, err := s.ListMessages(ctx, th.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.True(t, errors.Is(s.DeletePage(ctx, "p1"), domain.ErrNotFound))
}
