package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pagecraft/internal/domain"
)

// CommentStore persists AI comments.
type CommentStore struct {
	db *DB
}

func NewCommentStore(db *DB) *CommentStore {
	return &CommentStore{db: db}
}

const commentColumns = `id, page_id, block_id, user_id, x, y, text, media_json, status, thread_id,
	previous_json, patch_json, ai_response, failure, created_at, updated_at`

// SaveComment inserts or overwrites c.
func (s *CommentStore) SaveComment(ctx context.Context, c *domain.Comment) error {
	media, err := json.Marshal(nonNil(c.MediaIDs))
	if err != nil {
		return fmt.Errorf("encode media: %w", err)
	}
	prev, err := encodeOptionalProps(c.PreviousContent)
	if err != nil {
		return err
	}
	patch, err := encodeOptionalProps(c.ProposedPatch)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	q := s.db.upsert("comments", "id",
		"page_id", "block_id", "user_id", "x", "y", "text", "media_json", "status", "thread_id",
		"previous_json", "patch_json", "ai_response", "failure", "created_at", "updated_at")
	_, err = s.db.exec(ctx, s.db.conn, q,
		c.ID, c.PageID, c.BlockID, c.UserID, c.X, c.Y, c.Text, string(media), c.Status, c.ThreadID,
		prev, patch, c.AIResponse, c.Failure, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save comment %s: %w", c.ID, err)
	}
	return nil
}

func (s *CommentStore) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	row := s.db.queryRow(ctx, s.db.conn, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
	c, err := scanComment(row)
	if err != nil {
		return nil, notFound(err, "comment", id)
	}
	return c, nil
}

// ListComments returns the page's comments, oldest first, optionally
// filtered by status.
func (s *CommentStore) ListComments(ctx context.Context, pageID string, statuses ...domain.CommentStatus) ([]domain.Comment, error) {
	q := `SELECT ` + commentColumns + ` FROM comments WHERE page_id = ?`
	args := []any{pageID}
	if len(statuses) > 0 {
		q += ` AND status IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ") + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	return s.list(ctx, q+` ORDER BY created_at ASC, id ASC`, args...)
}

// ListCommentsByStatus spans every page.
func (s *CommentStore) ListCommentsByStatus(ctx context.Context, status domain.CommentStatus) ([]domain.Comment, error) {
	return s.list(ctx, `SELECT `+commentColumns+` FROM comments WHERE status = ? ORDER BY updated_at ASC, id ASC`, status)
}

func (s *CommentStore) list(ctx context.Context, q string, args ...any) ([]domain.Comment, error) {
	rows, err := s.db.query(ctx, s.db.conn, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComment(row scanner) (*domain.Comment, error) {
	var (
		c                  domain.Comment
		media, prev, patch string
	)
	err := row.Scan(&c.ID, &c.PageID, &c.BlockID, &c.UserID, &c.X, &c.Y, &c.Text, &media, &c.Status, &c.ThreadID,
		&prev, &patch, &c.AIResponse, &c.Failure, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(media), &c.MediaIDs); err != nil {
		return nil, fmt.Errorf("decode media of %s: %w", c.ID, err)
	}
	if c.PreviousContent, err = decodeOptionalProps(prev); err != nil {
		return nil, err
	}
	if c.ProposedPatch, err = decodeOptionalProps(patch); err != nil {
		return nil, err
	}
	return &c, nil
}

// encodeOptionalProps keeps "no snapshot yet" distinct from an empty one.
func encodeOptionalProps(p domain.Props) (string, error) {
	if p == nil {
		return "null", nil
	}
	return domain.MarshalProps(p)
}

// decodeOptionalProps maps the stored "null" back to a nil map.
func decodeOptionalProps(s string) (domain.Props, error) {
	if s == "" || s == "null" {
		return nil, nil
	}
	return domain.UnmarshalProps(s)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

var _ domain.CommentStore = (*CommentStore)(nil)
