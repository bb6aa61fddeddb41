package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pagecraft/internal/domain"
)

// ThreadStore keeps AI threads and their append-only message logs.
type ThreadStore struct {
	db *DB
}

func NewThreadStore(db *DB) *ThreadStore {
	return &ThreadStore{db: db}
}

// GetOrCreateThread returns the thread for {user, purpose, page}, creating
// it on first use.
func (s *ThreadStore) GetOrCreateThread(ctx context.Context, userID string, purpose domain.ThreadPurpose, pageID string) (*domain.Thread, error) {
	th, err := s.findThread(ctx, userID, purpose, pageID)
	if err == nil {
		return th, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("get thread: %w", err)
	}

	th = &domain.Thread{
		ID:          uuid.New().String(),
		OwnerUserID: userID,
		Purpose:     purpose,
		PageID:      pageID,
		CreatedAt:   time.Now().UTC(),
	}
	_, err = s.db.exec(ctx, s.db.conn,
		`INSERT INTO threads (id, owner_user_id, purpose, page_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		th.ID, th.OwnerUserID, th.Purpose, th.PageID, th.CreatedAt,
	)
	if err != nil {
		// Lost a race with another writer on the unique index.
		if existing, ferr := s.findThread(ctx, userID, purpose, pageID); ferr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create thread: %w", err)
	}
	return th, nil
}

func (s *ThreadStore) findThread(ctx context.Context, userID string, purpose domain.ThreadPurpose, pageID string) (*domain.Thread, error) {
	th := &domain.Thread{}
	err := s.db.queryRow(ctx, s.db.conn,
		`SELECT id, owner_user_id, purpose, page_id, created_at FROM threads
		 WHERE owner_user_id = ? AND purpose = ? AND page_id = ?`,
		userID, purpose, pageID,
	).Scan(&th.ID, &th.OwnerUserID, &th.Purpose, &th.PageID, &th.CreatedAt)
	if err != nil {
		return nil, err
	}
	return th, nil
}

func (s *ThreadStore) GetThread(ctx context.Context, id string) (*domain.Thread, error) {
	th := &domain.Thread{}
	err := s.db.queryRow(ctx, s.db.conn,
		`SELECT id, owner_user_id, purpose, page_id, created_at FROM threads WHERE id = ?`, id,
	).Scan(&th.ID, &th.OwnerUserID, &th.Purpose, &th.PageID, &th.CreatedAt)
	if err != nil {
		return nil, notFound(err, "thread", id)
	}
	return th, nil
}

// AppendMessage assigns the next Seq of the thread and stores m.
func (s *ThreadStore) AppendMessage(ctx context.Context, m *domain.Message) error {
	calls, err := json.Marshal(m.ToolCalls)
	if err != nil {
		return fmt.Errorf("encode tool calls: %w", err)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := s.db.queryRow(ctx, tx, `SELECT COUNT(*) FROM threads WHERE id = ?`, m.ThreadID).Scan(&exists); err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("thread %s: %w", m.ThreadID, domain.ErrNotFound)
		}
		var last int64
		if err := s.db.queryRow(ctx, tx,
			`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE thread_id = ?`, m.ThreadID,
		).Scan(&last); err != nil {
			return fmt.Errorf("next seq: %w", err)
		}
		m.Seq = last + 1
		if _, err := s.db.exec(ctx, tx,
			`INSERT INTO messages (id, thread_id, seq, role, content, tool_calls_json, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ThreadID, m.Seq, m.Role, m.Content, string(calls), m.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
}

// ListMessages returns the log in append order.
func (s *ThreadStore) ListMessages(ctx context.Context, threadID string) ([]domain.Message, error) {
	rows, err := s.db.query(ctx, s.db.conn,
		`SELECT id, thread_id, seq, role, content, tool_calls_json, created_at
		 FROM messages WHERE thread_id = ? ORDER BY seq ASC`, threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var (
			m     domain.Message
			calls string
		)
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Seq, &m.Role, &m.Content, &calls, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(calls), &m.ToolCalls); err != nil {
			return nil, fmt.Errorf("decode tool calls of %s: %w", m.ID, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

var _ domain.ThreadStore = (*ThreadStore)(nil)
