package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pagecraft/internal/domain"
)

// PageStore implements domain.CompositionStore on SQL.
type PageStore struct {
	db *DB
}

func NewPageStore(db *DB) *PageStore {
	return &PageStore{db: db}
}

// compositionDoc is the stored form of a composition's structure.
type compositionDoc struct {
	Blocks    map[string]*domain.Block `json:"blocks"`
	RootOrder []string                 `json:"rootOrder"`
}

func encodeComposition(c domain.Composition) (string, error) {
	data, err := json.Marshal(compositionDoc{Blocks: c.Blocks, RootOrder: c.RootOrder})
	if err != nil {
		return "", fmt.Errorf("encode composition: %w", err)
	}
	return string(data), nil
}

func decodeComposition(pageID string, version int64, doc string, updated time.Time) (domain.Composition, error) {
	var d compositionDoc
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return domain.Composition{}, fmt.Errorf("decode composition %s: %w", pageID, err)
	}
	c := domain.NewComposition(pageID)
	c.Version = version
	c.UpdatedAt = updated
	if d.RootOrder != nil {
		c.RootOrder = d.RootOrder
	}
	for id, b := range d.Blocks {
		if b.Children == nil {
			b.Children = []string{}
		}
		if b.Props == nil {
			b.Props = domain.Props{}
		}
		c.Blocks[id] = b
	}
	return c, nil
}

// CreatePage stores p with c as its first composition (version 1).
func (s *PageStore) CreatePage(ctx context.Context, p *domain.Page, c domain.Composition) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	c.PageID = p.ID
	doc, err := encodeComposition(c)
	if err != nil {
		return err
	}
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.db.exec(ctx, tx,
			`INSERT INTO pages (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			p.ID, p.Name, p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert page: %w", err)
		}
		if _, err := s.db.exec(ctx, tx,
			`INSERT INTO compositions (page_id, version, doc_json, updated_at) VALUES (?, ?, ?, ?)`,
			p.ID, 1, doc, now,
		); err != nil {
			return fmt.Errorf("insert composition: %w", err)
		}
		return nil
	})
}

func (s *PageStore) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	p := &domain.Page{}
	err := s.db.queryRow(ctx, s.db.conn,
		`SELECT id, name, created_at, updated_at FROM pages WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "page", id)
	}
	return p, nil
}

func (s *PageStore) ListPages(ctx context.Context) ([]domain.Page, error) {
	rows, err := s.db.query(ctx, s.db.conn, `SELECT id, name, created_at, updated_at FROM pages ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.Page
	for rows.Next() {
		var p domain.Page
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *PageStore) RenamePage(ctx context.Context, id, name string) error {
	res, err := s.db.exec(ctx, s.db.conn,
		`UPDATE pages SET name = ?, updated_at = ? WHERE id = ?`, name, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("rename page: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("page %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeletePage removes the page and everything recorded against it.
func (s *PageStore) DeletePage(ctx context.Context, id string) error {
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			`DELETE FROM messages WHERE thread_id IN (SELECT id FROM threads WHERE page_id = ?)`,
			`DELETE FROM threads WHERE page_id = ?`,
			`DELETE FROM comments WHERE page_id = ?`,
			`DELETE FROM undo_state WHERE page_id = ?`,
			`DELETE FROM undo_nodes WHERE page_id = ?`,
			`DELETE FROM compositions WHERE page_id = ?`,
		}
		for _, q := range stmts {
			if _, err := s.db.exec(ctx, tx, q, id); err != nil {
				return fmt.Errorf("delete page %s: %w", id, err)
			}
		}
		res, err := s.db.exec(ctx, tx, `DELETE FROM pages WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete page %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("page %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}

func (s *PageStore) LoadComposition(ctx context.Context, pageID string) (domain.Composition, error) {
	var (
		version int64
		doc     string
		updated time.Time
	)
	err := s.db.queryRow(ctx, s.db.conn,
		`SELECT version, doc_json, updated_at FROM compositions WHERE page_id = ?`, pageID,
	).Scan(&version, &doc, &updated)
	if err != nil {
		return domain.Composition{}, notFound(err, "composition", pageID)
	}
	return decodeComposition(pageID, version, doc, updated)
}

// SaveComposition writes c if the stored version still equals c.Version and
// returns the new version. Any other stored version is a conflict.
func (s *PageStore) SaveComposition(ctx context.Context, c domain.Composition) (int64, error) {
	doc, err := encodeComposition(c)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	next := c.Version + 1
	err = s.db.inTx(ctx, func(tx *sql.Tx) error {
		var stored int64
		err := s.db.queryRow(ctx, tx, `SELECT version FROM compositions WHERE page_id = ?`, c.PageID).Scan(&stored)
		if err != nil {
			return notFound(err, "composition", c.PageID)
		}
		if stored != c.Version {
			return fmt.Errorf("save composition %s at version %d, stored %d: %w", c.PageID, c.Version, stored, domain.ErrConflict)
		}
		res, err := s.db.exec(ctx, tx,
			`UPDATE compositions SET version = ?, doc_json = ?, updated_at = ? WHERE page_id = ? AND version = ?`,
			next, doc, now, c.PageID, c.Version,
		)
		if err != nil {
			return fmt.Errorf("update composition: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("save composition %s: %w", c.PageID, domain.ErrConflict)
		}
		if _, err := s.db.exec(ctx, tx, `UPDATE pages SET updated_at = ? WHERE id = ?`, now, c.PageID); err != nil {
			return fmt.Errorf("touch page: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// CompositionVersion is the cheap fingerprint the watcher polls.
func (s *PageStore) CompositionVersion(ctx context.Context, pageID string) (int64, error) {
	var v int64
	err := s.db.queryRow(ctx, s.db.conn, `SELECT version FROM compositions WHERE page_id = ?`, pageID).Scan(&v)
	if err != nil {
		return 0, notFound(err, "composition", pageID)
	}
	return v, nil
}

var _ domain.CompositionStore = (*PageStore)(nil)

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
