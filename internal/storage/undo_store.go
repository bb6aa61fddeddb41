package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pagecraft/internal/domain"
)

// DefaultUndoLimit is how many nodes a page keeps when no limit is given.
const DefaultUndoLimit = 40

// UndoNode is one entry of a page's undo tree. The snapshot is the whole
// composition after the labelled change.
type UndoNode struct {
	ID           string    `json:"id"`
	PageID       string    `json:"pageId"`
	ParentID     *string   `json:"parentId"`
	Label        string    `json:"label"`
	Seq          int64     `json:"seq"`
	SnapshotJSON string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Composition decodes the node's snapshot.
func (n *UndoNode) Composition() (domain.Composition, error) {
	return decodeComposition(n.PageID, 0, n.SnapshotJSON, n.CreatedAt)
}

// UndoTree is the full history of a page.
type UndoTree struct {
	Nodes     []UndoNode `json:"nodes"`
	CurrentID string     `json:"currentId"`
	RootID    string     `json:"rootId"`
}

// UndoStore keeps undo history per page. Moving back and forth only moves
// the current pointer; pushing from the middle starts a new branch.
type UndoStore struct {
	db    *DB
	limit int
}

func NewUndoStore(db *DB, limit int) *UndoStore {
	if limit <= 0 {
		limit = DefaultUndoLimit
	}
	return &UndoStore{db: db, limit: limit}
}

const undoColumns = `id, page_id, parent_id, label, seq, snapshot_json, created_at`

func scanUndoNode(row scanner) (*UndoNode, error) {
	var n UndoNode
	var parent sql.NullString
	if err := row.Scan(&n.ID, &n.PageID, &parent, &n.Label, &n.Seq, &n.SnapshotJSON, &n.CreatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		n.ParentID = &parent.String
	}
	return &n, nil
}

// LoadTree returns the undo tree of a page, or nil if it has no history.
func (s *UndoStore) LoadTree(ctx context.Context, pageID string) (*UndoTree, error) {
	rows, err := s.db.query(ctx, s.db.conn,
		`SELECT `+undoColumns+` FROM undo_nodes WHERE page_id = ? ORDER BY seq ASC`, pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("load undo nodes: %w", err)
	}
	defer rows.Close()

	var nodes []UndoNode
	var rootID string
	for rows.Next() {
		n, err := scanUndoNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan undo node: %w", err)
		}
		if n.ParentID == nil && rootID == "" {
			rootID = n.ID
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}

	currentID, err := s.currentID(ctx, s.db.conn, pageID)
	if err != nil {
		currentID = rootID
	}
	return &UndoTree{Nodes: nodes, CurrentID: currentID, RootID: rootID}, nil
}

func (s *UndoStore) currentID(ctx context.Context, q execer, pageID string) (string, error) {
	var id string
	err := s.db.queryRow(ctx, q, `SELECT current_node_id FROM undo_state WHERE page_id = ?`, pageID).Scan(&id)
	return id, err
}

// PushNode records c as a child of the current node and makes it current.
func (s *UndoStore) PushNode(ctx context.Context, pageID, label string, c domain.Composition) (*UndoNode, error) {
	snapshot, err := encodeComposition(c)
	if err != nil {
		return nil, err
	}
	n := &UndoNode{
		ID:           uuid.New().String(),
		PageID:       pageID,
		Label:        label,
		SnapshotJSON: snapshot,
		CreatedAt:    time.Now().UTC(),
	}
	err = s.db.inTx(ctx, func(tx *sql.Tx) error {
		if cur, err := s.currentID(ctx, tx, pageID); err == nil {
			n.ParentID = &cur
		} else if !isNoRows(err) {
			return fmt.Errorf("read undo state: %w", err)
		}
		if err := s.db.queryRow(ctx, tx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM undo_nodes WHERE page_id = ?`, pageID,
		).Scan(&n.Seq); err != nil {
			return fmt.Errorf("next undo seq: %w", err)
		}
		if _, err := s.db.exec(ctx, tx,
			`INSERT INTO undo_nodes (`+undoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.PageID, n.ParentID, n.Label, n.Seq, n.SnapshotJSON, n.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert undo node: %w", err)
		}
		return s.setCurrent(ctx, tx, pageID, n.ID)
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.Prune(ctx, pageID, s.limit); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *UndoStore) setCurrent(ctx context.Context, q execer, pageID, nodeID string) error {
	if _, err := s.db.exec(ctx, q, s.db.upsert("undo_state", "page_id", "current_node_id"), pageID, nodeID); err != nil {
		return fmt.Errorf("update undo state: %w", err)
	}
	return nil
}

func (s *UndoStore) Node(ctx context.Context, id string) (*UndoNode, error) {
	n, err := scanUndoNode(s.db.queryRow(ctx, s.db.conn, `SELECT `+undoColumns+` FROM undo_nodes WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "undo node", id)
	}
	return n, nil
}

// Current returns the node the page is at.
func (s *UndoStore) Current(ctx context.Context, pageID string) (*UndoNode, error) {
	id, err := s.currentID(ctx, s.db.conn, pageID)
	if err != nil {
		return nil, notFound(err, "undo state", pageID)
	}
	return s.Node(ctx, id)
}

// GoTo moves the current pointer to nodeID, which must belong to pageID.
func (s *UndoStore) GoTo(ctx context.Context, pageID, nodeID string) (*UndoNode, error) {
	n, err := s.Node(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if n.PageID != pageID {
		return nil, fmt.Errorf("undo node %s on page %s: %w", nodeID, pageID, domain.ErrNotFound)
	}
	if err := s.setCurrent(ctx, s.db.conn, pageID, nodeID); err != nil {
		return nil, err
	}
	return n, nil
}

// UndoTarget returns the parent of the current node without moving the
// current pointer.
func (s *UndoStore) UndoTarget(ctx context.Context, pageID string) (*UndoNode, error) {
	cur, err := s.Current(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if cur.ParentID == nil {
		return nil, fmt.Errorf("undo %s: nothing to undo: %w", pageID, domain.ErrNotFound)
	}
	return s.Node(ctx, *cur.ParentID)
}

// RedoTarget returns the most recent child of the current node without
// moving the current pointer.
func (s *UndoStore) RedoTarget(ctx context.Context, pageID string) (*UndoNode, error) {
	cur, err := s.Current(ctx, pageID)
	if err != nil {
		return nil, err
	}
	var childID string
	err = s.db.queryRow(ctx, s.db.conn,
		`SELECT id FROM undo_nodes WHERE parent_id = ? ORDER BY seq DESC LIMIT 1`, cur.ID,
	).Scan(&childID)
	if isNoRows(err) {
		return nil, fmt.Errorf("redo %s: nothing to redo: %w", pageID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redo %s: %w", pageID, err)
	}
	return s.Node(ctx, childID)
}

// Undo steps to the parent of the current node.
func (s *UndoStore) Undo(ctx context.Context, pageID string) (*UndoNode, error) {
	n, err := s.UndoTarget(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return s.GoTo(ctx, pageID, n.ID)
}

// Redo steps to the most recent child of the current node.
func (s *UndoStore) Redo(ctx context.Context, pageID string) (*UndoNode, error) {
	n, err := s.RedoTarget(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return s.GoTo(ctx, pageID, n.ID)
}

// ClearPage removes all undo data for a page.
func (s *UndoStore) ClearPage(ctx context.Context, pageID string) error {
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.db.exec(ctx, tx, `DELETE FROM undo_state WHERE page_id = ?`, pageID); err != nil {
			return err
		}
		_, err := s.db.exec(ctx, tx, `DELETE FROM undo_nodes WHERE page_id = ?`, pageID)
		return err
	})
}

// Prune drops the oldest nodes of a page beyond maxNodes, never the current
// one. Children of a dropped node are reattached to its parent. It returns
// how many nodes were removed.
func (s *UndoStore) Prune(ctx context.Context, pageID string, maxNodes int) (int, error) {
	removed := 0
	err := s.db.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := s.db.queryRow(ctx, tx, `SELECT COUNT(*) FROM undo_nodes WHERE page_id = ?`, pageID).Scan(&count); err != nil {
			return fmt.Errorf("count undo nodes: %w", err)
		}
		if count <= maxNodes {
			return nil
		}
		currentID, _ := s.currentID(ctx, tx, pageID)

		// Collect ids first; the cursor must be closed before writing.
		rows, err := s.db.query(ctx, tx,
			`SELECT id, parent_id FROM undo_nodes WHERE page_id = ? ORDER BY seq ASC LIMIT ?`, pageID, count-maxNodes,
		)
		if err != nil {
			return fmt.Errorf("select undo nodes to prune: %w", err)
		}
		type victim struct {
			id     string
			parent sql.NullString
		}
		var victims []victim
		for rows.Next() {
			var v victim
			if err := rows.Scan(&v.id, &v.parent); err != nil {
				rows.Close()
				return err
			}
			if v.id != currentID {
				victims = append(victims, v)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, v := range victims {
			// The parent may itself have been pruned in this pass.
			var parent sql.NullString
			err := s.db.queryRow(ctx, tx, `SELECT parent_id FROM undo_nodes WHERE id = ?`, v.id).Scan(&parent)
			if err != nil {
				return fmt.Errorf("reload undo node %s: %w", v.id, err)
			}
			if _, err := s.db.exec(ctx, tx,
				`UPDATE undo_nodes SET parent_id = ? WHERE parent_id = ?`, parent, v.id,
			); err != nil {
				return fmt.Errorf("reparent undo nodes: %w", err)
			}
			if _, err := s.db.exec(ctx, tx, `DELETE FROM undo_nodes WHERE id = ?`, v.id); err != nil {
				return fmt.Errorf("delete undo node: %w", err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// PruneAll applies Prune with the store's limit to every page.
func (s *UndoStore) PruneAll(ctx context.Context) (int, error) {
	rows, err := s.db.query(ctx, s.db.conn, `SELECT DISTINCT page_id FROM undo_nodes`)
	if err != nil {
		return 0, fmt.Errorf("list undo pages: %w", err)
	}
	var pages []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		pages = append(pages, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	total := 0
	for _, id := range pages {
		n, err := s.Prune(ctx, id, s.limit)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
