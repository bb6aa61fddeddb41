package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pagecraft/internal/dnd"
	"pagecraft/internal/domain"
	"pagecraft/internal/selection"
	"pagecraft/internal/storage"
	"pagecraft/internal/variant"
)

// ── Structural edits ───────────────────────────────────────

// Insert adds a block of type t with default props and selects it.
func (e *Editor) Insert(ctx context.Context, pageID string, t domain.BlockType, parentID string, index int) (domain.Composition, *domain.Block, error) {
	var added *domain.Block
	c, err := e.commit(ctx, pageID, "insert "+string(t), func(_ *Session, sel *domain.Selection, c domain.Composition) (domain.Composition, bool, error) {
		next, b, err := e.model.Insert(c, t, parentID, index)
		if err != nil {
			return c, false, err
		}
		added = b.Clone()
		sel.SelectedID = b.ID
		return next, true, nil
	})
	return c, added, err
}

func (e *Editor) Move(ctx context.Context, pageID, id, newParentID string, newIndex int) (domain.Composition, error) {
	return e.commit(ctx, pageID, "move", func(_ *Session, _ *domain.Selection, c domain.Composition) (domain.Composition, bool, error) {
		next, err := e.model.Move(c, id, newParentID, newIndex)
		return next, err == nil, err
	})
}

// Duplicate copies a block with its subtree next to the original and
// selects the copy.
func (e *Editor) Duplicate(ctx context.Context, pageID, id string) (domain.Composition, *domain.Block, error) {
	var dup *domain.Block
	c, err := e.commit(ctx, pageID, "duplicate", func(_ *Session, sel *domain.Selection, c domain.Composition) (domain.Composition, bool, error) {
		next, b, err := e.model.Duplicate(c, id)
		if err != nil {
			return c, false, err
		}
		dup = b.Clone()
		sel.SelectedID = b.ID
		return next, true, nil
	})
	return c, dup, err
}

// Delete removes a block and its subtree, returning the removed ids.
func (e *Editor) Delete(ctx context.Context, pageID, id string) (domain.Composition, []string, error) {
	var removed []string
	c, err := e.commit(ctx, pageID, "delete", func(_ *Session, sel *domain.Selection, c domain.Composition) (domain.Composition, bool, error) {
		next, ids, err := e.model.Delete(c, id, sel)
		if err != nil {
			return c, false, err
		}
		removed = ids
		return next, true, nil
	})
	return c, removed, err
}

// ── Props ──────────────────────────────────────────────────

// SetProps validates and merges patch into the props of id. It returns the
// values the patch replaced.
func (e *Editor) SetProps(ctx context.Context, pageID, id string, patch domain.Props) (domain.Composition, domain.Props, error) {
	var prev domain.Props
	c, err := e.commit(ctx, pageID, "set props", func(s *Session, _ *domain.Selection, c domain.Composition) (domain.Composition, bool, error) {
		next, p, err := s.props.WriteProps(c, id, patch)
		if err != nil {
			return c, false, err
		}
		prev = p
		return next, true, nil
	})
	return c, prev, err
}

// ApplyVariant replaces the preset fields of id with those of variantID.
func (e *Editor) ApplyVariant(ctx context.Context, pageID, id, variantID string) (domain.Composition, domain.Props, error) {
	var prev domain.Props
	c, err := e.commit(ctx, pageID, "variant "+variantID, func(_ *Session, _ *domain.Selection, c domain.Composition) (domain.Composition, bool, error) {
		next, p, err := e.variants.Apply(c, id, variantID)
		if err != nil {
			return c, false, err
		}
		prev = p
		return next, true, nil
	})
	return c, prev, err
}

// VariantsFor lists the variants offered for the type of block id.
func (e *Editor) VariantsFor(ctx context.Context, pageID, id string) ([]variant.Variant, error) {
	c, err := e.Composition(ctx, pageID)
	if err != nil {
		return nil, err
	}
	b, ok := c.Blocks[id]
	if !ok {
		return nil, fmt.Errorf("variants for %s: %w", id, domain.ErrNotFound)
	}
	return e.variants.VariantsFor(b.Type), nil
}

// ── Selection ──────────────────────────────────────────────

func (e *Editor) Select(ctx context.Context, pageID, id string) error {
	s, err := e.session(ctx, pageID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.props.Clear()
		return nil
	}
	if _, ok := s.comp.Blocks[id]; !ok {
		return fmt.Errorf("select %s: %w", id, domain.ErrNotFound)
	}
	s.props.Select(id)
	return nil
}

// Selected returns the selected block of a page, if any.
func (e *Editor) Selected(ctx context.Context, pageID string) (string, bool, error) {
	s, err := e.session(ctx, pageID)
	if err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.props.Selected(s.comp)
	return id, ok, nil
}

// Fields renders the property form of block id.
func (e *Editor) Fields(ctx context.Context, pageID, id string) ([]selection.FieldView, error) {
	s, err := e.session(ctx, pageID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.props.Fields(s.comp, id)
}

// ── Drag and drop ──────────────────────────────────────────

func (e *Editor) StartDrag(ctx context.Context, pageID, id string) error {
	s, err := e.session(ctx, pageID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Start(s.comp, id)
}

// DragOver hovers an explicit placement and reports whether it is valid.
func (e *Editor) DragOver(ctx context.Context, pageID string, target domain.Placement) (bool, error) {
	s, err := e.session(ctx, pageID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Over(s.comp, target), nil
}

// DragOverPoint hit-tests (x, y) against the rendered layout.
func (e *Editor) DragOverPoint(ctx context.Context, pageID string, layout dnd.Layout, x, y float64) (bool, error) {
	s, err := e.session(ctx, pageID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.OverPoint(s.comp, layout, x, y), nil
}

// DragPreview is the composition as it would look if the gesture ended now.
func (e *Editor) DragPreview(ctx context.Context, pageID string) (domain.Composition, bool, error) {
	s, err := e.session(ctx, pageID)
	if err != nil {
		return domain.Composition{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.drag.Preview(s.comp)
	return c, ok, nil
}

// Drop ends the gesture. Only a valid last hover is committed and saved.
func (e *Editor) Drop(ctx context.Context, pageID string) (domain.Composition, dnd.Result, error) {
	var res dnd.Result
	c, err := e.commit(ctx, pageID, "drop", func(s *Session, sel *domain.Selection, c domain.Composition) (domain.Composition, bool, error) {
		next, r := s.drag.End(c, sel)
		res = r
		return next, r.Committed, nil
	})
	return c, res, err
}

func (e *Editor) CancelDrag(ctx context.Context, pageID string) error {
	s, err := e.session(ctx, pageID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag.Cancel()
	return nil
}

// ── Undo ───────────────────────────────────────────────────

// Undo restores the composition recorded before the last edit.
func (e *Editor) Undo(ctx context.Context, pageID string) (domain.Composition, error) {
	return e.travel(ctx, pageID, "undo", func(ctx context.Context) (*storage.UndoNode, error) {
		return e.undo.UndoTarget(ctx, pageID)
	})
}

// Redo moves forward along the most recent branch.
func (e *Editor) Redo(ctx context.Context, pageID string) (domain.Composition, error) {
	return e.travel(ctx, pageID, "redo", func(ctx context.Context) (*storage.UndoNode, error) {
		return e.undo.RedoTarget(ctx, pageID)
	})
}

// JumpTo restores the snapshot of any node of the page's undo tree,
// including nodes on abandoned branches.
func (e *Editor) JumpTo(ctx context.Context, pageID, nodeID string) (domain.Composition, error) {
	return e.travel(ctx, pageID, "jump", func(ctx context.Context) (*storage.UndoNode, error) {
		n, err := e.undo.Node(ctx, nodeID)
		if err != nil {
			return nil, err
		}
		if n.PageID != pageID {
			return nil, fmt.Errorf("undo node %s on page %s: %w", nodeID, pageID, domain.ErrNotFound)
		}
		return n, nil
	})
}

// History returns the undo tree of a page.
func (e *Editor) History(ctx context.Context, pageID string) (*storage.UndoTree, error) {
	if e.undo == nil {
		return nil, fmt.Errorf("history: no undo history configured: %w", domain.ErrNotFound)
	}
	if _, err := e.session(ctx, pageID); err != nil {
		return nil, err
	}
	return e.undo.LoadTree(ctx, pageID)
}

// travel saves the snapshot of the node target resolves. The history
// pointer only moves once the page has accepted the snapshot.
func (e *Editor) travel(ctx context.Context, pageID, label string, target func(context.Context) (*storage.UndoNode, error)) (domain.Composition, error) {
	if e.undo == nil {
		return domain.Composition{}, fmt.Errorf("%s: no undo history configured: %w", label, domain.ErrNotFound)
	}
	s, err := e.session(ctx, pageID)
	if err != nil {
		return domain.Composition{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		if err := e.reload(ctx, pageID, s); err != nil {
			return domain.Composition{}, err
		}
	}

	node, err := target(ctx)
	if err != nil {
		return s.comp.Clone(), err
	}
	snap, err := node.Composition()
	if err != nil {
		return s.comp.Clone(), fmt.Errorf("%s: decode snapshot: %w", label, err)
	}
	snap.PageID = pageID
	snap.Version = s.comp.Version
	version, err := e.store.SaveComposition(ctx, snap)
	if errors.Is(err, domain.ErrConflict) {
		return e.conflict(ctx, pageID, label, s, err)
	}
	if err != nil {
		return s.comp.Clone(), fmt.Errorf("%s: persist: %w", label, err)
	}
	if _, err := e.undo.GoTo(ctx, pageID, node.ID); err != nil {
		e.log.Warn("move undo pointer", zap.String("pageId", pageID), zap.String("node", node.ID), zap.Error(err))
	}
	snap.Version = version
	s.comp = snap
	s.props.Selected(snap)
	e.emitter.Emit(ctx, EventCompositionChanged, CompositionChanged{PageID: pageID, Version: version, Label: label})
	return snap.Clone(), nil
}
