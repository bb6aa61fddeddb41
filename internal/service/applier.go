package service

import (
	"context"
	"fmt"

	"pagecraft/internal/domain"
	"pagecraft/internal/revision"
)

var _ revision.Applier = (*Editor)(nil)

// Snapshot returns a copy of block blockID as the live composition holds
// it now.
func (e *Editor) Snapshot(ctx context.Context, pageID, blockID string) (domain.Block, error) {
	c, err := e.Composition(ctx, pageID)
	if err != nil {
		return domain.Block{}, err
	}
	b, ok := c.Blocks[blockID]
	if !ok {
		return domain.Block{}, fmt.Errorf("snapshot %s: %w", blockID, domain.ErrNotFound)
	}
	return *b.Clone(), nil
}

// ApplyPatch applies an agent's patch to whatever the page holds at the
// time of the call and persists it like any other edit. The selection is
// left alone.
func (e *Editor) ApplyPatch(ctx context.Context, pageID, blockID string, patch domain.Props) (domain.Props, error) {
	var prev domain.Props
	_, err := e.commit(ctx, pageID, "revision", func(_ *Session, _ *domain.Selection, c domain.Composition) (domain.Composition, bool, error) {
		next, p, err := e.model.SetProps(c, blockID, patch)
		if err != nil {
			return c, false, err
		}
		prev = p
		return next, true, nil
	})
	return prev, err
}
