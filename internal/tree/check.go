package tree

import (
	"errors"
	"fmt"

	"pagecraft/internal/domain"
	"pagecraft/internal/registry"
)

// Check verifies the structural invariants of a composition: every placed
// id exists and is placed exactly once, every block is placed, parent
// back-references agree with the containers, every edge obeys the nesting
// rules, and there are no cycles.
func Check(reg *registry.Registry, c domain.Composition) error {
	var errs []error
	placed := make(map[string]string, len(c.Blocks))

	var visit func(parentID string, ids []string, parentType domain.BlockType)
	visit = func(parentID string, ids []string, parentType domain.BlockType) {
		for _, id := range ids {
			b, ok := c.Blocks[id]
			if !ok {
				errs = append(errs, fmt.Errorf("dangling reference %s in %s", id, describe(parentType)))
				continue
			}
			if prev, dup := placed[id]; dup {
				errs = append(errs, fmt.Errorf("block %s placed twice (in %q and %q)", id, prev, parentID))
				continue
			}
			placed[id] = parentID
			if b.ParentID != parentID {
				errs = append(errs, fmt.Errorf("block %s has parentId %q but is listed in %q", id, b.ParentID, parentID))
			}
			if !reg.CanPlace(parentType, b.Type) {
				errs = append(errs, fmt.Errorf("block %s (%s) may not be placed in %s", id, b.Type, describe(parentType)))
			}
			visit(id, b.Children, b.Type)
		}
	}
	visit("", c.RootOrder, "")

	for id := range c.Blocks {
		if _, ok := placed[id]; !ok {
			errs = append(errs, fmt.Errorf("block %s is not reachable from the page root", id))
		}
	}
	return errors.Join(errs...)
}
