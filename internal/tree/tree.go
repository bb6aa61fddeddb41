// Package tree holds the block tree operations. Every operation takes a
// Composition by value and returns a new one; the input is never modified,
// so callers can keep it as an undo point.
package tree

import (
	"fmt"
	"slices"

	"pagecraft/internal/domain"
	"pagecraft/internal/registry"
)

// Model applies structural operations under the nesting rules of a registry.
type Model struct {
	reg *registry.Registry
	ids IDGenerator
}

// NewModel returns a Model. A nil ids falls back to UUIDs.
func NewModel(reg *registry.Registry, ids IDGenerator) *Model {
	if ids == nil {
		ids = UUIDs{}
	}
	return &Model{reg: reg, ids: ids}
}

// Registry returns the registry the model validates against.
func (m *Model) Registry() *registry.Registry { return m.reg }

// Insert places a new block of type t with default props at index of the
// container parentID ("" for the page root).
func (m *Model) Insert(c domain.Composition, t domain.BlockType, parentID string, index int) (domain.Composition, *domain.Block, error) {
	def, err := m.reg.Get(t)
	if err != nil {
		return c, nil, fmt.Errorf("insert: %w", err)
	}
	parentType, err := m.parentType(c, parentID)
	if err != nil {
		return c, nil, fmt.Errorf("insert: %w", err)
	}
	if !m.reg.CanPlace(parentType, t) {
		return c, nil, fmt.Errorf("insert %s into %s: %w", t, describe(parentType), domain.ErrInvalidNesting)
	}
	siblings, _ := c.Container(parentID)
	if index < 0 || index > len(siblings) {
		return c, nil, fmt.Errorf("insert at %d of %d: %w", index, len(siblings), domain.ErrIndexOutOfRange)
	}

	next := c.Clone()
	b := &domain.Block{
		ID:       m.newID(next),
		Type:     t,
		Props:    def.Schema.Defaults(),
		Children: []string{},
		ParentID: parentID,
	}
	next.Blocks[b.ID] = b
	setContainer(&next, parentID, slices.Insert(containerOf(next, parentID), index, b.ID))
	return next, b, nil
}

// Move relocates id (with its subtree) to index of newParentID. The index
// addresses the destination container after id has been taken out of its
// current position, so moving back to the original placement is an exact
// inverse.
func (m *Model) Move(c domain.Composition, id, newParentID string, newIndex int) (domain.Composition, error) {
	if err := m.CanMove(c, id, newParentID, newIndex); err != nil {
		return c, err
	}
	next := c.Clone()
	detach(&next, id)
	next.Blocks[id].ParentID = newParentID
	setContainer(&next, newParentID, slices.Insert(containerOf(next, newParentID), newIndex, id))
	return next, nil
}

// CanMove reports why Move(c, id, newParentID, newIndex) would fail, or nil.
func (m *Model) CanMove(c domain.Composition, id, newParentID string, newIndex int) error {
	b, ok := c.Blocks[id]
	if !ok {
		return fmt.Errorf("move %s: %w", id, domain.ErrNotFound)
	}
	parentType, err := m.parentType(c, newParentID)
	if err != nil {
		return fmt.Errorf("move %s: %w", id, err)
	}
	if newParentID != "" && c.IsAncestor(id, newParentID) {
		return fmt.Errorf("move %s into %s: %w", id, newParentID, domain.ErrCyclicMove)
	}
	if !m.reg.CanPlace(parentType, b.Type) {
		return fmt.Errorf("move %s into %s: %w", b.Type, describe(parentType), domain.ErrInvalidNesting)
	}
	dest, _ := c.Container(newParentID)
	size := len(dest)
	if b.ParentID != newParentID {
		size++
	}
	if newIndex < 0 || newIndex >= size {
		return fmt.Errorf("move to %d of %d: %w", newIndex, size-1, domain.ErrIndexOutOfRange)
	}
	return nil
}

// Duplicate deep-copies id and its subtree with fresh ids and places the
// copy right after the source.
func (m *Model) Duplicate(c domain.Composition, id string) (domain.Composition, *domain.Block, error) {
	at, ok := c.IndexOf(id)
	if !ok {
		return c, nil, fmt.Errorf("duplicate %s: %w", id, domain.ErrNotFound)
	}
	next := c.Clone()
	copyID := m.cloneSubtree(&next, c, id, at.ParentID)
	setContainer(&next, at.ParentID, slices.Insert(containerOf(next, at.ParentID), at.Index+1, copyID))
	return next, next.Blocks[copyID], nil
}

// Delete removes id and its subtree, returning the removed ids. A selection
// that pointed into the subtree is cleared.
func (m *Model) Delete(c domain.Composition, id string, sel *domain.Selection) (domain.Composition, []string, error) {
	if _, ok := c.Blocks[id]; !ok {
		return c, nil, fmt.Errorf("delete %s: %w", id, domain.ErrNotFound)
	}
	removed := c.Subtree(id)
	next := c.Clone()
	detach(&next, id)
	for _, rid := range removed {
		delete(next.Blocks, rid)
	}
	sel.Clear(removed...)
	return next, removed, nil
}

// SetProps merges patch into the props of id. The patch is validated as a
// whole against the block's schema and either fully applies or not at all;
// the returned error is then the *domain.ValidationError itself. A nil
// value resets the field to its default. The previous values of the patched
// fields are returned for undo.
func (m *Model) SetProps(c domain.Composition, id string, patch domain.Props) (domain.Composition, domain.Props, error) {
	b, ok := c.Blocks[id]
	if !ok {
		return c, nil, fmt.Errorf("set props %s: %w", id, domain.ErrNotFound)
	}
	def, err := m.reg.Get(b.Type)
	if err != nil {
		return c, nil, fmt.Errorf("set props %s: %w", id, err)
	}
	if err := def.Schema.Validate(patch); err != nil {
		return c, nil, err
	}

	next := c.Clone()
	target := next.Blocks[id]
	if target.Props == nil {
		target.Props = domain.Props{}
	}
	previous := make(domain.Props, len(patch))
	for name, v := range patch {
		previous[name] = domain.CloneValue(b.Props[name])
		if v == nil {
			if f := def.Schema[name]; f.Default != nil {
				target.Props[name] = domain.CloneValue(f.Default)
			} else {
				delete(target.Props, name)
			}
			continue
		}
		target.Props[name] = domain.CloneValue(v)
	}
	return next, previous, nil
}

// ReplaceProps swaps the whole props map of id, returning the old one.
func (m *Model) ReplaceProps(c domain.Composition, id string, props domain.Props) (domain.Composition, domain.Props, error) {
	b, ok := c.Blocks[id]
	if !ok {
		return c, nil, fmt.Errorf("replace props %s: %w", id, domain.ErrNotFound)
	}
	def, err := m.reg.Get(b.Type)
	if err != nil {
		return c, nil, fmt.Errorf("replace props %s: %w", id, err)
	}
	if err := def.Schema.ValidateFull(props); err != nil {
		return c, nil, err
	}
	next := c.Clone()
	next.Blocks[id].Props = props.Clone()
	return next, b.Props.Clone(), nil
}

func (m *Model) parentType(c domain.Composition, parentID string) (domain.BlockType, error) {
	if parentID == "" {
		return "", nil
	}
	p, ok := c.Blocks[parentID]
	if !ok {
		return "", fmt.Errorf("parent %s: %w", parentID, domain.ErrNotFound)
	}
	return p.Type, nil
}

func (m *Model) newID(c domain.Composition) string {
	for {
		id := m.ids.NewID()
		if _, taken := c.Blocks[id]; !taken {
			return id
		}
	}
}

// cloneSubtree copies src's subtree from the original composition into next
// under parentID and returns the id of the copied root.
func (m *Model) cloneSubtree(next *domain.Composition, orig domain.Composition, srcID, parentID string) string {
	src := orig.Blocks[srcID]
	cp := src.Clone()
	cp.ID = m.newID(*next)
	cp.ParentID = parentID
	cp.Children = make([]string, 0, len(src.Children))
	next.Blocks[cp.ID] = cp
	for _, child := range src.Children {
		cp.Children = append(cp.Children, m.cloneSubtree(next, orig, child, cp.ID))
	}
	return cp.ID
}

func containerOf(c domain.Composition, parentID string) []string {
	ids, _ := c.Container(parentID)
	return ids
}

func setContainer(c *domain.Composition, parentID string, ids []string) {
	if parentID == "" {
		c.RootOrder = ids
		return
	}
	c.Blocks[parentID].Children = ids
}

func detach(c *domain.Composition, id string) {
	b := c.Blocks[id]
	siblings := containerOf(*c, b.ParentID)
	if i := slices.Index(siblings, id); i >= 0 {
		setContainer(c, b.ParentID, slices.Delete(slices.Clone(siblings), i, i+1))
	}
}

func describe(parentType domain.BlockType) string {
	if parentType == "" {
		return "page root"
	}
	return string(parentType)
}
