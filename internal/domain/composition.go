package domain

import (
	"slices"
	"time"
)

// Composition is the block forest of one page. Blocks is an arena keyed by id;
// structure is expressed only through RootOrder, Children and ParentID.
type Composition struct {
	PageID    string            `json:"pageId"`
	Version   int64             `json:"version"`
	Blocks    map[string]*Block `json:"blocks"`
	RootOrder []string          `json:"rootOrder"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// NewComposition returns an empty composition for a page.
func NewComposition(pageID string) Composition {
	return Composition{PageID: pageID, Blocks: map[string]*Block{}, RootOrder: []string{}}
}

// Clone returns a deep copy. Callers keep the receiver as an undo point.
func (c Composition) Clone() Composition {
	out := Composition{
		PageID:    c.PageID,
		Version:   c.Version,
		Blocks:    make(map[string]*Block, len(c.Blocks)),
		RootOrder: slices.Clone(c.RootOrder),
		UpdatedAt: c.UpdatedAt,
	}
	if out.RootOrder == nil {
		out.RootOrder = []string{}
	}
	for id, b := range c.Blocks {
		out.Blocks[id] = b.Clone()
	}
	return out
}

// Block returns the block with the given id.
func (c Composition) Block(id string) (*Block, bool) {
	b, ok := c.Blocks[id]
	return b, ok
}

// Container returns the ordered child ids of parentID, or the root sequence
// when parentID is empty. ok is false if parentID names no block.
func (c Composition) Container(parentID string) ([]string, bool) {
	if parentID == "" {
		return c.RootOrder, true
	}
	b, ok := c.Blocks[parentID]
	if !ok {
		return nil, false
	}
	return b.Children, true
}

// IndexOf reports where id is placed.
func (c Composition) IndexOf(id string) (Placement, bool) {
	b, ok := c.Blocks[id]
	if !ok {
		return Placement{}, false
	}
	siblings, ok := c.Container(b.ParentID)
	if !ok {
		return Placement{}, false
	}
	i := slices.Index(siblings, id)
	if i < 0 {
		return Placement{}, false
	}
	return Placement{ParentID: b.ParentID, Index: i}, true
}

// IsAncestor reports whether ancestorID is id itself or one of its ancestors.
func (c Composition) IsAncestor(ancestorID, id string) bool {
	seen := map[string]bool{}
	for cur := id; cur != ""; {
		if cur == ancestorID {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		b, ok := c.Blocks[cur]
		if !ok {
			return false
		}
		cur = b.ParentID
	}
	return false
}

// Subtree returns id and all of its descendants in preorder.
func (c Composition) Subtree(id string) []string {
	var out []string
	var walk func(string)
	walk = func(cur string) {
		b, ok := c.Blocks[cur]
		if !ok {
			return
		}
		out = append(out, cur)
		for _, child := range b.Children {
			walk(child)
		}
	}
	walk(id)
	return out
}

// Walk visits every placed block in document order with its depth.
func (c Composition) Walk(fn func(b *Block, depth int)) {
	var walk func(ids []string, depth int)
	walk = func(ids []string, depth int) {
		for _, id := range ids {
			b, ok := c.Blocks[id]
			if !ok {
				continue
			}
			fn(b, depth)
			walk(b.Children, depth+1)
		}
	}
	walk(c.RootOrder, 0)
}
