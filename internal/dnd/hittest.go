package dnd

import (
	"pagecraft/internal/domain"
	"pagecraft/internal/tree"
)

type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

func (r Rect) midY() float64 { return r.Y + r.H/2 }

// Slot is the on-screen rectangle of one child of a container.
type Slot struct {
	ID   string
	Rect Rect
}

// Region is the on-screen area of a container as laid out by the renderer.
// ContainerID "" is the page root. Slots list the container's children in
// order; Z is the stacking order, higher on top.
type Region struct {
	ContainerID string
	Rect        Rect
	Z           int
	Slots       []Slot
}

type Layout []Region

// HitTest picks the drop target under (x, y): the deepest container that
// contains the point and accepts the dragged block, ties going to the
// topmost region. The index is counted among the container's other children
// by vertical midpoint.
func HitTest(m *tree.Model, c domain.Composition, layout Layout, draggedID string, x, y float64) (domain.Placement, bool) {
	var best *Region
	bestDepth := -1
	for i := range layout {
		r := &layout[i]
		if !r.Rect.Contains(x, y) {
			continue
		}
		depth, ok := depthOf(c, r.ContainerID)
		if !ok {
			continue
		}
		if m.CanMove(c, draggedID, r.ContainerID, 0) != nil {
			continue
		}
		if best == nil || depth > bestDepth || (depth == bestDepth && r.Z > best.Z) {
			best, bestDepth = r, depth
		}
	}
	if best == nil {
		return domain.Placement{}, false
	}

	index := 0
	for _, s := range best.Slots {
		if s.ID == draggedID {
			continue
		}
		if y < s.Rect.midY() {
			break
		}
		index++
	}
	return domain.Placement{ParentID: best.ContainerID, Index: index}, true
}

// depthOf is 0 for the page root and grows by one per nesting level.
func depthOf(c domain.Composition, id string) (int, bool) {
	depth := 0
	for cur := id; cur != ""; depth++ {
		b, ok := c.Blocks[cur]
		if !ok || depth > len(c.Blocks) {
			return 0, false
		}
		cur = b.ParentID
	}
	return depth, true
}
