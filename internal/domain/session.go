package domain

// Selection is the currently selected block. An empty SelectedID means
// nothing is selected.
type Selection struct {
	SelectedID string `json:"selectedId"`
}

// Clear drops the selection if it points at any of ids.
func (s *Selection) Clear(ids ...string) {
	if s == nil || s.SelectedID == "" {
		return
	}
	for _, id := range ids {
		if id == s.SelectedID {
			s.SelectedID = ""
			return
		}
	}
}

// DragSession lives for one pointer gesture. Preview is the last valid drop
// target seen; Valid reports whether the most recent hover was droppable.
type DragSession struct {
	DraggedID string     `json:"draggedId"`
	Original  Placement  `json:"original"`
	Preview   *Placement `json:"preview,omitempty"`
	Valid     bool       `json:"valid"`
}
