package domain

// PageState is everything a renderer needs for one page: structure and props
// of every block plus the comments anchored on them.
type PageState struct {
	Page        Page        `json:"page"`
	Composition Composition `json:"composition"`
	Comments    []Comment   `json:"comments"`
	SelectedID  string      `json:"selectedId,omitempty"`
}
