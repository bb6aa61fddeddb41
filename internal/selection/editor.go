// Package selection tracks the selected block and exposes its props as a
// schema-driven form.
package selection

import (
	"fmt"

	"pagecraft/internal/domain"
	"pagecraft/internal/registry"
	"pagecraft/internal/tree"
)

// Editor is the property editor of one user.
type Editor struct {
	model *tree.Model
	sel   domain.Selection
}

func NewEditor(model *tree.Model) *Editor {
	return &Editor{model: model}
}

// Select makes id the selected block. The id is not checked here; a stale
// selection is dropped the next time it is read.
func (e *Editor) Select(id string) {
	e.sel.SelectedID = id
}

// Clear deselects.
func (e *Editor) Clear() {
	e.sel.SelectedID = ""
}

// Selection exposes the underlying selection for operations that clear it,
// such as Delete or a committed drop.
func (e *Editor) Selection() *domain.Selection {
	return &e.sel
}

// Selected returns the selected id if it still names a block of c.
func (e *Editor) Selected(c domain.Composition) (string, bool) {
	if e.sel.SelectedID == "" {
		return "", false
	}
	if _, ok := c.Blocks[e.sel.SelectedID]; !ok {
		e.sel.SelectedID = ""
		return "", false
	}
	return e.sel.SelectedID, true
}

// ReadProps returns a deep copy of the props of id.
func (e *Editor) ReadProps(c domain.Composition, id string) (domain.Props, error) {
	b, ok := c.Blocks[id]
	if !ok {
		return nil, fmt.Errorf("read props %s: %w", id, domain.ErrNotFound)
	}
	return b.Props.Clone(), nil
}

// WriteProps validates and applies patch through the tree model. A rejected
// patch returns the *domain.ValidationError as is, listing every bad field.
func (e *Editor) WriteProps(c domain.Composition, id string, patch domain.Props) (domain.Composition, domain.Props, error) {
	return e.model.SetProps(c, id, patch)
}

// FieldView is one row of the property form.
type FieldView struct {
	Name     string             `json:"name"`
	Label    string             `json:"label"`
	Kind     registry.FieldKind `json:"kind"`
	Value    any                `json:"value"`
	Default  any                `json:"default,omitempty"`
	Required bool               `json:"required,omitempty"`
	Min      *float64           `json:"min,omitempty"`
	Max      *float64           `json:"max,omitempty"`
	MaxLen   int                `json:"maxLen,omitempty"`
	Enum     []string           `json:"enum,omitempty"`
	// Set is false when the block carries no value and Value is the default.
	Set bool `json:"set"`
}

// Fields describes every schema field of id with its current value, sorted
// by name.
func (e *Editor) Fields(c domain.Composition, id string) ([]FieldView, error) {
	b, ok := c.Blocks[id]
	if !ok {
		return nil, fmt.Errorf("fields %s: %w", id, domain.ErrNotFound)
	}
	def, err := e.model.Registry().Get(b.Type)
	if err != nil {
		return nil, fmt.Errorf("fields %s: %w", id, err)
	}
	views := make([]FieldView, 0, len(def.Schema))
	for _, name := range def.Schema.Names() {
		f := def.Schema[name]
		v, set := b.Props[name]
		if !set {
			v = f.Default
		}
		label := f.Label
		if label == "" {
			label = name
		}
		views = append(views, FieldView{
			Name:     name,
			Label:    label,
			Kind:     f.Kind,
			Value:    domain.CloneValue(v),
			Default:  domain.CloneValue(f.Default),
			Required: f.Required,
			Min:      f.Min,
			Max:      f.Max,
			MaxLen:   f.MaxLen,
			Enum:     f.Enum,
			Set:      set,
		})
	}
	return views, nil
}
