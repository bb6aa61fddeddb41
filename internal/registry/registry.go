// Package registry is the static catalog of block types: what each type may
// contain, where it may be placed, and the schema of its props.
package registry

import (
	"fmt"
	"iter"
	"slices"
	"sort"
	"sync"

	"pagecraft/internal/domain"
)

// CapabilityMode selects how a Capability matches block types.
type CapabilityMode string

const (
	CapAny      CapabilityMode = "any"
	CapNone     CapabilityMode = "none"
	CapRootOnly CapabilityMode = "root-only"
	CapSet      CapabilityMode = "set"
)

// Capability is a nesting rule on one side of a parent/child edge.
type Capability struct {
	Mode  CapabilityMode     `json:"mode"`
	Types []domain.BlockType `json:"types,omitempty"`
}

func AnyType() Capability  { return Capability{Mode: CapAny} }
func NoTypes() Capability  { return Capability{Mode: CapNone} }
func RootOnly() Capability { return Capability{Mode: CapRootOnly} }

func OneOf(types ...domain.BlockType) Capability {
	return Capability{Mode: CapSet, Types: types}
}

func (c Capability) allows(t domain.BlockType) bool {
	switch c.Mode {
	case CapAny:
		return true
	case CapSet:
		return slices.Contains(c.Types, t)
	default:
		return false
	}
}

// Definition is the capability metadata of one block type.
type Definition struct {
	Type        domain.BlockType `json:"type"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Icon        string           `json:"icon"`
	Parents     Capability       `json:"allowedParentTypes"`
	Children    Capability       `json:"allowedChildTypes"`
	Schema      Schema           `json:"propsSchema"`
}

// AcceptsChildren reports whether the type may contain anything at all.
func (d Definition) AcceptsChildren() bool {
	return d.Children.Mode != CapNone
}

// Registry is read-only once built.
type Registry struct {
	defs  map[domain.BlockType]Definition
	order []domain.BlockType
}

// New builds a registry, rejecting duplicate types and capability rules
// that name unknown types.
func New(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[domain.BlockType]Definition, len(defs))}
	for _, d := range defs {
		if d.Type == "" {
			return nil, fmt.Errorf("registry: definition without type")
		}
		if _, exists := r.defs[d.Type]; exists {
			return nil, fmt.Errorf("registry: duplicate registration for block type %q", d.Type)
		}
		if d.Schema == nil {
			d.Schema = Schema{}
		}
		r.defs[d.Type] = d
		r.order = append(r.order, d.Type)
	}
	for _, d := range r.defs {
		for _, c := range []Capability{d.Parents, d.Children} {
			for _, t := range c.Types {
				if _, ok := r.defs[t]; !ok {
					return nil, fmt.Errorf("registry: %q references unknown block type %q", d.Type, t)
				}
			}
		}
		if err := d.Schema.Validate(d.Schema.Defaults()); err != nil {
			return nil, fmt.Errorf("registry: %q defaults: %w", d.Type, err)
		}
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return r, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := New(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
})

// Default returns the process-wide builtin catalog.
func Default() *Registry {
	return defaultRegistry()
}

// Get returns the definition of t.
func (r *Registry) Get(t domain.BlockType) (Definition, error) {
	d, ok := r.defs[t]
	if !ok {
		return Definition{}, fmt.Errorf("block type %q: %w", t, domain.ErrNotFound)
	}
	return d, nil
}

// CanNest reports whether child may be placed directly inside parent. Both
// sides of the edge must agree.
func (r *Registry) CanNest(parent, child domain.BlockType) bool {
	p, ok := r.defs[parent]
	if !ok {
		return false
	}
	c, ok := r.defs[child]
	if !ok {
		return false
	}
	return p.Children.allows(child) && c.Parents.allows(parent)
}

// CanPlace is CanNest extended to the page root: an empty parent means the
// root sequence, which accepts types whose parents rule is any or root-only.
func (r *Registry) CanPlace(parent, child domain.BlockType) bool {
	if parent == "" {
		c, ok := r.defs[child]
		if !ok {
			return false
		}
		return c.Parents.Mode == CapAny || c.Parents.Mode == CapRootOnly
	}
	return r.CanNest(parent, child)
}

// ListByCategory yields the definitions of a category in type order. The
// sequence can be ranged over any number of times.
func (r *Registry) ListByCategory(category string) iter.Seq[Definition] {
	return func(yield func(Definition) bool) {
		for _, t := range r.order {
			d := r.defs[t]
			if d.Category != category {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// All yields every definition in type order.
func (r *Registry) All() iter.Seq[Definition] {
	return func(yield func(Definition) bool) {
		for _, t := range r.order {
			if !yield(r.defs[t]) {
				return
			}
		}
	}
}

// Categories returns the distinct categories, sorted.
func (r *Registry) Categories() []string {
	var cats []string
	for _, t := range r.order {
		c := r.defs[t].Category
		if !slices.Contains(cats, c) {
			cats = append(cats, c)
		}
	}
	sort.Strings(cats)
	return cats
}

// Types returns every registered type, sorted.
func (r *Registry) Types() []domain.BlockType {
	return slices.Clone(r.order)
}
