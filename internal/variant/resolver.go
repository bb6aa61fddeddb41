// Package variant offers pre-authored content presets per block type and
// swaps them onto existing blocks.
package variant

import (
	"errors"
	"fmt"

	"pagecraft/internal/domain"
	"pagecraft/internal/registry"
	"pagecraft/internal/tree"
)

// Variant is an alternate content preset for one block type.
type Variant struct {
	ID          string           `json:"id"`
	BlockType   domain.BlockType `json:"blockType"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Preset      domain.Props     `json:"preset"`
}

type Resolver struct {
	model  *tree.Model
	byType map[domain.BlockType][]Variant
}

// NewResolver validates every preset against its block type's schema.
func NewResolver(model *tree.Model, variants ...Variant) (*Resolver, error) {
	r := &Resolver{model: model, byType: make(map[domain.BlockType][]Variant)}
	seen := make(map[string]bool)
	var errs []error
	for _, v := range variants {
		def, err := model.Registry().Get(v.BlockType)
		if err != nil {
			errs = append(errs, fmt.Errorf("variant %s: %w", v.ID, err))
			continue
		}
		key := string(v.BlockType) + "/" + v.ID
		if seen[key] {
			errs = append(errs, fmt.Errorf("variant %s: duplicate registration for %s", v.ID, v.BlockType))
			continue
		}
		seen[key] = true
		if len(v.Preset) == 0 {
			errs = append(errs, fmt.Errorf("variant %s: empty preset", v.ID))
			continue
		}
		if err := def.Schema.Validate(v.Preset); err != nil {
			errs = append(errs, fmt.Errorf("variant %s: %w", v.ID, err))
			continue
		}
		v.Preset = v.Preset.Clone()
		r.byType[v.BlockType] = append(r.byType[v.BlockType], v)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// VariantsFor lists the variants of t in registration order.
func (r *Resolver) VariantsFor(t domain.BlockType) []Variant {
	vs := r.byType[t]
	out := make([]Variant, len(vs))
	for i, v := range vs {
		v.Tags = append([]string(nil), v.Tags...)
		v.Preset = v.Preset.Clone()
		out[i] = v
	}
	return out
}

func (r *Resolver) lookup(t domain.BlockType, variantID string) (Variant, bool) {
	for _, v := range r.byType[t] {
		if v.ID == variantID {
			return v, true
		}
	}
	return Variant{}, false
}

// Apply overwrites the preset's fields on block id. Fields the preset does
// not name keep their values; id, type, children and position never change.
// The previous values of the overwritten fields are returned so the caller
// can undo the switch.
func (r *Resolver) Apply(c domain.Composition, id, variantID string) (domain.Composition, domain.Props, error) {
	b, ok := c.Blocks[id]
	if !ok {
		return c, nil, fmt.Errorf("apply variant %s: %w", variantID, domain.ErrNotFound)
	}
	v, ok := r.lookup(b.Type, variantID)
	if !ok {
		return c, nil, fmt.Errorf("apply variant %s to %s: %w", variantID, b.Type, domain.ErrUnknownVariant)
	}
	next, prev, err := r.model.SetProps(c, id, v.Preset)
	if err != nil {
		return c, nil, fmt.Errorf("apply variant %s: %w", variantID, err)
	}
	return next, prev, nil
}

// Default builds a resolver over the builtin catalog.
func Default(model *tree.Model) (*Resolver, error) {
	return NewResolver(model, Builtin()...)
}

// Builtin returns the stock variants for the landing-page sections.
func Builtin() []Variant {
	return []Variant{
		{
			ID: "hero-centered", BlockType: registry.TypeHero, Name: "Centered",
			Description: "Centered headline on a light background",
			Tags:        []string{"minimal", "light"},
			Preset: domain.Props{
				"title":      "Build something great",
				"subtitle":   "Everything you need to launch, in one place.",
				"align":      "center",
				"background": "#ffffff",
			},
		},
		{
			ID: "hero-split", BlockType: registry.TypeHero, Name: "Split with image",
			Description: "Left-aligned copy next to a product shot",
			Tags:        []string{"image"},
			Preset: domain.Props{
				"title":      "Your product, front and center",
				"subtitle":   "Show people what they get before they scroll.",
				"align":      "left",
				"background": "#f8fafc",
				"imageUrl":   "/images/hero-product.png",
			},
		},
		{
			ID: "hero-dark", BlockType: registry.TypeHero, Name: "Dark",
			Description: "High-contrast headline",
			Tags:        []string{"dark", "bold"},
			Preset: domain.Props{
				"title":      "Ship faster",
				"subtitle":   "Built for teams that move quickly.",
				"align":      "center",
				"background": "#0f172a",
			},
		},
		{
			ID: "features-grid", BlockType: registry.TypeFeatures, Name: "Three column grid",
			Tags:   []string{"grid"},
			Preset: domain.Props{"title": "Features", "subtitle": "", "columns": 3.0},
		},
		{
			ID: "features-list", BlockType: registry.TypeFeatures, Name: "Single column list",
			Tags:   []string{"list"},
			Preset: domain.Props{"title": "Why teams choose us", "subtitle": "A closer look at what is included.", "columns": 1.0},
		},
		{
			ID: "pricing-simple", BlockType: registry.TypePricing, Name: "Simple",
			Preset: domain.Props{"title": "Pricing", "subtitle": "Simple plans for everyone.", "currency": "USD"},
		},
		{
			ID: "pricing-euro", BlockType: registry.TypePricing, Name: "Euro",
			Tags:   []string{"eu"},
			Preset: domain.Props{"title": "Plans", "subtitle": "Prices include VAT.", "currency": "EUR"},
		},
		{
			ID: "cta-dark", BlockType: registry.TypeCTA, Name: "Dark banner",
			Tags:   []string{"dark"},
			Preset: domain.Props{"title": "Ready to start?", "description": "Create your first page in minutes.", "background": "#111827"},
		},
		{
			ID: "cta-brand", BlockType: registry.TypeCTA, Name: "Brand banner",
			Tags:   []string{"color"},
			Preset: domain.Props{"title": "Join thousands of teams", "description": "", "background": "#4f46e5"},
		},
		{
			ID: "testimonials-default", BlockType: registry.TypeTestimonials, Name: "Default",
			Preset: domain.Props{"title": "What customers say"},
		},
		{
			ID: "testimonials-love", BlockType: registry.TypeTestimonials, Name: "Wall of love",
			Tags:   []string{"playful"},
			Preset: domain.Props{"title": "Loved by builders"},
		},
		{
			ID: "faq-default", BlockType: registry.TypeFAQ, Name: "Default",
			Preset: domain.Props{"title": "Frequently asked questions"},
		},
		{
			ID: "faq-support", BlockType: registry.TypeFAQ, Name: "Support",
			Preset: domain.Props{"title": "Still have questions?"},
		},
	}
}
