package variant_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagecraft/internal/domain"
	"pagecraft/internal/registry"
	"pagecraft/internal/tree"
	"pagecraft/internal/variant"
)

func setup(t *testing.T) (*tree.Model, *variant.Resolver) {
	t.Helper()
	m := tree.NewModel(registry.Default(), tree.NewSequence("b"))
	r, err := variant.Default(m)
	require.NoError(t, err)
	return m, r
}

func TestBuiltinVariantsAreValid(t *testing.T) {
	_, r := setup(t)
	for _, bt := range []domain.BlockType{
		registry.TypeHero, registry.TypeFeatures, registry.TypePricing,
		registry.TypeCTA, registry.TypeTestimonials, registry.TypeFAQ,
	} {
		assert.NotEmpty(t, r.VariantsFor(bt), bt)
	}
	assert.Empty(t, r.VariantsFor(registry.TypeButton))
}

func TestVariantsFor_Ordered(t *testing.T) {
	_, r := setup(t)
	var ids []string
	for _, v := range r.VariantsFor(registry.TypeHero) {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"hero-centered", "hero-split", "hero-dark"}, ids)
}

func TestApply_PreservesIdentityAndReturnsPrevious(t *testing.T) {
	m, r := setup(t)
	c, hero, err := m.Insert(domain.NewComposition("p"), registry.TypeHero, "", 0)
	require.NoError(t, err)
	c, btn, err := m.Insert(c, registry.TypeButton, hero.ID, 0)
	require.NoError(t, err)
	c, _, err = m.SetProps(c, hero.ID, domain.Props{"subtitle": "mine"})
	require.NoError(t, err)

	next, prev, err := r.Apply(c, hero.ID, "hero-dark")
	require.NoError(t, err)

	got := next.Blocks[hero.ID]
	assert.Equal(t, hero.ID, got.ID)
	assert.Equal(t, registry.TypeHero, got.Type)
	assert.Equal(t, []string{btn.ID}, got.Children)
	assert.Equal(t, []string{hero.ID}, next.RootOrder)
	assert.Equal(t, "Ship faster", got.Props["title"])
	assert.Equal(t, "#0f172a", got.Props["background"])
	assert.Equal(t, "mine", prev["subtitle"])

	// Reapplying the previous content restores the original props.
	back, _, err := m.SetProps(next, hero.ID, prev)
	require.NoError(t, err)
	assert.Equal(t, c.Blocks[hero.ID].Props, back.Blocks[hero.ID].Props)
}

func TestApply_UnknownVariant(t *testing.T) {
	m, r := setup(t)
	c, feat, err := m.Insert(domain.NewComposition("p"), registry.TypeFeatures, "", 0)
	require.NoError(t, err)

	next, _, err := r.Apply(c, feat.ID, "hero-dark")
	assert.True(t, errors.Is(err, domain.ErrUnknownVariant))
	assert.Equal(t, "UnknownVariant", domain.Kind(err))
	assert.Equal(t, c.Blocks[feat.ID].Props, next.Blocks[feat.ID].Props)

	_, _, err = r.Apply(c, "missing", "hero-dark")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestNewResolver_RejectsBadPresets(t *testing.T) {
	m := tree.NewModel(registry.Default(), nil)
	_, err := variant.NewResolver(m,
		variant.Variant{ID: "x", BlockType: "nope", Preset: domain.Props{"a": 1}},
		variant.Variant{ID: "y", BlockType: registry.TypeHero, Preset: domain.Props{"align": "diagonal"}},
		variant.Variant{ID: "z", BlockType: registry.TypeHero},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variant x")
	assert.Contains(t, err.Error(), "variant y")
	assert.Contains(t, err.Error(), "empty preset")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
