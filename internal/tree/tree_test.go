package tree_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagecraft/internal/domain"
	"pagecraft/internal/registry"
	"pagecraft/internal/tree"
)

func newModel() *tree.Model {
	return tree.NewModel(registry.Default(), tree.NewSequence("b"))
}

func mustInsert(t *testing.T, m *tree.Model, c domain.Composition, bt domain.BlockType, parent string, i int) (domain.Composition, string) {
	t.Helper()
	next, b, err := m.Insert(c, bt, parent, i)
	require.NoError(t, err)
	require.NoError(t, tree.Check(m.Registry(), next))
	return next, b.ID
}

// landing builds: hero(A){button} features(B){feature, feature} pricing
func landing(t *testing.T, m *tree.Model) (domain.Composition, map[string]string) {
	t.Helper()
	ids := map[string]string{}
	c := domain.NewComposition("page-1")
	c, ids["hero"] = mustInsert(t, m, c, registry.TypeHero, "", 0)
	c, ids["button"] = mustInsert(t, m, c, registry.TypeButton, ids["hero"], 0)
	c, ids["features"] = mustInsert(t, m, c, registry.TypeFeatures, "", 1)
	c, ids["f1"] = mustInsert(t, m, c, registry.TypeFeature, ids["features"], 0)
	c, ids["f2"] = mustInsert(t, m, c, registry.TypeFeature, ids["features"], 1)
	c, ids["pricing"] = mustInsert(t, m, c, registry.TypePricing, "", 2)
	return c, ids
}

func TestScenario_InsertMoveDelete(t *testing.T) {
	m := newModel()
	c := domain.NewComposition("page-1")
	c, a := mustInsert(t, m, c, registry.TypeHero, "", 0)

	c, b := mustInsert(t, m, c, registry.TypeFeatures, "", 1)
	assert.Equal(t, []string{a, b}, c.RootOrder)

	c, err := m.Move(c, b, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{b, a}, c.RootOrder)

	sel := &domain.Selection{SelectedID: a}
	c, removed, err := m.Delete(c, a, sel)
	require.NoError(t, err)
	assert.Equal(t, []string{a}, removed)
	assert.Equal(t, []string{b}, c.RootOrder)
	assert.Empty(t, sel.SelectedID)
	require.NoError(t, tree.Check(m.Registry(), c))
}

func TestInsert_RootOnlyIntoContainer(t *testing.T) {
	m := newModel()
	c, ids := landing(t, m)
	before := c.Clone()

	got, _, err := m.Insert(c, registry.TypeHero, ids["features"], 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidNesting))
	assert.Empty(t, cmp.Diff(before, got))
	assert.Empty(t, cmp.Diff(before, c))
}

func TestInsert_Errors(t *testing.T) {
	m := newModel()
	c, ids := landing(t, m)

	_, _, err := m.Insert(c, registry.TypeFeature, ids["features"], 3)
	assert.True(t, errors.Is(err, domain.ErrIndexOutOfRange))

	_, _, err = m.Insert(c, registry.TypeFeature, ids["features"], -1)
	assert.True(t, errors.Is(err, domain.ErrIndexOutOfRange))

	_, _, err = m.Insert(c, registry.TypeFeature, "missing", 0)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, _, err = m.Insert(c, "carousel", "", 0)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, _, err = m.Insert(c, registry.TypeFeature, "", 0)
	assert.True(t, errors.Is(err, domain.ErrInvalidNesting))
}

func TestInsert_ShiftsSiblingsAndUsesDefaults(t *testing.T) {
	m := newModel()
	c, ids := landing(t, m)

	c, f0 := mustInsert(t, m, c, registry.TypeFeature, ids["features"], 0)
	assert.Equal(t, []string{f0, ids["f1"], ids["f2"]}, c.Blocks[ids["features"]].Children)
	assert.Equal(t, "Feature", c.Blocks[f0].Props["title"])
	assert.Equal(t, ids["features"], c.Blocks[f0].ParentID)
}

func TestMove_RoundTripRestoresComposition(t *testing.T) {
	m := newModel()
	c, ids := landing(t, m)
	orig, ok := c.IndexOf(ids["f1"])
	require.True(t, ok)

	moved, err := m.Move(c, ids["f1"], ids["features"], 1)
	require.NoError(t, err)
	assert.Equal(t, []string{ids["f2"], ids["f1"]}, moved.Blocks[ids["features"]].Children)

	back, err := m.Move(moved, ids["f1"], orig.ParentID, orig.Index)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(c, back))
}

func TestMove_AcrossContainersRoundTrip(t *testing.T) {
	m := newModel()
	c, ids := landing(t, m)
	c, cols := mustInsert(t, m, c, registry.TypeColumns, "", 3)
	c, col := mustInsert(t, m, c, registry.TypeColumn, cols, 0)

	moved, err := m.Move(c, ids["button"], col, 0)
	require.NoError(t, err)
	require.NoError(t, tree.Check(m.Registry(), moved))
	assert.Equal(t, col, moved.Blocks[ids["button"]].ParentID)
	assert.Empty(t, moved.Blocks[ids["hero"]].Children)

	back, err := m.Move(moved, ids["button"], ids["hero"], 0)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(c, back))
}

func TestMove_Errors(t *testing.T) {
	m := newModel()
	c, ids := landing(t, m)
	c, cols := mustInsert(t, m, c, registry.TypeColumns, "", 3)
	c, col := mustInsert(t, m, c, registry.TypeColumn, cols, 0)
	c, inner := mustInsert(t, m, c, registry.TypeColumns, col, 0)
	c, innerCol := mustInsert(t, m, c, registry.TypeColumn, inner, 0)

	_, err := m.Move(c, cols, innerCol, 0)
	assert.True(t, errors.Is(err, domain.ErrCyclicMove))

	_, err = m.Move(c, cols, cols, 0)
	assert.True(t, errors.Is(err, domain.ErrCyclicMove))

	_, err = m.Move(c, ids["f1"], ids["pricing"], 0)
	assert.True(t, errors.Is(err, domain.ErrInvalidNesting))

	_, err = m.Move(c, ids["f1"], ids["features"], 2)
	assert.True(t, errors.Is(err, domain.ErrIndexOutOfRange))

	_, err = m.Move(c, "missing", "", 0)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDuplicate_FreshIDsAndIndependence(t *testing.T) {
	m := newModel()
	c, ids := landing(t, m)

	dup, cp, err := m.Duplicate(c, ids["features"])
	require.NoError(t, err)
	require.NoError(t, tree.Check(m.Registry(), dup))
	assert.Equal(t, []string{ids["hero"], ids["features"], cp.ID, ids["pricing"]}, dup.RootOrder)

	src := dup.Blocks[ids["features"]]
	require.Len(t, cp.Children, len(src.Children))
	for i := range cp.Children {
		assert.NotEqual(t, src.Children[i], cp.Children[i])
		assert.Equal(t, dup.Blocks[src.Children[i]].Props, dup.Blocks[cp.Children[i]].Props)
		assert.Equal(t, cp.ID, dup.Blocks[cp.Children[i]].ParentID)
	}

	// Editing the clone leaves the original alone.
	dup, _, err = m.SetProps(dup, cp.Children[0], domain.Props{"title": "Changed"})
	require.NoError(t, err)
	assert.Equal(t, "Feature", dup.Blocks[ids["f1"]].Props["title"])

	afterDelete, _, err := m.Delete(dup, cp.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(c, afterDelete))
}

func TestDelete_RemovesSubtreeAndClearsSelection(t *testing.T) {
	m := newModel()
	c, ids := landing(t, m)
	sel := &domain.Selection{SelectedID: ids["f2"]}

	next, removed, err := m.Delete(c, ids["features"], sel)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ids["features"], ids["f1"], ids["f2"]}, removed)
	assert.Empty(t, sel.SelectedID)
	for _, id := range removed {
		assert.NotContains(t, next.Blocks, id)
	}
	require.NoError(t, tree.Check(m.Registry(), next))

	_, _, err = m.Delete(next, ids["features"], sel)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDelete_KeepsUnrelatedSelection(t *testing.T) {
	m := newModel()
	c, ids := landing(t, m)
	sel := &domain.Selection{SelectedID: ids["hero"]}

	_, _, err := m.Delete(c, ids["pricing"], sel)
	require.NoError(t, err)
	assert.Equal(t, ids["hero"], sel.SelectedID)
}

func TestSetProps_AllOrNothing(t *testing.T) {
	m := newModel()
	c, ids := landing(t, m)
	before := c.Clone()

	got, _, err := m.SetProps(c, ids["hero"], domain.Props{
		"title": "Valid title",
		"align": "sideways",
	})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "align", ve.Fields[0].Field)
	assert.Empty(t, cmp.Diff(before, got))
	assert.Equal(t, "Build something great", c.Blocks[ids["hero"]].Props["title"])
	assert.Equal(t, "center", c.Blocks[ids["hero"]].Props["align"])
}

func TestSetProps_ReturnsPreviousAndResetsNil(t *testing.T) {
	m := newModel()
	c, ids := landing(t, m)

	next, prev, err := m.SetProps(c, ids["hero"], domain.Props{"title": "X", "subtitle": "Y"})
	require.NoError(t, err)
	assert.Equal(t, domain.Props{"title": "Build something great", "subtitle": ""}, prev)
	assert.Equal(t, "X", next.Blocks[ids["hero"]].Props["title"])
	assert.Equal(t, "Build something great", c.Blocks[ids["hero"]].Props["title"])

	reset, _, err := m.SetProps(next, ids["hero"], domain.Props{"title": nil})
	require.NoError(t, err)
	assert.Equal(t, "Build something great", reset.Blocks[ids["hero"]].Props["title"])

	restored, _, err := m.SetProps(next, ids["hero"], prev)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(c, restored))
}

func TestReplaceProps(t *testing.T) {
	m := newModel()
	c, ids := landing(t, m)
	props := c.Blocks[ids["hero"]].Props.Clone()
	props["title"] = "Replaced"

	next, prev, err := m.ReplaceProps(c, ids["hero"], props)
	require.NoError(t, err)
	assert.Equal(t, "Replaced", next.Blocks[ids["hero"]].Props["title"])
	assert.Equal(t, c.Blocks[ids["hero"]].Props, prev)

	delete(props, "title")
	_, _, err = m.ReplaceProps(c, ids["hero"], props)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

// TestRandomOperations_PreserveInvariants drives a seeded random sequence of
// insert/move/duplicate/delete and checks the invariants after each step.
func TestRandomOperations_PreserveInvariants(t *testing.T) {
	m := newModel()
	rng := rand.New(rand.NewSource(7))
	types := m.Registry().Types()
	c := domain.NewComposition("page-1")

	randomID := func() string {
		if len(c.Blocks) == 0 {
			return ""
		}
		ids := make([]string, 0, len(c.Blocks))
		c.Walk(func(b *domain.Block, _ int) { ids = append(ids, b.ID) })
		return ids[rng.Intn(len(ids))]
	}
	randomParent := func() string {
		if rng.Intn(3) == 0 {
			return ""
		}
		return randomID()
	}

	applied := 0
	for step := 0; step < 2000; step++ {
		var next domain.Composition
		var err error
		switch rng.Intn(4) {
		case 0, 1:
			parent := randomParent()
			siblings, _ := c.Container(parent)
			next, _, err = m.Insert(c, types[rng.Intn(len(types))], parent, rng.Intn(len(siblings)+1))
		case 2:
			parent := randomParent()
			siblings, _ := c.Container(parent)
			next, err = m.Move(c, randomID(), parent, rng.Intn(len(siblings)+1))
		case 3:
			if rng.Intn(2) == 0 {
				next, _, err = m.Duplicate(c, randomID())
			} else {
				next, _, err = m.Delete(c, randomID(), nil)
			}
		}
		if err != nil {
			kind := domain.Kind(err)
			require.NotEqual(t, "Internal", kind, "step %d: %v", step, err)
			require.Empty(t, cmp.Diff(c, next), "failed operation changed the composition")
			continue
		}
		require.NoError(t, tree.Check(m.Registry(), next), "step %d", step)
		c = next
		applied++
	}
	assert.Greater(t, applied, 100)
}
