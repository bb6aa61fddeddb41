package selection_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagecraft/internal/domain"
	"pagecraft/internal/registry"
	"pagecraft/internal/selection"
	"pagecraft/internal/tree"
)

func setup(t *testing.T) (*tree.Model, domain.Composition, string) {
	t.Helper()
	m := tree.NewModel(registry.Default(), tree.NewSequence("b"))
	c, hero, err := m.Insert(domain.NewComposition("p"), registry.TypeHero, "", 0)
	require.NoError(t, err)
	return m, c, hero.ID
}

func TestSelected_StaleSelectionIsCleared(t *testing.T) {
	m, c, hero := setup(t)
	e := selection.NewEditor(m)

	e.Select(hero)
	id, ok := e.Selected(c)
	assert.True(t, ok)
	assert.Equal(t, hero, id)

	e.Select("gone")
	_, ok = e.Selected(c)
	assert.False(t, ok)
	assert.Empty(t, e.Selection().SelectedID)
}

func TestSelected_DeleteClearsSelection(t *testing.T) {
	m, c, hero := setup(t)
	e := selection.NewEditor(m)
	e.Select(hero)

	next, _, err := m.Delete(c, hero, e.Selection())
	require.NoError(t, err)
	_, ok := e.Selected(next)
	assert.False(t, ok)
}

func TestReadProps_IsACopy(t *testing.T) {
	m, c, hero := setup(t)
	e := selection.NewEditor(m)

	props, err := e.ReadProps(c, hero)
	require.NoError(t, err)
	props["title"] = "mutated"
	assert.Equal(t, "Build something great", c.Blocks[hero].Props["title"])

	_, err = e.ReadProps(c, "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestWriteProps_ValidationErrorListsEveryField(t *testing.T) {
	m, c, hero := setup(t)
	e := selection.NewEditor(m)

	next, _, err := e.WriteProps(c, hero, domain.Props{
		"title":      "",
		"align":      "diagonal",
		"background": "red",
	})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Fields, 3)
	assert.Equal(t, []string{"align", "background", "title"},
		[]string{ve.Fields[0].Field, ve.Fields[1].Field, ve.Fields[2].Field})
	assert.Equal(t, c.Blocks[hero].Props, next.Blocks[hero].Props)

	next, prev, err := e.WriteProps(c, hero, domain.Props{"title": "Ship faster"})
	require.NoError(t, err)
	assert.Equal(t, "Ship faster", next.Blocks[hero].Props["title"])
	assert.Equal(t, domain.Props{"title": "Build something great"}, prev)
}

func TestFields_DescribesSchema(t *testing.T) {
	m, c, hero := setup(t)
	e := selection.NewEditor(m)

	views, err := e.Fields(c, hero)
	require.NoError(t, err)
	names := make([]string, len(views))
	for i, v := range views {
		names[i] = v.Name
	}
	assert.Equal(t, []string{"align", "background", "imageUrl", "subtitle", "title"}, names)

	title := views[4]
	assert.Equal(t, registry.KindString, title.Kind)
	assert.True(t, title.Required)
	assert.True(t, title.Set)
	assert.Equal(t, 120, title.MaxLen)

	image := views[2]
	assert.False(t, image.Set)
	assert.Nil(t, image.Value)

	align := views[0]
	assert.Equal(t, []string{"left", "center", "right"}, align.Enum)
}
