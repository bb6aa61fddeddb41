package registry_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagecraft/internal/domain"
	"pagecraft/internal/registry"
)

func heroSchema(t *testing.T) registry.Schema {
	t.Helper()
	d, err := registry.Default().Get(registry.TypeHero)
	require.NoError(t, err)
	return d.Schema
}

func TestValidate_AcceptsValidPatch(t *testing.T) {
	err := heroSchema(t).Validate(domain.Props{
		"title":      "Hello",
		"align":      "left",
		"background": "#abc",
		"imageUrl":   "https://example.com/a.png",
	})
	assert.NoError(t, err)
}

func TestValidate_ReportsEveryField(t *testing.T) {
	err := heroSchema(t).Validate(domain.Props{
		"title":      42,
		"align":      "diagonal",
		"background": "red",
		"imageUrl":   "ftp://example.com",
		"bogus":      true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	var fields []string
	for _, f := range ve.Fields {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"align", "background", "bogus", "imageUrl", "title"}, fields)
}

func TestValidate_NilResetsUnlessRequiredWithoutDefault(t *testing.T) {
	s := registry.Schema{
		"a": {Kind: registry.KindString, Default: "x", Required: true},
		"b": {Kind: registry.KindString, Required: true},
		"c": {Kind: registry.KindString},
	}
	err := s.Validate(domain.Props{"a": nil, "c": nil})
	assert.NoError(t, err)

	err = s.Validate(domain.Props{"b": nil})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "required", ve.Fields[0].Reason)
}

func TestValidate_Numbers(t *testing.T) {
	d, err := registry.Default().Get(registry.TypeFeatures)
	require.NoError(t, err)

	assert.NoError(t, d.Schema.Validate(domain.Props{"columns": 4}))
	assert.NoError(t, d.Schema.Validate(domain.Props{"columns": 4.0}))
	assert.Error(t, d.Schema.Validate(domain.Props{"columns": 2.5}))
	assert.Error(t, d.Schema.Validate(domain.Props{"columns": 0}))
	assert.Error(t, d.Schema.Validate(domain.Props{"columns": 7}))
	assert.Error(t, d.Schema.Validate(domain.Props{"columns": "3"}))
}

func TestValidate_ListItems(t *testing.T) {
	d, err := registry.Default().Get(registry.TypePricingTier)
	require.NoError(t, err)

	assert.NoError(t, d.Schema.Validate(domain.Props{"features": []any{"SSO", "Audit log"}}))
	assert.Error(t, d.Schema.Validate(domain.Props{"features": []any{"SSO", 3.0}}))
	assert.Error(t, d.Schema.Validate(domain.Props{"features": "SSO"}))
}

func TestValidateFull_RequiresMissingFields(t *testing.T) {
	err := heroSchema(t).ValidateFull(domain.Props{"align": "left"})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "title", ve.Fields[0].Field)
}

func TestDefaults_AreIndependentCopies(t *testing.T) {
	d, err := registry.Default().Get(registry.TypeNavbar)
	require.NoError(t, err)

	a := d.Schema.Defaults()
	a["links"].([]any)[0] = "changed"
	b := d.Schema.Defaults()
	assert.Equal(t, "Features", b["links"].([]any)[0])
}
