package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"astra/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonaCatalog_Embedded(t *testing.T) {
	c, err := LoadPersonaCatalog("")
	require.NoError(t, err)

	ids := make([]string, 0)
	for _, d := range c.Descriptors() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"general", "love", "marriage", "career", "health", "family", "finance", "spirituality"}, ids)

	p, err := c.Get(" Marriage ")
	require.NoError(t, err)
	assert.Equal(t, "Pandit Ravi Sharma", p.Name)
	assert.Equal(t, "25", p.Experience)
	assert.Equal(t, 52, p.Age)

	_, err = c.Get("astrologer-x")
	assert.True(t, errors.Is(err, errs.ErrUnknownCharacter))
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestPersonaCatalog_FileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
personas:
  - id: Tarot
    name: Tara
    specialty: Tarot
`), 0o600))

	c, err := LoadPersonaCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.List(), 1)

	p, err := c.Get("tarot")
	require.NoError(t, err)
	assert.Equal(t, "✨", p.Emoji)

	_, err = c.Get("general")
	assert.Error(t, err)
}

func TestPersonaCatalog_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":     "personas: []",
		"duplicate": "personas:\n  - {id: a, name: A}\n  - {id: A, name: B}",
		"no name":   "personas:\n  - {id: a}",
		"bad yaml":  "personas: [",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parsePersonas([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestRemedyCatalog(t *testing.T) {
	c, err := LoadRemedyCatalog()
	require.NoError(t, err)
	assert.Len(t, c.Planets(), 9)
	assert.Len(t, c.Doshas(), 4)

	r, err := c.Planet("Shani")
	require.NoError(t, err)
	assert.Equal(t, "saturn", r.Planet)
	assert.Equal(t, 23000, r.Mantra.Count)

	r, err = c.Planet("brihaspati")
	require.NoError(t, err)
	assert.Equal(t, "jupiter", r.Planet)

	_, err = c.Planet("pluto")
	assert.True(t, errors.Is(err, errs.ErrPlanetNotFound))

	for _, name := range []string{"mangal", "Mangal Dosha", "mangal_dosha", "sade sati", "kalsarp"} {
		d, err := c.Dosha(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, d.Remedies)
	}
	_, err = c.Dosha("grahan")
	assert.True(t, errors.Is(err, errs.ErrDoshaNotFound))

	ctx := c.RemedyContext("saturn", "nowhere", "venus")
	assert.Contains(t, ctx, "Saturn (Shani) remedies")
	assert.Contains(t, ctx, "Venus (Shukra) remedies")
	assert.NotContains(t, ctx, "nowhere")
}
