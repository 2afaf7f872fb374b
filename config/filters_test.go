package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFilters(t *testing.T) {
	f, err := DefaultFilters()
	require.NoError(t, err)

	names := make(map[string]CategoryEntry)
	for _, c := range f.Categories {
		names[c.Name] = c
	}
	require.Contains(t, names, "gba sp")
	assert.Equal(t, 80.0, names["gba sp"].Ceiling)
	assert.Equal(t, "gameboy", names["gba sp"].Family)
	assert.Contains(t, names["gba sp"].Aliases, "game boy advance sp")

	assert.Equal(t, 5.0, f.Exclusion.PriceFloor)
	assert.Equal(t, 2, f.Description.MinPhraseCount)
	assert.NotEmpty(t, f.Exclusion.Patterns)
	assert.NotEmpty(t, f.Vision.SpecificConsoleLabels)
}

func TestLoadFiltersFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	doc := `
categories:
  - name: psp
    family: handheld
    ceiling: 70
    min_price: 20
    aliases: [psp, playstation portable]
exclusion:
  price_floor: 3
  keyword_groups:
    - name: general
      keywords: [umd only]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	f, err := LoadFilters(path)
	require.NoError(t, err)
	require.Len(t, f.Categories, 1)
	assert.Equal(t, "psp", f.Categories[0].Name)
	assert.Equal(t, 3.0, f.Exclusion.PriceFloor)
	assert.Equal(t, 2, f.Description.MinPhraseCount)
}

func TestParseFiltersRejectsBadTables(t *testing.T) {
	_, err := ParseFilters([]byte("categories: []"))
	assert.Error(t, err)

	_, err = ParseFilters([]byte(`
categories:
  - name: gba
    ceiling: 40
    min_price: 50
    aliases: [gba]
`))
	assert.Error(t, err)

	_, err = ParseFilters([]byte(`
categories:
  - name: gba
    ceiling: 40
    aliases: []
`))
	assert.Error(t, err)

	_, err = LoadFilters(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSettingsRoundTripAndClone(t *testing.T) {
	cfg := LoadConfig()
	defaults := DefaultSettings(cfg)
	assert.True(t, defaults.PlatformEnabled("craigslist"))
	assert.True(t, defaults.PlatformEnabled("unknown"))

	path := filepath.Join(t.TempDir(), "settings.json")
	loaded, err := LoadSettings(path, defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, loaded)

	loaded.Platforms["mercari"] = false
	loaded.Thresholds["gba sp"] = 70
	require.NoError(t, SaveSettings(path, loaded))

	reloaded, err := LoadSettings(path, defaults)
	require.NoError(t, err)
	assert.False(t, reloaded.PlatformEnabled("mercari"))
	assert.Equal(t, 70.0, reloaded.Thresholds["gba sp"])

	clone := reloaded.Clone()
	clone.Thresholds["gba sp"] = 10
	assert.Equal(t, 70.0, reloaded.Thresholds["gba sp"])
}
