package classify

import (
	"testing"

	"sjsage522/consoledealworker/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLongestAliasWins(t *testing.T) {
	r := NewResolver(testFilters(t).Categories, nil)

	tests := []struct {
		title    string
		category string
	}{
		{"game boy advance sp", "gba sp"},
		{"Nintendo Game Boy Advance SP Console", "gba sp"},
		{"GBA SP AGS-101", "gba sp"},
		{"Game Boy Advance purple", "gba"},
		{"original gameboy DMG", "game boy"},
		{"Game Boy Color teal", "game boy color"},
		{"New 3DS XL red", "3ds xl"},
		{"Nintendo 2DS XL", "2ds xl"},
		{"Super Nintendo SNES", "snes"},
		{"NES console", "nes"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			c, ok := r.Resolve(tt.title)
			require.True(t, ok)
			assert.Equal(t, tt.category, c.Name)
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	r := NewResolver(testFilters(t).Categories, nil)
	_, ok := r.Resolve("Lot of 5 DS games")
	assert.False(t, ok)
	_, ok = r.Resolve("PlayStation 2 slim")
	assert.False(t, ok)
}

func TestResolveTieUsesTableOrder(t *testing.T) {
	entries := []config.CategoryEntry{
		{Name: "first", Ceiling: 10, Aliases: []string{"abc"}},
		{Name: "second", Ceiling: 20, Aliases: []string{"xyz"}},
	}
	r := NewResolver(entries, nil)
	c, ok := r.Resolve("xyz and abc")
	require.True(t, ok)
	assert.Equal(t, "first", c.Name)
	assert.Equal(t, "abc", c.Alias)
}

func TestCeilingIsInclusive(t *testing.T) {
	r := NewResolver(testFilters(t).Categories, nil)
	c, ok := r.Resolve("gba sp")
	require.True(t, ok)

	assert.True(t, c.Within(dollars("80")))
	assert.True(t, c.Within(dollars("79.99")))
	assert.False(t, c.Within(dollars("80.01")))
}

func TestThresholdOverride(t *testing.T) {
	r := NewResolver(testFilters(t).Categories, map[string]float64{"gba sp": 60, "gba": 0})

	c, _ := r.Resolve("gba sp")
	assert.True(t, dollars("60").Equal(c.Ceiling))

	// Non-positive overrides are ignored
	c, _ = r.Resolve("gba")
	assert.True(t, dollars("40").Equal(c.Ceiling))
}
