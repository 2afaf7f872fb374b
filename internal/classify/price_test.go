package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"$45", "45"},
		{"$1,234.56", "1234.56"},
		{"Price: $80.00 OBO", "80"},
		{"$50-$60", "50"},
		{"120", "120"},
		{"about 35 dollars", "35"},
		{"3DS XL $95", "95"},
		{"$0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParsePrice(tt.text)
			assert.True(t, ok)
			assert.True(t, dollars(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParsePriceSymbolPreferred(t *testing.T) {
	// The bare "3" in "3ds" must not win over the symbol-prefixed amount.
	got, ok := ParsePrice("3ds for $110")
	assert.True(t, ok)
	assert.True(t, dollars("110").Equal(got))
}

func TestParsePriceWithoutDigits(t *testing.T) {
	for _, text := range []string{"", "   ", "Free", "make an offer", "$", "ask"} {
		_, ok := ParsePrice(text)
		assert.False(t, ok, "text %q", text)
	}
}
