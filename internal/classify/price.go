package classify

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	symbolPriceRegex = regexp.MustCompile(`\$(\d+(?:,\d{3})*(?:\.\d{2})?)`)
	barePriceRegex   = regexp.MustCompile(`(\d+(?:,\d{3})*(?:\.\d{2})?)`)
)

// ParsePrice extracts the first price from free text. A "$"-prefixed amount
// is preferred over a bare number; "$50-$60" yields 50. The second return
// value is false when the text holds no numeric token.
func ParsePrice(text string) (decimal.Decimal, bool) {
	if strings.TrimSpace(text) == "" {
		return decimal.Zero, false
	}

	m := symbolPriceRegex.FindStringSubmatch(text)
	if m == nil {
		m = barePriceRegex.FindStringSubmatch(text)
	}
	if m == nil {
		return decimal.Zero, false
	}

	price, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}
