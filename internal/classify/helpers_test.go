package classify

import (
	"testing"

	"sjsage522/consoledealworker/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testFilters(t *testing.T) *config.Filters {
	t.Helper()
	f, err := config.DefaultFilters()
	require.NoError(t, err)
	return f
}

func newTestPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p, err := New(testFilters(t), opts)
	require.NoError(t, err)
	return p
}

func dollars(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
