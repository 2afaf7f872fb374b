package classify

import (
	"sort"
	"strings"

	"sjsage522/consoledealworker/config"

	"github.com/shopspring/decimal"
)

// Category families used by the console-likelihood price heuristics
const (
	FamilyGameBoy = "gameboy"
	FamilyDS      = "ds"
)

// Category is a resolved item class with its price bounds
type Category struct {
	Name     string
	Family   string
	Ceiling  decimal.Decimal
	MinPrice decimal.Decimal
	// Alias is the alias that matched the title
	Alias string
}

// Within reports whether price is at or under the ceiling
func (c Category) Within(price decimal.Decimal) bool {
	return price.LessThanOrEqual(c.Ceiling)
}

type aliasEntry struct {
	alias    string
	category int
}

// Resolver maps titles to categories, longest contained alias first
type Resolver struct {
	categories []Category
	aliases    []aliasEntry
}

// NewResolver builds a resolver from the category table. Ceilings present in
// overrides replace the table's ceiling for that category name.
func NewResolver(entries []config.CategoryEntry, overrides map[string]float64) *Resolver {
	r := &Resolver{categories: make([]Category, 0, len(entries))}

	for i, e := range entries {
		ceiling := e.Ceiling
		if v, ok := overrides[e.Name]; ok && v > 0 {
			ceiling = v
		}
		r.categories = append(r.categories, Category{
			Name:     e.Name,
			Family:   e.Family,
			Ceiling:  decimal.NewFromFloat(ceiling),
			MinPrice: decimal.NewFromFloat(e.MinPrice),
		})
		for _, a := range e.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" {
				continue
			}
			r.aliases = append(r.aliases, aliasEntry{alias: a, category: i})
		}
	}

	// Stable sort keeps table order among aliases of equal length.
	sort.SliceStable(r.aliases, func(i, j int) bool {
		return len(r.aliases[i].alias) > len(r.aliases[j].alias)
	})

	return r
}

// Resolve returns the category whose longest alias occurs in title
func (r *Resolver) Resolve(title string) (Category, bool) {
	lower := strings.ToLower(title)
	for _, a := range r.aliases {
		if strings.Contains(lower, a.alias) {
			c := r.categories[a.category]
			c.Alias = a.alias
			return c, true
		}
	}
	return Category{}, false
}

// Categories returns the resolved table in declaration order
func (r *Resolver) Categories() []Category {
	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	return out
}
