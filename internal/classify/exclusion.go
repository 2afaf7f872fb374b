package classify

import (
	"fmt"
	"regexp"
	"strings"

	"sjsage522/consoledealworker/config"
	"sjsage522/consoledealworker/internal/listing"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"github.com/shopspring/decimal"
)

// keywordMatcher finds curated exclusion keywords in a single pass over the
// title. Keywords keep the order of their group in the filter file so the
// reported match is deterministic.
type keywordMatcher struct {
	matcher  *ahocorasick.Matcher
	keywords []string
	groups   []string
}

func newKeywordMatcher(groups []config.KeywordGroup) *keywordMatcher {
	km := &keywordMatcher{}
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, kw := range g.Keywords {
			kw = strings.ToLower(kw)
			if strings.TrimSpace(kw) == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			km.keywords = append(km.keywords, kw)
			km.groups = append(km.groups, g.Name)
		}
	}
	if len(km.keywords) > 0 {
		km.matcher = ahocorasick.NewStringMatcher(km.keywords)
	}
	return km
}

// first returns the earliest declared keyword found in text
func (km *keywordMatcher) first(text string) (keyword, group string, ok bool) {
	if km.matcher == nil {
		return "", "", false
	}
	best := -1
	for _, idx := range km.matcher.MatchThreadSafe([]byte(text)) {
		if idx < 0 || idx >= len(km.keywords) {
			continue
		}
		if best == -1 || idx < best {
			best = idx
		}
	}
	if best == -1 {
		return "", "", false
	}
	return km.keywords[best], km.groups[best], true
}

// ExclusionFilter catches shells, broken units, flash carts and other false
// positives that got past the likelihood filter. Each check is an
// independent stage; the first one to match rejects.
type ExclusionFilter struct {
	Chain
}

// NewExclusionFilter compiles the exclusion checks from the filter tables
func NewExclusionFilter(f config.ExclusionFilters) (*ExclusionFilter, error) {
	patterns := make([]*regexp.Regexp, 0, len(f.Patterns))
	for _, p := range f.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("exclusion pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	floor := decimal.NewFromFloat(f.PriceFloor)
	keywords := newKeywordMatcher(f.KeywordGroups)

	return &ExclusionFilter{Chain: Chain{
		StageFunc{StageName: "price_floor", Fn: func(c Candidate) *listing.Rejection {
			if c.Price.IsZero() || c.Price.LessThan(floor) {
				return listing.Reject(listing.ReasonExclusionMatch, "price $%s is zero or below $%s (trade/free)", c.Price.StringFixed(2), floor.StringFixed(2))
			}
			return nil
		}},
		StageFunc{StageName: "keywords", Fn: func(c Candidate) *listing.Rejection {
			if kw, group, ok := keywords.first(c.Title); ok {
				return listing.Reject(listing.ReasonExclusionMatch, "keyword %q (%s)", kw, group)
			}
			return nil
		}},
		StageFunc{StageName: "minimum_price", Fn: func(c Candidate) *listing.Rejection {
			if c.Category.MinPrice.IsPositive() && c.Price.LessThan(c.Category.MinPrice) {
				return listing.Reject(listing.ReasonExclusionMatch, "price $%s below minimum $%s for %s", c.Price.StringFixed(2), c.Category.MinPrice.StringFixed(2), c.Category.Name)
			}
			return nil
		}},
		StageFunc{StageName: "patterns", Fn: func(c Candidate) *listing.Rejection {
			for _, re := range patterns {
				if m := re.FindString(c.Title); m != "" {
					return listing.Reject(listing.ReasonExclusionMatch, "pattern %q", m)
				}
			}
			return nil
		}},
	}}, nil
}

// Name returns the stage name
func (f *ExclusionFilter) Name() string { return "exclusion" }
