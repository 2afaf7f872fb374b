package classify

import (
	"fmt"
	"regexp"
	"strings"

	"sjsage522/consoledealworker/config"
	"sjsage522/consoledealworker/internal/listing"

	"github.com/shopspring/decimal"
)

type ruleOutcome int

const (
	outcomeContinue ruleOutcome = iota
	outcomePass
	outcomeReject
)

type likelihoodRule func(c Candidate) (ruleOutcome, string)

var spWordRegex = regexp.MustCompile(`\bsp\b`)

// LikelihoodFilter is the cheap first look at whether a title describes a
// console rather than a game, accessory or bundle. Rules run in order and the
// first one that decides wins.
type LikelihoodFilter struct {
	rules []likelihoodRule
}

// NewLikelihoodFilter compiles the likelihood rules from the filter tables
func NewLikelihoodFilter(f config.LikelihoodFilters) (*LikelihoodFilter, error) {
	patterns := make([]*regexp.Regexp, 0, len(f.ExcludePatterns))
	for _, p := range f.ExcludePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("likelihood pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	excludeTerms := lowerAll(f.ExcludeTerms)
	includeTerms := lowerAll(f.IncludeTerms)
	gameBoyFloor := decimal.NewFromFloat(f.GameBoyFloor)
	dsFloor := decimal.NewFromFloat(f.DSFloor)

	rules := []likelihoodRule{
		func(c Candidate) (ruleOutcome, string) {
			for _, term := range excludeTerms {
				if strings.Contains(c.Title, term) {
					return outcomeReject, fmt.Sprintf("contains %q (likely a game/accessory)", term)
				}
			}
			for _, re := range patterns {
				if m := re.FindString(c.Title); m != "" {
					return outcomeReject, fmt.Sprintf("matches %q (likely a game/accessory)", strings.TrimSpace(m))
				}
			}
			return outcomeContinue, ""
		},
		func(c Candidate) (ruleOutcome, string) {
			for _, term := range includeTerms {
				if strings.Contains(c.Title, term) {
					return outcomePass, ""
				}
			}
			return outcomeContinue, ""
		},
		func(c Candidate) (ruleOutcome, string) {
			if c.Category.Family == FamilyGameBoy && c.Price.LessThan(gameBoyFloor) && !spWordRegex.MatchString(c.Title) {
				return outcomeReject, fmt.Sprintf("price $%s too low for a Game Boy console", c.Price.StringFixed(2))
			}
			return outcomeContinue, ""
		},
		func(c Candidate) (ruleOutcome, string) {
			if c.Category.Family == FamilyDS && c.Price.LessThan(dsFloor) {
				return outcomeReject, fmt.Sprintf("price $%s too low for a DS console", c.Price.StringFixed(2))
			}
			return outcomeContinue, ""
		},
	}

	return &LikelihoodFilter{rules: rules}, nil
}

// Name returns the stage name
func (f *LikelihoodFilter) Name() string { return "likelihood" }

// Check rejects titles that look like games or accessories. Anything no rule
// decides on passes.
func (f *LikelihoodFilter) Check(c Candidate) *listing.Rejection {
	for _, rule := range f.rules {
		outcome, detail := rule(c)
		switch outcome {
		case outcomePass:
			return nil
		case outcomeReject:
			return listing.Reject(listing.ReasonLikelyNotConsole, "%s", detail)
		}
	}
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(s); strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
