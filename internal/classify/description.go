package classify

import (
	"fmt"
	"regexp"
	"strings"

	"sjsage522/consoledealworker/config"
	"sjsage522/consoledealworker/internal/listing"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// DescriptionScanner looks for "games only" signals in the listing body. It
// needs at least MinPhraseCount distinct weak phrases, or one strong pattern,
// before it rejects.
type DescriptionScanner struct {
	phrases  []string
	matcher  *ahocorasick.Matcher
	patterns []*regexp.Regexp
	minCount int
}

// NewDescriptionScanner compiles the description rules
func NewDescriptionScanner(r config.DescriptionRules) (*DescriptionScanner, error) {
	s := &DescriptionScanner{minCount: r.MinPhraseCount}
	if s.minCount < 1 {
		s.minCount = 2
	}

	seen := make(map[string]bool)
	for _, p := range lowerAll(r.Phrases) {
		if !seen[p] {
			seen[p] = true
			s.phrases = append(s.phrases, p)
		}
	}
	if len(s.phrases) > 0 {
		s.matcher = ahocorasick.NewStringMatcher(s.phrases)
	}

	for _, p := range r.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("description pattern %q: %w", p, err)
		}
		s.patterns = append(s.patterns, re)
	}
	return s, nil
}

// Indicators returns the distinct indicator phrases found in description
func (s *DescriptionScanner) Indicators(description string) []string {
	if s.matcher == nil || description == "" {
		return nil
	}
	hit := make(map[int]bool)
	for _, idx := range s.matcher.MatchThreadSafe([]byte(strings.ToLower(description))) {
		if idx >= 0 && idx < len(s.phrases) {
			hit[idx] = true
		}
	}
	found := make([]string, 0, len(hit))
	for i, p := range s.phrases {
		if hit[i] {
			found = append(found, p)
		}
	}
	return found
}

// Scan passes an absent description and rejects one that reads like a games
// listing.
func (s *DescriptionScanner) Scan(description string) *listing.Rejection {
	if strings.TrimSpace(description) == "" {
		return nil
	}

	if found := s.Indicators(description); len(found) >= s.minCount {
		return listing.Reject(listing.ReasonDescriptionRejected, "%d games-only indicators: %s", len(found), strings.Join(found, ", "))
	}

	lower := strings.ToLower(description)
	for _, re := range s.patterns {
		if m := re.FindString(lower); m != "" {
			return listing.Reject(listing.ReasonDescriptionRejected, "games listing pattern %q", m)
		}
	}
	return nil
}
