package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed filters.yaml
var defaultFilters []byte

// Filters is the externally editable classification data: category table,
// keyword lists, regular expressions and price floors.
type Filters struct {
	Categories  []CategoryEntry   `yaml:"categories"`
	Likelihood  LikelihoodFilters `yaml:"likelihood"`
	Exclusion   ExclusionFilters  `yaml:"exclusion"`
	Description DescriptionRules  `yaml:"description"`
	Vision      VisionLabels      `yaml:"vision"`
}

// CategoryEntry is one row of the category threshold table
type CategoryEntry struct {
	Name     string   `yaml:"name"`
	Family   string   `yaml:"family"`
	Ceiling  float64  `yaml:"ceiling"`
	MinPrice float64  `yaml:"min_price"`
	Aliases  []string `yaml:"aliases"`
}

// LikelihoodFilters drives the console-likelihood stage
type LikelihoodFilters struct {
	ExcludeTerms    []string `yaml:"exclude_terms"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	IncludeTerms    []string `yaml:"include_terms"`
	GameBoyFloor    float64  `yaml:"gameboy_floor"`
	DSFloor         float64  `yaml:"ds_floor"`
}

// KeywordGroup is a named list of exclusion keywords
type KeywordGroup struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// ExclusionFilters drives the exclusion stage
type ExclusionFilters struct {
	PriceFloor    float64        `yaml:"price_floor"`
	KeywordGroups []KeywordGroup `yaml:"keyword_groups"`
	Patterns      []string       `yaml:"patterns"`
}

// DescriptionRules drives the description scanner
type DescriptionRules struct {
	MinPhraseCount int      `yaml:"min_phrase_count"`
	Phrases        []string `yaml:"phrases"`
	Patterns       []string `yaml:"patterns"`
}

// VisionLabels holds the label vocabularies used to score image annotations
type VisionLabels struct {
	ConsoleLabels         []string `yaml:"console_labels"`
	GameLabels            []string `yaml:"game_labels"`
	SpecificConsoleLabels []string `yaml:"specific_console_labels"`
}

// DefaultFilters returns the filter tables compiled into the binary
func DefaultFilters() (*Filters, error) {
	return ParseFilters(defaultFilters)
}

// LoadFilters reads the filter tables from path, or the built-in tables when
// path is empty
func LoadFilters(path string) (*Filters, error) {
	if path == "" {
		return DefaultFilters()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filters file %q: %w", path, err)
	}
	return ParseFilters(data)
}

// ParseFilters decodes and validates a YAML filter document
func ParseFilters(data []byte) (*Filters, error) {
	var f Filters
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode filters: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate rejects tables that would make classification meaningless
func (f *Filters) Validate() error {
	if len(f.Categories) == 0 {
		return fmt.Errorf("filters: no categories defined")
	}
	seen := make(map[string]bool, len(f.Categories))
	for _, c := range f.Categories {
		if c.Name == "" {
			return fmt.Errorf("filters: category with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("filters: duplicate category %q", c.Name)
		}
		seen[c.Name] = true
		if c.Ceiling <= 0 {
			return fmt.Errorf("filters: category %q has non-positive ceiling", c.Name)
		}
		if c.MinPrice < 0 || c.MinPrice > c.Ceiling {
			return fmt.Errorf("filters: category %q minimum price %.2f outside [0, %.2f]", c.Name, c.MinPrice, c.Ceiling)
		}
		if len(c.Aliases) == 0 {
			return fmt.Errorf("filters: category %q has no aliases", c.Name)
		}
	}
	if f.Description.MinPhraseCount < 1 {
		f.Description.MinPhraseCount = 2
	}
	return nil
}
