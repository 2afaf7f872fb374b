// Package source pulls raw marketplace listings from search result pages
package source

import (
	"context"
	"io"
	"time"

	"sjsage522/consoledealworker/internal/listing"
)

// Source interface defines the contract for all marketplace sources
type Source interface {
	// FetchListings runs every search term and returns the listings found
	FetchListings(ctx context.Context, q Query) ([]listing.RawListing, error)

	// GetName returns the source's name for logging and identification
	GetName() string

	// GetPlatform returns the platform name stamped on each listing
	GetPlatform() string
}

// Query carries the run-scoped search area
type Query struct {
	ZipCode  string
	Distance int
	// Descriptions asks sources that support it to open each listing page
	// and read its description
	Descriptions bool
}

// FetchFunc loads a page and returns its UTF-8 HTML
type FetchFunc func(ctx context.Context, url string) (io.Reader, error)

// Selectors contains CSS selectors for the search result page. Item lists
// alternatives tried in order; the first that matches anything wins.
type Selectors struct {
	Item []string
	// Title is read from the text of the matched element, falling back to
	// TitleAttrs on the element and then on the item
	Title      string
	TitleAttrs []string
	// Link is empty when the item itself is the anchor
	Link  string
	Price string
	// PriceFromText falls back to the whole item text when Price finds nothing
	PriceFromText bool
	Image         string
	// Description selectors are tried in order on the listing page
	Description []string
}

// Config contains configuration for a source
type Config struct {
	Name     string
	Platform string
	BaseURL  string
	// SearchURL is a template with {base}, {query}, {zip} and {distance}
	SearchURL   string
	SearchTerms []string
	CacheKey    string
	BlockTime   time.Duration
	// MaxItems caps the listings taken per search term; zero means no cap
	MaxItems  int
	UseChrome bool
	Selectors Selectors
}
