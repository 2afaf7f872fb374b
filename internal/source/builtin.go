package source

import (
	"sjsage522/consoledealworker/config"
	"sjsage522/consoledealworker/logger"
	"sjsage522/consoledealworker/services/cache"
)

// Platform names
const (
	PlatformCraigslist = "Craigslist"
	PlatformOfferUp    = "OfferUp"
	PlatformMercari    = "Mercari"
)

// BuiltinConfigs returns the configurations of the supported marketplaces
func BuiltinConfigs(cfg config.Config) []Config {
	return []Config{
		{
			// Craigslist serves static result lists
			Name:      "craigslist",
			Platform:  PlatformCraigslist,
			BaseURL:   cfg.CraigslistURL,
			SearchURL: "{base}/search/vga?query={query}&sort=date&postal={zip}&search_distance={distance}",
			SearchTerms: []string{
				"gameboy", "game boy", "nintendo ds", "3ds", "2ds",
				"retro console", "nes", "snes", "n64", "gamecube",
			},
			CacheKey:  "craigslist_rate_limited",
			BlockTime: cfg.SourceBlockTime,
			Selectors: Selectors{
				Item:       []string{"li.cl-static-search-result"},
				Title:      "div.title",
				TitleAttrs: []string{"title"},
				Link:       "a",
				Price:      "div.price",
			},
		},
		{
			Name:        "offerup",
			Platform:    PlatformOfferUp,
			BaseURL:     cfg.OfferUpURL,
			SearchURL:   "{base}/search/?q={query}&radius={distance}",
			SearchTerms: []string{"gameboy", "nintendo ds", "3ds", "retro console"},
			CacheKey:    "offerup_rate_limited",
			BlockTime:   cfg.SourceBlockTime,
			MaxItems:    20,
			UseChrome:   true,
			Selectors: Selectors{
				Item: []string{
					"a[data-testid*='listing']",
					"div[class*='MuiGrid-root'] a[href*='/item/']",
					"a[href*='/item/']",
				},
				TitleAttrs:    []string{"aria-label", "title"},
				Price:         "[class*='price']",
				PriceFromText: true,
				Image:         "img",
				Description: []string{
					"div[data-testid='description']",
					"div[class*='description']",
					"p[class*='description']",
					"div[class*='Details']",
				},
			},
		},
		{
			Name:        "mercari",
			Platform:    PlatformMercari,
			BaseURL:     cfg.MercariURL,
			SearchURL:   "{base}/search/?keyword={query}",
			SearchTerms: []string{"gameboy", "nintendo ds", "3ds", "retro console"},
			CacheKey:    "mercari_rate_limited",
			BlockTime:   cfg.SourceBlockTime,
			MaxItems:    20,
			UseChrome:   true,
			Selectors: Selectors{
				Item:          []string{"a[href*='/item/']"},
				TitleAttrs:    []string{"aria-label"},
				PriceFromText: true,
				Image:         "img",
				Description: []string{
					"div[data-testid='ItemDescription']",
					"div[class*='item-description']",
					"div[class*='ItemDescription']",
					"p[itemprop='description']",
				},
			},
		},
	}
}

// CreateSources builds a source per configuration. Chrome-backed sources
// share renderer; when renderer is nil they fall back to plain HTTP.
func CreateSources(configs []Config, cacheSvc cache.CacheService, renderer *ChromeRenderer) []Source {
	sources := make([]Source, 0, len(configs))
	for _, c := range configs {
		var fetch FetchFunc
		if c.UseChrome && renderer != nil {
			fetch = renderer.Fetch
		}
		sources = append(sources, NewHTMLSource(c, cacheSvc, fetch))
		logger.ForSource(c.Name).Info().
			Str("platform", c.Platform).
			Bool("chrome", c.UseChrome && renderer != nil).
			Int("terms", len(c.SearchTerms)).
			Msg("Created source")
	}
	return sources
}
