package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sjsage522/consoledealworker/helpers"
	"sjsage522/consoledealworker/internal/listing"
	"sjsage522/consoledealworker/logger"
	werrors "sjsage522/consoledealworker/pkg/errors"
	"sjsage522/consoledealworker/services/cache"

	"github.com/PuerkitoBio/goquery"
)

// HTMLSource is a source driven entirely by its Config
type HTMLSource struct {
	cfg       Config
	cacheSvc  cache.CacheService
	fetchFunc FetchFunc
	pause     time.Duration
}

// NewHTMLSource creates a source that fetches with fetch. A nil fetch uses
// plain HTTP with randomized headers.
func NewHTMLSource(cfg Config, cacheSvc cache.CacheService, fetch FetchFunc) *HTMLSource {
	if fetch == nil {
		fetch = helpers.FetchWithRandomHeaders
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Platform
	}
	return &HTMLSource{
		cfg:       cfg,
		cacheSvc:  cacheSvc,
		fetchFunc: fetch,
		pause:     2 * time.Second,
	}
}

// GetName returns the source name
func (s *HTMLSource) GetName() string {
	return s.cfg.Name
}

// GetPlatform returns the platform name
func (s *HTMLSource) GetPlatform() string {
	return s.cfg.Platform
}

// FetchListings runs every search term. A failing term is logged and skipped;
// an error is returned only when every term failed or the source is blocked.
func (s *HTMLSource) FetchListings(ctx context.Context, q Query) ([]listing.RawListing, error) {
	log := logger.ForSource(s.cfg.Name)

	if s.blocked() {
		return nil, werrors.NewRateLimit(s.cfg.Name, s.cfg.BlockTime)
	}

	var (
		out     []listing.RawListing
		seen    = make(map[string]bool)
		lastErr error
		failed  int
	)

	for i, term := range s.cfg.SearchTerms {
		if i > 0 && s.pause > 0 {
			select {
			case <-time.After(s.pause):
			case <-ctx.Done():
				return out, ctx.Err()
			}
		}

		items, err := s.fetchTerm(ctx, term, q)
		if err != nil {
			failed++
			lastErr = err
			log.Warn().Err(err).Str("term", term).Msg("Search failed")
			if werrors.IsType(err, werrors.ErrorTypeRateLimit) || ctx.Err() != nil {
				break
			}
			continue
		}

		for _, item := range items {
			if seen[item.Link] {
				continue
			}
			seen[item.Link] = true
			out = append(out, item)
		}
		log.Debug().Str("term", term).Int("items", len(items)).Msg("Search complete")
	}

	if failed > 0 && len(out) == 0 {
		return nil, lastErr
	}

	if q.Descriptions && len(s.cfg.Selectors.Description) > 0 {
		s.fillDescriptions(ctx, out)
	}
	return out, nil
}

func (s *HTMLSource) fetchTerm(ctx context.Context, term string, q Query) ([]listing.RawListing, error) {
	pageURL := s.searchURL(term, q)

	body, err := s.fetchFunc(ctx, pageURL)
	if err != nil {
		if errors.Is(err, helpers.ErrRateLimited) {
			s.block()
			return nil, werrors.NewRateLimit(s.cfg.Name, s.cfg.BlockTime)
		}
		return nil, werrors.NewNetwork(s.cfg.Name, "fetch "+pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, werrors.NewParsing(s.cfg.Name, "parse search page", err)
	}
	return s.parse(doc), nil
}

func (s *HTMLSource) searchURL(term string, q Query) string {
	distance := q.Distance
	if distance <= 0 {
		distance = 25
	}
	r := strings.NewReplacer(
		"{base}", strings.TrimRight(s.cfg.BaseURL, "/"),
		"{query}", url.QueryEscape(term),
		"{zip}", url.QueryEscape(q.ZipCode),
		"{distance}", strconv.Itoa(distance),
	)
	return r.Replace(s.cfg.SearchURL)
}

// parse extracts listings from a search result page
func (s *HTMLSource) parse(doc *goquery.Document) []listing.RawListing {
	var items *goquery.Selection
	for _, sel := range s.cfg.Selectors.Item {
		items = doc.Find(sel)
		if items.Length() > 0 {
			break
		}
	}
	if items == nil {
		return nil
	}

	var out []listing.RawListing
	items.EachWithBreak(func(i int, item *goquery.Selection) bool {
		if s.cfg.MaxItems > 0 && len(out) >= s.cfg.MaxItems {
			return false
		}
		if l, ok := s.parseItem(item); ok {
			out = append(out, l)
		}
		return true
	})
	return out
}

func (s *HTMLSource) parseItem(item *goquery.Selection) (listing.RawListing, bool) {
	sel := s.cfg.Selectors

	title := s.title(item)
	if title == "" {
		return listing.RawListing{}, false
	}

	anchor := item
	if sel.Link != "" {
		anchor = item.Find(sel.Link).First()
	}
	href, ok := anchor.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return listing.RawListing{}, false
	}

	var price string
	if sel.Price != "" {
		price = strings.TrimSpace(item.Find(sel.Price).First().Text())
	}
	if price == "" && sel.PriceFromText {
		price = collapse(item.Text())
	}

	var image string
	if sel.Image != "" {
		img := item.Find(sel.Image).First()
		for _, attr := range []string{"src", "data-src", "srcset"} {
			if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
				image = s.resolveURL(strings.Fields(v)[0])
				break
			}
		}
	}

	return listing.RawListing{
		Title:     title,
		PriceText: price,
		Link:      s.resolveURL(strings.TrimSpace(href)),
		Platform:  s.cfg.Platform,
		ImageRef:  image,
	}, true
}

func (s *HTMLSource) title(item *goquery.Selection) string {
	sel := s.cfg.Selectors
	if sel.Title != "" {
		if t := collapse(item.Find(sel.Title).First().Text()); t != "" {
			return t
		}
	}
	for _, attr := range sel.TitleAttrs {
		if v, ok := item.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return collapse(v)
		}
	}
	if sel.Title == "" {
		return collapse(item.Text())
	}
	return ""
}

// resolveURL makes relative links absolute against BaseURL
func (s *HTMLSource) resolveURL(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(rel).String()
}

// fillDescriptions opens each listing page and reads its description. A page
// that fails leaves the description empty.
func (s *HTMLSource) fillDescriptions(ctx context.Context, items []listing.RawListing) {
	log := logger.ForSource(s.cfg.Name)
	for i := range items {
		if ctx.Err() != nil {
			return
		}
		desc, err := s.description(ctx, items[i].Link)
		if err != nil {
			log.Debug().Err(err).Str("link", items[i].Link).Msg("No description")
			continue
		}
		items[i].Description = desc
	}
}

func (s *HTMLSource) description(ctx context.Context, link string) (string, error) {
	body, err := s.fetchFunc(ctx, link)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", err
	}
	for _, sel := range s.cfg.Selectors.Description {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); len(text) > 10 {
			return text, nil
		}
	}
	return "", fmt.Errorf("no description element on %s", link)
}

func (s *HTMLSource) blocked() bool {
	if s.cacheSvc == nil || s.cfg.CacheKey == "" {
		return false
	}
	_, err := s.cacheSvc.Get(s.cfg.CacheKey)
	return err == nil
}

func (s *HTMLSource) block() {
	if s.cacheSvc == nil || s.cfg.CacheKey == "" || s.cfg.BlockTime <= 0 {
		return
	}
	value := []byte(strconv.Itoa(int(s.cfg.BlockTime / time.Second)))
	if err := s.cacheSvc.Set(s.cfg.CacheKey, value, s.cfg.BlockTime); err != nil {
		logger.ForSource(s.cfg.Name).Warn().Err(err).Msg("Failed to record rate limit block")
		return
	}
	logger.ForSource(s.cfg.Name).Warn().Dur("block", s.cfg.BlockTime).Msg("Rate limited, pausing source")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
