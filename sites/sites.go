// Package sites holds the page layouts of the supported shops.
package sites

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-shops/models"
	"github.com/aluiziolira/go-scrape-shops/parser"
	"github.com/aluiziolira/go-scrape-shops/scraper"
)

// New returns the site layout registered under name.
func New(name, baseURL string) (scraper.Site, error) {
	switch strings.ToLower(name) {
	case "galaxus":
		site, err := NewGalaxus(baseURL)
		if err != nil {
			return nil, err
		}
		return site, nil
	case "interdiscount":
		site, err := NewInterdiscount(baseURL)
		if err != nil {
			return nil, err
		}
		return site, nil
	default:
		return nil, fmt.Errorf("unknown site %q", name)
	}
}

func parseBase(baseURL string) (*url.URL, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	return base, nil
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// withQuery appends raw query fragments to rawURL, skipping empty ones.
func withQuery(rawURL string, fragments ...string) string {
	var parts []string
	for _, fragment := range fragments {
		if fragment != "" {
			parts = append(parts, fragment)
		}
	}
	if len(parts) == 0 {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + strings.Join(parts, "&")
}

func parseLinks(doc *goquery.Document, selector string) []models.CategoryRef {
	var refs []models.CategoryRef
	seen := make(map[string]bool)
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		name := parser.CleanText(s.Text())
		if !ok || href == "" || name == "" || seen[href] {
			return
		}
		seen[href] = true
		refs = append(refs, models.CategoryRef{Name: name, URL: href})
	})
	return refs
}

// itemLayout names the selectors an item page is read with.
type itemLayout struct {
	source      string
	name        string
	brand       string
	price       string
	description string
	rating      string
}

func (l itemLayout) extract(doc *goquery.Document, ref models.ItemRef) (*models.Item, error) {
	name := parser.CleanText(doc.Find(l.name).First().Text())
	if name == "" {
		return nil, scraper.ErrExtraction{URL: ref.URL, Field: "name", Err: fmt.Errorf("selector %q is empty", l.name)}
	}
	price, err := parser.ParsePrice(doc.Find(l.price).First().Text())
	if err != nil {
		return nil, scraper.ErrExtraction{URL: ref.URL, Field: "price", Err: err}
	}

	item := &models.Item{
		Name:        name,
		Price:       price,
		Description: models.StringPtr(parser.CleanText(doc.Find(l.description).First().Text())),
		Category:    ref.Category,
		Brand:       models.StringPtr(parser.CleanText(doc.Find(l.brand).First().Text())),
		Source:      l.source,
		SubCategory: ref.SubCategory,
		URL:         ref.URL,
	}

	rating, err := parser.ParseRating(doc.Find(l.rating).First().Text())
	if err != nil {
		slog.Warn("ignoring unreadable rating", slog.String("url", ref.URL), slog.Any("error", err))
	}
	item.Rating = rating
	return item, nil
}
