package sites

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-shops/models"
	"github.com/aluiziolira/go-scrape-shops/parser"
)

var interdiscountItem = itemLayout{
	source:      "interdiscount",
	name:        `[data-testid="product-title"]`,
	brand:       `[data-testid="product-brand"]`,
	price:       `[data-testid="product-price"]`,
	description: `[data-testid="product-description"]`,
	rating:      `[data-testid="rating-average"]`,
}

// Interdiscount reads interdiscount.ch. Listings use numbered pagination links.
type Interdiscount struct {
	base *url.URL
}

// NewInterdiscount returns the Interdiscount layout rooted at baseURL.
func NewInterdiscount(baseURL string) (*Interdiscount, error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	return &Interdiscount{base: base}, nil
}

// Name implements scraper.Site.
func (d *Interdiscount) Name() string { return "interdiscount" }

// HomeURL returns the shop root.
func (d *Interdiscount) HomeURL() string { return d.base.String() }

// ResolveURL makes href absolute against the shop root.
func (d *Interdiscount) ResolveURL(href string) string { return resolve(d.base, href) }

// ParseCategories reads the category links of the home page.
func (d *Interdiscount) ParseCategories(doc *goquery.Document) []models.CategoryRef {
	return parseLinks(doc, `a[data-testid="category-link"]`)
}

// ParseSubcategories reads the subcategory links of a category page.
func (d *Interdiscount) ParseSubcategories(doc *goquery.Document) []models.CategoryRef {
	return parseLinks(doc, `a[data-testid="subcategory-link"]`)
}

// ParseBrands reads the brand checkboxes of the facet panel.
func (d *Interdiscount) ParseBrands(doc *goquery.Document) []models.Brand {
	var brands []models.Brand
	doc.Find(`[data-testid="facet-brand"] input[type="checkbox"]`).Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.AttrOr("value", ""))
		if name == "" {
			return
		}
		count, _ := parser.ParseInt(s.Parent().Find(`[data-testid="facet-count"]`).First().Text())
		brands = append(brands, models.Brand{ID: name, Name: name, ItemCount: count})
	})
	return brands
}

// BrandFilter encodes brands as brand=<name>,<name>.
func (d *Interdiscount) BrandFilter(brands []models.Brand) string {
	if len(brands) == 0 {
		return ""
	}
	names := make([]string, len(brands))
	for i, brand := range brands {
		names[i] = brand.Name
	}
	return "brand=" + url.QueryEscape(strings.Join(names, ","))
}

// ListingURL implements scraper.Site.
func (d *Interdiscount) ListingURL(category models.CategoryRef, page int, filter string) string {
	return withQuery(d.ResolveURL(category.URL), "page="+strconv.Itoa(page), filter)
}

// ListingWaitSelector implements scraper.Site.
func (d *Interdiscount) ListingWaitSelector() string { return `[data-testid="product-list"]` }

// ParseListing reads the product links and the pager: the next link and the
// highest numbered page.
func (d *Interdiscount) ParseListing(doc *goquery.Document) models.Listing {
	var listing models.Listing
	doc.Find(`[data-testid="product-list"] a[data-testid="product-link"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			listing.Refs = append(listing.Refs, href)
		}
	})
	listing.HasNext = doc.Find(`a[data-testid="pagination-next"]`).Length() > 0
	doc.Find(`[data-testid="pagination"] a`).Each(func(_ int, s *goquery.Selection) {
		n, err := strconv.Atoi(strings.TrimSpace(s.Text()))
		if err == nil && n > listing.TotalPages {
			listing.TotalPages = n
		}
	})
	return listing
}

// ItemWaitSelector implements scraper.Site.
func (d *Interdiscount) ItemWaitSelector() string { return `[data-testid="product-price"]` }

// ExtractItem implements scraper.Site.
func (d *Interdiscount) ExtractItem(doc *goquery.Document, ref models.ItemRef) (*models.Item, error) {
	return interdiscountItem.extract(doc, ref)
}
