package sites

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-shops/models"
	"github.com/aluiziolira/go-scrape-shops/parser"
)

// GalaxusPageSize is the number of products a Galaxus listing page shows.
const GalaxusPageSize = 24

var galaxusItem = itemLayout{
	source:      "galaxus",
	name:        `h1[data-test="product-title"] [data-test="product-name"]`,
	brand:       `h1[data-test="product-title"] strong`,
	price:       `[data-test="product-price"]`,
	description: `[data-test="product-description"]`,
	rating:      `[data-test="rating-average"]`,
}

// Galaxus reads galaxus.ch. Listings load more products per page and
// announce the total product count.
type Galaxus struct {
	base *url.URL
}

// NewGalaxus returns the Galaxus layout rooted at baseURL.
func NewGalaxus(baseURL string) (*Galaxus, error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	return &Galaxus{base: base}, nil
}

// Name implements scraper.Site.
func (g *Galaxus) Name() string { return "galaxus" }

// HomeURL returns the shop root, which carries the category navigation.
func (g *Galaxus) HomeURL() string { return g.base.String() }

// ResolveURL makes href absolute against the shop root.
func (g *Galaxus) ResolveURL(href string) string { return resolve(g.base, href) }

// ParseCategories reads the top-level entries of the category navigation.
func (g *Galaxus) ParseCategories(doc *goquery.Document) []models.CategoryRef {
	return parseLinks(doc, `nav[aria-label="Categories"] li a[href]`)
}

// ParseSubcategories reads the subcategory tiles of a category page.
func (g *Galaxus) ParseSubcategories(doc *goquery.Document) []models.CategoryRef {
	return parseLinks(doc, `[data-test="subcategory-list"] a[href]`)
}

// ParseBrands reads the brand facet with its item counts.
func (g *Galaxus) ParseBrands(doc *goquery.Document) []models.Brand {
	var brands []models.Brand
	doc.Find(`[data-test="brand-filter"] li[data-brand-id]`).Each(func(_ int, s *goquery.Selection) {
		id := strings.TrimSpace(s.AttrOr("data-brand-id", ""))
		name := parser.CleanText(s.Find("label").First().Text())
		if id == "" || name == "" {
			return
		}
		count, _ := parser.ParseInt(s.AttrOr("data-count", ""))
		brands = append(brands, models.Brand{ID: id, Name: name, ItemCount: count})
	})
	return brands
}

// BrandFilter encodes brands as filter=bra=<id>|<id>.
func (g *Galaxus) BrandFilter(brands []models.Brand) string {
	if len(brands) == 0 {
		return ""
	}
	ids := make([]string, len(brands))
	for i, brand := range brands {
		ids[i] = brand.ID
	}
	return "filter=" + url.QueryEscape("bra="+strings.Join(ids, "|"))
}

// ListingURL returns the URL of one listing page, always with an explicit page number.
func (g *Galaxus) ListingURL(category models.CategoryRef, page int, filter string) string {
	return withQuery(g.ResolveURL(category.URL), "page="+strconv.Itoa(page), filter)
}

// ListingWaitSelector implements scraper.Site.
func (g *Galaxus) ListingWaitSelector() string { return `[data-test="product-list"]` }

// ParseListing reads the item links of one listing page and derives the page total
// from the product count.
func (g *Galaxus) ParseListing(doc *goquery.Document) models.Listing {
	var listing models.Listing
	doc.Find(`[data-test="product-list"] article`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Find("a[href]").First().Attr("href"); ok && href != "" {
			listing.Refs = append(listing.Refs, href)
		}
	})
	listing.HasNext = doc.Find(`[data-test="show-more"]`).Length() > 0
	if count, err := parser.ParseInt(doc.Find(`[data-test="product-count"]`).First().Text()); err == nil && count > 0 {
		listing.TotalPages = (count + GalaxusPageSize - 1) / GalaxusPageSize
	}
	return listing
}

// ItemWaitSelector implements scraper.Site.
func (g *Galaxus) ItemWaitSelector() string { return `[data-test="product-price"]` }

// ExtractItem reads the product title block, price, description and rating.
func (g *Galaxus) ExtractItem(doc *goquery.Document, ref models.ItemRef) (*models.Item, error) {
	return galaxusItem.extract(doc, ref)
}
