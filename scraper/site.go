package scraper

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-shops/models"
)

// Site describes how one shop lays out its navigation, listings and item pages.
// Implementations are stateless; every method is a pure function of its input.
type Site interface {
	Name() string
	HomeURL() string
	// ResolveURL turns an href found on the site into an absolute URL.
	ResolveURL(href string) string

	ParseCategories(doc *goquery.Document) []models.CategoryRef
	ParseSubcategories(doc *goquery.Document) []models.CategoryRef
	ParseBrands(doc *goquery.Document) []models.Brand
	// BrandFilter encodes selected brands as a query fragment ("" for none).
	BrandFilter(brands []models.Brand) string

	ListingURL(category models.CategoryRef, page int, filter string) string
	ListingWaitSelector() string
	ParseListing(doc *goquery.Document) models.Listing

	ItemWaitSelector() string
	// ExtractItem returns ErrExtraction when name or price is unreadable.
	ExtractItem(doc *goquery.Document, ref models.ItemRef) (*models.Item, error)
}
