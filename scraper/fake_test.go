package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-shops/models"
)

const shopURL = "http://shop.test"

type fetchRecord struct {
	url        string
	generation int
}

// fakeShop serves canned HTML keyed by URL and records which session
// generation served each fetch.
type fakeShop struct {
	mu      sync.Mutex
	pages   map[string]string
	fails   map[string]error
	log     []fetchRecord
	opened  int
	closed  int
	openErr error
}

func newFakeShop() *fakeShop {
	return &fakeShop{pages: make(map[string]string), fails: make(map[string]error)}
}

func (f *fakeShop) factory(context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened++
	return &fakeSession{shop: f, generation: f.opened}, nil
}

func (f *fakeShop) fetches(substr string) []fetchRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fetchRecord
	for _, rec := range f.log {
		if strings.Contains(rec.url, substr) {
			out = append(out, rec)
		}
	}
	return out
}

type fakeSession struct {
	shop       *fakeShop
	generation int
	closed     bool
}

func (s *fakeSession) Fetch(ctx context.Context, url, _ string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, fmt.Errorf("fetch %s on closed session %d", url, s.generation)
	}
	s.shop.mu.Lock()
	s.shop.log = append(s.shop.log, fetchRecord{url: url, generation: s.generation})
	body, ok := s.shop.pages[url]
	failure := s.shop.fails[url]
	s.shop.mu.Unlock()

	if failure != nil {
		return nil, failure
	}
	if !ok {
		return nil, ErrNotFound{Err: fmt.Errorf("no page at %s", url)}
	}
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

func (s *fakeSession) Close() error {
	s.closed = true
	s.shop.mu.Lock()
	s.shop.closed++
	s.shop.mu.Unlock()
	return nil
}

// fakeSite reads the minimal markup produced by the helpers below.
type fakeSite struct{}

func (fakeSite) Name() string    { return "fake" }
func (fakeSite) HomeURL() string { return shopURL + "/" }

func (fakeSite) ResolveURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return shopURL + href
}

func (s fakeSite) ParseCategories(doc *goquery.Document) []models.CategoryRef {
	return fakeLinks(doc, "nav a")
}

func (s fakeSite) ParseSubcategories(doc *goquery.Document) []models.CategoryRef {
	return fakeLinks(doc, ".sub a")
}

func (fakeSite) ParseBrands(doc *goquery.Document) []models.Brand {
	var brands []models.Brand
	doc.Find(".brand").Each(func(_ int, s *goquery.Selection) {
		brands = append(brands, models.Brand{ID: s.AttrOr("data-id", ""), Name: strings.TrimSpace(s.Text())})
	})
	return brands
}

func (fakeSite) BrandFilter(brands []models.Brand) string {
	if len(brands) == 0 {
		return ""
	}
	ids := make([]string, len(brands))
	for i, b := range brands {
		ids[i] = b.ID
	}
	return "brand=" + strings.Join(ids, ",")
}

func (s fakeSite) ListingURL(category models.CategoryRef, page int, filter string) string {
	u := s.ResolveURL(category.URL) + "?page=" + strconv.Itoa(page)
	if filter != "" {
		u += "&" + filter
	}
	return u
}

func (fakeSite) ListingWaitSelector() string { return ".items" }

func (fakeSite) ParseListing(doc *goquery.Document) models.Listing {
	var listing models.Listing
	doc.Find(".items a").Each(func(_ int, s *goquery.Selection) {
		listing.Refs = append(listing.Refs, s.AttrOr("href", ""))
	})
	listing.HasNext = doc.Find(".next").Length() > 0
	listing.TotalPages, _ = strconv.Atoi(strings.TrimSpace(doc.Find(".total").Text()))
	return listing
}

func (fakeSite) ItemWaitSelector() string { return ".price" }

func (fakeSite) ExtractItem(doc *goquery.Document, ref models.ItemRef) (*models.Item, error) {
	name := strings.TrimSpace(doc.Find("h1").Text())
	if name == "" {
		return nil, ErrExtraction{URL: ref.URL, Field: "name", Err: fmt.Errorf("empty")}
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(doc.Find(".price").Text()), 64)
	if err != nil {
		return nil, ErrExtraction{URL: ref.URL, Field: "price", Err: err}
	}
	return &models.Item{
		Name:        name,
		Price:       price,
		Category:    ref.Category,
		SubCategory: ref.SubCategory,
		Source:      "fake",
		URL:         ref.URL,
	}, nil
}

func fakeLinks(doc *goquery.Document, selector string) []models.CategoryRef {
	var refs []models.CategoryRef
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		refs = append(refs, models.CategoryRef{Name: strings.TrimSpace(s.Text()), URL: s.AttrOr("href", "")})
	})
	return refs
}

func listingHTML(refs []string, next bool, total int) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="items">`)
	for _, ref := range refs {
		fmt.Fprintf(&b, `<a href="%s">item</a>`, ref)
	}
	b.WriteString(`</div>`)
	if total > 0 {
		fmt.Fprintf(&b, `<span class="total">%d</span>`, total)
	}
	if next {
		b.WriteString(`<a class="next" href="#">next</a>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func itemHTML(name, price string) string {
	return fmt.Sprintf(`<html><body><h1>%s</h1><span class="price">%s</span></body></html>`, name, price)
}

func refRange(from, to int) []string {
	var refs []string
	for i := from; i <= to; i++ {
		refs = append(refs, fmt.Sprintf("/p/%d", i))
	}
	return refs
}

// collectingWriter keeps every written batch.
type collectingWriter struct {
	mu      sync.Mutex
	batches [][]*models.Item
}

func (cw *collectingWriter) Write(items []*models.Item) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	batch := make([]*models.Item, len(items))
	copy(batch, items)
	cw.batches = append(cw.batches, batch)
	return nil
}

func (cw *collectingWriter) Close() error { return nil }

func (cw *collectingWriter) Validate() error { return nil }

func (cw *collectingWriter) sizes() []int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	out := make([]int, len(cw.batches))
	for i, batch := range cw.batches {
		out[i] = len(batch)
	}
	return out
}

func (cw *collectingWriter) all() []*models.Item {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	var out []*models.Item
	for _, batch := range cw.batches {
		out = append(out, batch...)
	}
	return out
}
