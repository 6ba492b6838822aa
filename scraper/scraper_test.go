package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/aluiziolira/go-scrape-shops/config"
	"github.com/aluiziolira/go-scrape-shops/models"
	"github.com/aluiziolira/go-scrape-shops/pipeline"
	"github.com/jarcoal/httpmock"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "canceled", err: context.Canceled, statusCode: 0, expected: "canceled"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}

	extraction := fmt.Errorf("wrapped: %w", ErrExtraction{URL: "/p/1", Field: "price", Err: errors.New("no digits")})
	if got := errorTypeLabel(extraction); got != "extraction" {
		t.Fatalf("extraction label=%q", got)
	}
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func newMockedSessions(t *testing.T, transport *httpmock.MockTransport) *Sessions {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test/"

	factory := func(context.Context) (Session, error) {
		s, err := NewHTTPSession(cfg)
		if err != nil {
			return nil, err
		}
		s.WithTransport(transport)
		return s, nil
	}
	sessions, err := OpenSessions(context.Background(), factory, NewMetrics())
	if err != nil {
		t.Fatalf("open sessions: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })
	return sessions
}

func TestHTTPSessionFetch(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/de/home",
		htmlResponder(`<html><body><h1>Willkommen</h1></body></html>`))
	sessions := newMockedSessions(t, transport)

	doc, err := sessions.Fetch(context.Background(), "home", "http://example.test/de/home", ".ignored")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := doc.Find("h1").Text(); got != "Willkommen" {
		t.Fatalf("h1=%q", got)
	}

	// Same URL again: revisits are allowed.
	if _, err := sessions.Fetch(context.Background(), "home", "http://example.test/de/home", ""); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if err := sessions.Recycle(context.Background()); err != nil {
		t.Fatalf("recycle: %v", err)
	}
	if _, err := sessions.Fetch(context.Background(), "home", "http://example.test/de/home", ""); err != nil {
		t.Fatalf("fetch after recycle: %v", err)
	}
	if got := transport.GetTotalCallCount(); got != 3 {
		t.Fatalf("calls=%d, want 3", got)
	}
}

func TestHTTPSessionStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{status: http.StatusTooManyRequests, expected: "rate_limited"},
		{status: http.StatusForbidden, expected: "forbidden"},
		{status: http.StatusNotFound, expected: "not_found"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", "http://example.test/p/1", httpmock.NewStringResponder(tt.status, ""))
			sessions := newMockedSessions(t, transport)

			_, err := sessions.Fetch(context.Background(), "item", "http://example.test/p/1", "")
			if err == nil {
				t.Fatalf("expected error for status %d", tt.status)
			}
			if got := errorTypeLabel(err); got != tt.expected {
				t.Fatalf("label=%q, want %q", got, tt.expected)
			}
			if got := sessions.ErrorsByType()[tt.expected]; got != 1 {
				t.Fatalf("errors by type=%v", sessions.ErrorsByType())
			}
		})
	}
}

func TestHTTPSessionRejectsCanceledContext(t *testing.T) {
	transport := httpmock.NewMockTransport()
	sessions := newMockedSessions(t, transport)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sessions.Fetch(ctx, "home", "http://example.test/", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if transport.GetTotalCallCount() != 0 {
		t.Fatalf("no request should be issued")
	}
}

func crawlFixture() *fakeShop {
	shop := newFakeShop()
	shop.pages[shopURL+"/"] = `<html><body><nav>
		<a href="/c/audio">Audio</a><a href="/c/tv">TV</a>
	</nav></body></html>`
	shop.pages[shopURL+"/c/audio"] = `<html><body><ul class="sub">
		<li><a href="/c/audio/headphones">Headphones</a></li>
		<li><a href="/c/audio/speakers">Speakers</a></li>
	</ul></body></html>`
	shop.pages[shopURL+"/c/audio?page=1"] = `<html><body>
		<span class="brand" data-id="7">Sony</span><span class="brand" data-id="9">JBL</span>
	</body></html>`
	shop.pages[shopURL+"/c/audio/headphones?page=1&brand=7"] = listingHTML(refRange(1, 2), false, 0)
	shop.pages[shopURL+"/c/audio/speakers?page=1&brand=7"] = listingHTML(refRange(3, 3), false, 0)
	shop.pages[shopURL+"/c/tv?page=1"] = listingHTML(refRange(10, 12), false, 0)
	for i := 1; i <= 3; i++ {
		shop.pages[fmt.Sprintf("%s/p/%d", shopURL, i)] = itemHTML(fmt.Sprintf("Item %d", i), "19.90")
	}
	return shop
}

func TestCrawlerRun(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Categories = []string{"audio"}
	cfg.Brands = []string{"SONY"}
	cfg.CategoryDepth = 1
	shop := crawlFixture()

	sessions, err := OpenSessions(context.Background(), shop.factory, NewMetrics())
	if err != nil {
		t.Fatalf("open sessions: %v", err)
	}
	defer sessions.Close()

	processed := 0
	crawler := NewCrawler(cfg, fakeSite{}, sessions, NewMetrics())
	crawler.OnItem = func() { processed++ }

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(writer, cfg)
	result, err := crawler.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	items := writer.all()
	if len(items) != 3 || processed != 3 {
		t.Fatalf("items=%d processed=%d, want 3", len(items), processed)
	}
	want := []struct{ name, sub string }{
		{"Item 1", "Headphones"},
		{"Item 2", "Headphones"},
		{"Item 3", "Speakers"},
	}
	for i, w := range want {
		if items[i].Name != w.name || items[i].Category != "Audio" || items[i].SubCategory != w.sub {
			t.Fatalf("item %d = %+v, want %s in Audio/%s", i, items[i], w.name, w.sub)
		}
	}
	if len(shop.fetches("/c/tv")) != 0 {
		t.Fatalf("unselected category was crawled")
	}
	if result.Categories != 1 || result.PageCount != 2 || result.ItemCount != 3 || result.RefCount != 3 {
		t.Fatalf("result=%+v", result)
	}
	if result.EndTime.Before(result.StartTime) {
		t.Fatalf("end time before start time")
	}
}

func TestCrawlerFetchCategoriesEmptyHome(t *testing.T) {
	shop := newFakeShop()
	shop.pages[shopURL+"/"] = `<html><body><p>Wartung</p></body></html>`
	sessions, err := OpenSessions(context.Background(), shop.factory, nil)
	if err != nil {
		t.Fatalf("open sessions: %v", err)
	}
	defer sessions.Close()

	crawler := NewCrawler(config.DefaultConfig(), fakeSite{}, sessions, nil)
	if _, err := crawler.FetchCategories(context.Background()); !errors.Is(err, ErrNoCategories) {
		t.Fatalf("err=%v, want ErrNoCategories", err)
	}
}

func TestCrawlerExpandCategoryDepth(t *testing.T) {
	shop := crawlFixture()
	shop.pages[shopURL+"/c/audio/headphones"] = `<html><body><ul class="sub">
		<li><a href="/c/audio/headphones/in-ear">In-Ear</a></li>
		<li><a href="/c/audio/headphones">Headphones</a></li>
	</ul></body></html>`
	sessions, err := OpenSessions(context.Background(), shop.factory, nil)
	if err != nil {
		t.Fatalf("open sessions: %v", err)
	}
	defer sessions.Close()
	crawler := NewCrawler(config.DefaultConfig(), fakeSite{}, sessions, nil)

	audio := models.CategoryRef{Name: "Audio", URL: "/c/audio"}
	if got := crawler.ExpandCategory(context.Background(), audio, 0); len(got.Subcategories) != 0 {
		t.Fatalf("depth 0 should not expand: %+v", got)
	}

	tree := crawler.ExpandCategory(context.Background(), audio, 2)
	leaves := tree.Leaves()
	// speakers has no page, so it stays a leaf
	if len(leaves) != 2 {
		t.Fatalf("leaves=%+v", leaves)
	}
	if leaves[0].SubCategory != "In-Ear" || leaves[0].Category != "Audio" || leaves[1].SubCategory != "Speakers" {
		t.Fatalf("leaves=%+v", leaves)
	}
}
