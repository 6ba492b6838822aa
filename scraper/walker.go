package scraper

import (
	"context"
	"iter"
	"log/slog"

	"github.com/aluiziolira/go-scrape-shops/config"
	"github.com/aluiziolira/go-scrape-shops/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Walker pages through a category listing and yields item references lazily.
type Walker struct {
	site       Site
	sessions   *Sessions
	maxPages   int
	dedupeSize int
	metrics    *Metrics

	pages      int
	refs       int
	duplicates int
}

// NewWalker builds a walker bounded by cfg.MaxPages.
func NewWalker(site Site, sessions *Sessions, cfg *config.Config, metrics *Metrics) *Walker {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	dedupeSize := cfg.DedupeMaxSize
	if dedupeSize <= 0 {
		dedupeSize = 1
	}
	return &Walker{
		site:       site,
		sessions:   sessions,
		maxPages:   maxPages,
		dedupeSize: dedupeSize,
		metrics:    metrics,
	}
}

// Walk returns the item references of leaf in page order, then listing order.
// Pages are fetched on demand; breaking out of the range stops the walk.
// The sequence can be ranged over once.
//
// After page N the walk stops when N reached the page ceiling, when page 1
// held no items, or when page N offers no next control and N is at or past
// the largest page count any page announced. Listing fetch failures count
// as empty pages.
func (w *Walker) Walk(ctx context.Context, leaf models.Leaf, filter string) iter.Seq2[models.ItemRef, error] {
	consumed := false
	return func(yield func(models.ItemRef, error) bool) {
		if consumed {
			yield(models.ItemRef{}, ErrWalkRestarted)
			return
		}
		consumed = true

		seen, _ := lru.New[string, struct{}](w.dedupeSize)
		knownTotal := 0
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(models.ItemRef{}, err)
				return
			}

			listing := w.fetchPage(ctx, leaf.Ref, page, filter)
			if listing.TotalPages > knownTotal {
				knownTotal = listing.TotalPages
			}

			for _, href := range listing.Refs {
				if seen.Contains(href) {
					w.duplicates++
					w.metrics.IncDuplicate()
					continue
				}
				seen.Add(href, struct{}{})
				w.refs++
				ref := models.ItemRef{URL: href, Category: leaf.Category, SubCategory: leaf.SubCategory}
				if !yield(ref, nil) {
					return
				}
			}

			if reason := w.stopReason(page, listing, knownTotal); reason != "" {
				slog.Debug("category walk finished",
					slog.String("category", leaf.Category),
					slog.String("sub_category", leaf.SubCategory),
					slog.Int("pages", page),
					slog.String("reason", reason),
				)
				return
			}
		}
	}
}

func (w *Walker) stopReason(page int, listing models.Listing, knownTotal int) string {
	switch {
	case page >= w.maxPages:
		return "page ceiling"
	case page == 1 && len(listing.Refs) == 0:
		return "empty category"
	case !listing.HasNext && page >= knownTotal:
		return "last page"
	}
	return ""
}

func (w *Walker) fetchPage(ctx context.Context, ref models.CategoryRef, page int, filter string) models.Listing {
	pageURL := w.site.ListingURL(ref, page, filter)
	w.pages++
	w.metrics.IncPage()

	doc, err := w.sessions.Fetch(ctx, "listing", pageURL, w.site.ListingWaitSelector())
	if err != nil {
		slog.Warn("listing page unavailable, treating as empty",
			slog.String("url", pageURL),
			slog.Int("page", page),
			slog.Any("error", err),
		)
		return models.Listing{}
	}
	return w.site.ParseListing(doc)
}

// Pages returns the number of listing pages requested so far.
func (w *Walker) Pages() int { return w.pages }

// Refs returns the number of references yielded so far.
func (w *Walker) Refs() int { return w.refs }

// Duplicates returns the number of references dropped as repeats.
func (w *Walker) Duplicates() int { return w.duplicates }
