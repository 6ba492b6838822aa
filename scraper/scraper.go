package scraper

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-shops/config"
	"github.com/aluiziolira/go-scrape-shops/models"
	"github.com/aluiziolira/go-scrape-shops/pipeline"
)

// ErrNoCategories is returned when the home page offers nothing to crawl.
var ErrNoCategories = errors.New("no categories found on home page")

// Crawler drives a bounded crawl of one shop: category discovery, selection,
// optional brand filtering, then a sequential walk and collect per category.
type Crawler struct {
	cfg      *config.Config
	site     Site
	sessions *Sessions
	walker   *Walker
	metrics  *Metrics

	// Categories picks which top-level categories to crawl.
	Categories Selector
	// Brands picks brand filters per category; nil disables brand filtering.
	Brands Selector
	// OnItem, when set, is called once per processed item reference.
	OnItem func()
}

// NewCrawler builds a crawler over an open Sessions handle. Selection
// defaults to the names configured in cfg.
func NewCrawler(cfg *config.Config, site Site, sessions *Sessions, metrics *Metrics) *Crawler {
	c := &Crawler{
		cfg:        cfg,
		site:       site,
		sessions:   sessions,
		walker:     NewWalker(site, sessions, cfg, metrics),
		metrics:    metrics,
		Categories: NameSelector(cfg.Categories),
	}
	if len(cfg.Brands) > 0 {
		c.Brands = NameSelector(cfg.Brands)
	}
	return c
}

// FetchCategories loads the home page and returns its top-level categories.
func (c *Crawler) FetchCategories(ctx context.Context) ([]models.CategoryRef, error) {
	doc, err := c.sessions.Fetch(ctx, "home", c.site.HomeURL(), "")
	if err != nil {
		return nil, fmt.Errorf("fetch home page: %w", err)
	}
	categories := c.site.ParseCategories(doc)
	if len(categories) == 0 {
		return nil, ErrNoCategories
	}
	return categories, nil
}

// ExpandCategory fills in subcategories down to depth levels. A category
// page that cannot be fetched keeps the category as a leaf.
func (c *Crawler) ExpandCategory(ctx context.Context, ref models.CategoryRef, depth int) models.CategoryRef {
	if depth <= 0 {
		return ref
	}
	doc, err := c.sessions.Fetch(ctx, "category", c.site.ResolveURL(ref.URL), c.site.ListingWaitSelector())
	if err != nil {
		slog.Warn("category page unavailable, crawling it as a leaf",
			slog.String("category", ref.Name),
			slog.Any("error", err),
		)
		return ref
	}

	var subs []models.CategoryRef
	for _, sub := range c.site.ParseSubcategories(doc) {
		if sub.URL == ref.URL {
			continue
		}
		subs = append(subs, c.ExpandCategory(ctx, sub, depth-1))
	}
	ref.Subcategories = subs
	return ref
}

// WalkCategory lazily yields the item references of one leaf.
func (c *Crawler) WalkCategory(ctx context.Context, leaf models.Leaf, filter string) iter.Seq2[models.ItemRef, error] {
	return c.walker.Walk(ctx, leaf, filter)
}

// ExtractItem fetches and extracts a single item.
func (c *Crawler) ExtractItem(ctx context.Context, ref models.ItemRef) (*models.Item, error) {
	return extractItem(ctx, c.site, c.sessions, ref)
}

// Run crawls the selected categories in order and streams items into p.
// The caller closes p, which writes the residual batch. A partial result
// is returned alongside any error.
func (c *Crawler) Run(ctx context.Context, p *pipeline.Pipeline) (*models.CrawlResult, error) {
	result := &models.CrawlResult{StartTime: time.Now()}
	collector := NewCollector(c.site, c.sessions, p, c.cfg, c.metrics)
	collector.OnItem = c.OnItem
	defer c.fillResult(result, collector, p)

	categories, err := c.FetchCategories(ctx)
	if err != nil {
		return result, err
	}

	names := make([]string, len(categories))
	for i, category := range categories {
		names[i] = category.Name
	}
	picked, err := c.Categories.Select(fmt.Sprintf("Categories on %s", c.site.Name()), names)
	if err != nil {
		return result, fmt.Errorf("select categories: %w", err)
	}
	if len(picked) == 0 {
		slog.Warn("no categories selected", slog.String("site", c.site.Name()))
		return result, nil
	}

	for _, i := range picked {
		category := c.ExpandCategory(ctx, categories[i], c.cfg.CategoryDepth)
		filter, err := c.brandFilter(ctx, category)
		if err != nil {
			return result, err
		}

		for _, leaf := range category.Leaves() {
			slog.Info("walking category",
				slog.String("category", leaf.Category),
				slog.String("sub_category", leaf.SubCategory),
				slog.Bool("brand_filter", filter != ""),
			)
			if err := collector.Collect(ctx, c.WalkCategory(ctx, leaf, filter)); err != nil {
				return result, fmt.Errorf("category %s: %w", leaf.Ref.Name, err)
			}
		}
		result.Categories++
	}
	return result, nil
}

func (c *Crawler) brandFilter(ctx context.Context, category models.CategoryRef) (string, error) {
	if c.Brands == nil {
		return "", nil
	}
	pageURL := c.site.ListingURL(category, 1, "")
	doc, err := c.sessions.Fetch(ctx, "category", pageURL, c.site.ListingWaitSelector())
	if err != nil {
		slog.Warn("brand candidates unavailable, crawling unfiltered",
			slog.String("category", category.Name),
			slog.Any("error", err),
		)
		return "", nil
	}

	brands := c.site.ParseBrands(doc)
	if len(brands) == 0 {
		return "", nil
	}
	names := make([]string, len(brands))
	for i, brand := range brands {
		names[i] = brand.Name
	}
	picked, err := c.Brands.Select(fmt.Sprintf("Brands in %s", category.Name), names)
	if err != nil {
		return "", fmt.Errorf("select brands: %w", err)
	}
	selected := make([]models.Brand, 0, len(picked))
	for _, i := range picked {
		selected = append(selected, brands[i])
	}
	return c.site.BrandFilter(selected), nil
}

func (c *Crawler) fillResult(result *models.CrawlResult, collector *Collector, p *pipeline.Pipeline) {
	result.EndTime = time.Now()
	result.PageCount = c.walker.Pages()
	result.RefCount = c.walker.Refs()
	result.Duplicates = c.walker.Duplicates()
	result.ItemCount = collector.Extracted()
	result.SkippedCount = collector.Skipped()
	result.Flushes = p.Flushes()
	result.Recycles = c.sessions.Recycles()
	result.ErrorsByType = c.sessions.ErrorsByType()
}
