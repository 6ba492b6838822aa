package scraper

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/aluiziolira/go-scrape-shops/config"
	"github.com/aluiziolira/go-scrape-shops/models"
	"github.com/aluiziolira/go-scrape-shops/pipeline"
)

// Collector extracts every referenced item, hands it to the pipeline and
// recycles the session after every RecycleInterval processed references.
type Collector struct {
	site            Site
	sessions        *Sessions
	pipeline        *pipeline.Pipeline
	recycleInterval int
	metrics         *Metrics

	// OnItem, when set, is called once per processed reference.
	OnItem func()

	sinceRecycle int
	processed    int
	extracted    int
	skipped      int
}

// NewCollector builds a collector feeding p.
func NewCollector(site Site, sessions *Sessions, p *pipeline.Pipeline, cfg *config.Config, metrics *Metrics) *Collector {
	interval := cfg.RecycleInterval
	if interval <= 0 {
		interval = 1
	}
	return &Collector{
		site:            site,
		sessions:        sessions,
		pipeline:        p,
		recycleInterval: interval,
		metrics:         metrics,
	}
}

// Collect drains refs. A walk error or an item fetch error ends the run;
// items with unreadable mandatory fields are skipped.
func (c *Collector) Collect(ctx context.Context, refs iter.Seq2[models.ItemRef, error]) error {
	for ref, err := range refs {
		if err != nil {
			return fmt.Errorf("walk: %w", err)
		}
		if err := c.collectOne(ctx, ref); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) collectOne(ctx context.Context, ref models.ItemRef) error {
	item, err := extractItem(ctx, c.site, c.sessions, ref)
	var extraction ErrExtraction
	switch {
	case errors.As(err, &extraction):
		c.skipped++
		c.metrics.IncSkipped(extraction.Field)
		slog.Warn("skipping item",
			slog.String("url", ref.URL),
			slog.String("field", extraction.Field),
			slog.Any("error", extraction.Err),
		)
	case err != nil:
		return fmt.Errorf("fetch item %s: %w", ref.URL, err)
	default:
		flushes, accepted := c.pipeline.Flushes(), c.pipeline.Accepted()
		if err := c.pipeline.Process(item); err != nil {
			return fmt.Errorf("persist item %s: %w", ref.URL, err)
		}
		if c.pipeline.Accepted() > accepted {
			c.extracted++
			c.metrics.IncItems()
		} else {
			c.skipped++
			c.metrics.IncSkipped("invalid")
		}
		if c.pipeline.Flushes() > flushes {
			c.metrics.IncFlush()
			slog.Info("batch persisted",
				slog.Int("flushes", c.pipeline.Flushes()),
				slog.Int("items", c.extracted),
			)
		}
	}

	c.processed++
	c.sinceRecycle++
	if c.OnItem != nil {
		c.OnItem()
	}
	if c.sinceRecycle >= c.recycleInterval {
		if err := c.sessions.Recycle(ctx); err != nil {
			return err
		}
		c.sinceRecycle = 0
	}
	return nil
}

// Processed returns how many references were fetched.
func (c *Collector) Processed() int { return c.processed }

// Extracted returns how many items reached the pipeline.
func (c *Collector) Extracted() int { return c.extracted }

// Skipped returns how many items were dropped for missing mandatory fields.
func (c *Collector) Skipped() int { return c.skipped }

func extractItem(ctx context.Context, site Site, sessions *Sessions, ref models.ItemRef) (*models.Item, error) {
	doc, err := sessions.Fetch(ctx, "item", site.ResolveURL(ref.URL), site.ItemWaitSelector())
	if err != nil {
		return nil, err
	}
	return site.ExtractItem(doc, ref)
}
