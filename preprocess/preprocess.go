// Package preprocess cleans and translates a crawled dataset.
package preprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aluiziolira/go-scrape-shops/models"
	"github.com/aluiziolira/go-scrape-shops/parser"
	"github.com/aluiziolira/go-scrape-shops/pipeline"
	"github.com/aluiziolira/go-scrape-shops/translator"
)

// Stats summarizes one preprocessing run.
type Stats struct {
	Rows                int
	BrandsGuessed       int
	TranslationFailures int
	Duration            time.Duration
}

// Preprocessor rewrites raw rows into their cleaned, translated form.
type Preprocessor struct {
	translator translator.Translator
	delimiter  rune
	source     string
}

// New builds a preprocessor. source fills rows that carry no source.
func New(tr translator.Translator, delimiter rune, source string) *Preprocessor {
	return &Preprocessor{translator: tr, delimiter: delimiter, source: source}
}

// Process reads in, cleans every row and writes the result to out,
// replacing any previous file. A translation failure keeps the original
// text for that field; only cancellation stops the run.
func (p *Preprocessor) Process(ctx context.Context, in, out string) (*Stats, error) {
	start := time.Now()
	items, err := pipeline.ReadCSV(in, p.delimiter)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	stats := &Stats{Rows: len(items)}
	step := len(items) / 100
	if step < 1 {
		step = 1
	}
	for i, item := range items {
		if err := p.processItem(ctx, item, stats); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if (i+1)%step == 0 || i+1 == len(items) {
			slog.Info("preprocessing progress",
				slog.Int("rows", i+1),
				slog.String("percent", fmt.Sprintf("%.2f", float64(i+1)*100/float64(len(items)))),
			)
		}
	}

	if err := writeAll(out, p.delimiter, items); err != nil {
		return nil, err
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

func (p *Preprocessor) processItem(ctx context.Context, item *models.Item, stats *Stats) error {
	name := parser.CleanText(item.Name)
	rawBrand := parser.CleanText(models.Deref(item.Brand))
	brand, name := parser.SplitBrand(name, rawBrand)
	if rawBrand == "" && brand != "" {
		stats.BrandsGuessed++
	}
	item.Brand = models.StringPtr(brand)

	description := parser.CleanText(models.Deref(item.Description))
	for _, field := range []*string{&name, &description, &item.Category, &item.SubCategory} {
		translated, err := p.translate(ctx, *field, stats)
		if err != nil {
			return err
		}
		*field = translated
	}

	item.Name = name
	item.Description = models.StringPtr(description)
	if item.Source == "" {
		item.Source = p.source
	}
	return nil
}

func (p *Preprocessor) translate(ctx context.Context, text string, stats *Stats) (string, error) {
	if text == "" {
		return "", nil
	}
	translated, err := p.translator.Translate(ctx, text)
	if err == nil {
		return translated, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	stats.TranslationFailures++
	slog.Warn("translation failed, keeping original text", slog.Any("error", err))
	return text, nil
}

func writeAll(out string, delimiter rune, items []*models.Item) error {
	tmp := out + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale %s: %w", tmp, err)
	}
	writer, err := pipeline.NewCSVWriter(tmp, delimiter)
	if err != nil {
		return err
	}
	if err := writer.Write(items); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, out); err != nil {
		return fmt.Errorf("replace %s: %w", out, err)
	}
	return nil
}
