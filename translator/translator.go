// Package translator translates free text between languages.
package translator

import (
	"context"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-shops/config"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Translator translates one piece of text.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// New builds the translator stack for cfg: an API client behind chunking
// and a cache, or Identity when no endpoint is configured.
func New(cfg config.TranslatorConfig) (Translator, error) {
	if cfg.APIURL == "" {
		return Identity{}, nil
	}
	chunked := NewChunked(NewClient(cfg), cfg.MaxChars)
	if cfg.CacheSize <= 0 {
		return chunked, nil
	}
	cached, err := NewCached(chunked, cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// Identity returns text unchanged.
type Identity struct{}

// Translate implements Translator.
func (Identity) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}

// Chunked splits text longer than MaxChars runes and translates the pieces
// one after another, joining the results with a space.
type Chunked struct {
	next     Translator
	maxChars int
}

// NewChunked wraps next. A non-positive maxChars disables splitting.
func NewChunked(next Translator, maxChars int) *Chunked {
	return &Chunked{next: next, maxChars: maxChars}
}

// Translate implements Translator.
func (c *Chunked) Translate(ctx context.Context, text string) (string, error) {
	runes := []rune(text)
	if c.maxChars <= 0 || len(runes) <= c.maxChars {
		return c.next.Translate(ctx, text)
	}

	parts := make([]string, 0, len(runes)/c.maxChars+1)
	for start := 0; start < len(runes); start += c.maxChars {
		end := min(start+c.maxChars, len(runes))
		translated, err := c.next.Translate(ctx, string(runes[start:end]))
		if err != nil {
			return "", fmt.Errorf("chunk %d: %w", start/c.maxChars+1, err)
		}
		parts = append(parts, translated)
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

// Cached memoizes translations; category names repeat on every row.
type Cached struct {
	next  Translator
	cache *lru.Cache[string, string]
}

// NewCached wraps next with an LRU of size entries.
func NewCached(next Translator, size int) (*Cached, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create translation cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

// Translate implements Translator. Failures are not cached.
func (c *Cached) Translate(ctx context.Context, text string) (string, error) {
	if translated, ok := c.cache.Get(text); ok {
		return translated, nil
	}
	translated, err := c.next.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	c.cache.Add(text, translated)
	return translated, nil
}
