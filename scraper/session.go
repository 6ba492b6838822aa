package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-shops/config"
	"github.com/shirou/gopsutil/v3/mem"
)

// Session fetches pages and returns a parsed snapshot of their content.
// A session is used by one goroutine at a time.
type Session interface {
	// Fetch loads url and waits up to the configured wait timeout for
	// waitSelector to appear. A missing selector is not an error: the
	// snapshot is returned as it is.
	Fetch(ctx context.Context, url, waitSelector string) (*goquery.Document, error)
	Close() error
}

// SessionFactory opens a fresh session.
type SessionFactory func(ctx context.Context) (Session, error)

// NewSessionFactory returns the factory matching cfg.Fetcher.
func NewSessionFactory(cfg *config.Config) (SessionFactory, error) {
	switch cfg.Fetcher {
	case "http":
		return func(context.Context) (Session, error) {
			return NewHTTPSession(cfg)
		}, nil
	case "browser":
		return func(ctx context.Context) (Session, error) {
			return NewBrowserSession(ctx, cfg)
		}, nil
	default:
		return nil, fmt.Errorf("unknown fetcher %q", cfg.Fetcher)
	}
}

// Sessions owns the live fetch session and replaces it on Recycle.
// Every fetch in a crawl goes through the same handle, so a recycle is
// visible to whoever fetches next.
type Sessions struct {
	factory    SessionFactory
	current    Session
	generation int
	recycles   int
	metrics    *Metrics

	errorsByType map[string]int
}

// OpenSessions opens the first session.
func OpenSessions(ctx context.Context, factory SessionFactory, metrics *Metrics) (*Sessions, error) {
	first, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return &Sessions{
		factory:      factory,
		current:      first,
		generation:   1,
		metrics:      metrics,
		errorsByType: make(map[string]int),
	}, nil
}

// Fetch routes a request through the live session. phase labels the
// request for metrics (home, category, listing, item).
func (s *Sessions) Fetch(ctx context.Context, phase, url, waitSelector string) (*goquery.Document, error) {
	if s.current == nil {
		return nil, fmt.Errorf("fetch %s: session closed", url)
	}
	s.metrics.IncRequest(phase)
	start := time.Now()
	doc, err := s.current.Fetch(ctx, url, waitSelector)
	s.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		label := errorTypeLabel(err)
		s.errorsByType[label]++
		s.metrics.IncError(label)
		return nil, err
	}
	return doc, nil
}

// Recycle tears down the live session and opens a new one.
func (s *Sessions) Recycle(ctx context.Context) error {
	if s.current != nil {
		if err := s.current.Close(); err != nil {
			slog.Warn("closing session before recycle", slog.Any("error", err))
		}
		s.current = nil
	}
	runtime.GC()
	logMemory(s.generation)

	next, err := s.factory(ctx)
	if err != nil {
		return fmt.Errorf("reopen session: %w", err)
	}
	s.current = next
	s.generation++
	s.recycles++
	s.metrics.IncRecycle()
	slog.Info("session recycled", slog.Int("generation", s.generation))
	return nil
}

// Generation identifies the live session; it grows by one per recycle.
func (s *Sessions) Generation() int {
	return s.generation
}

// Recycles returns how many times the session was replaced.
func (s *Sessions) Recycles() int {
	return s.recycles
}

// ErrorsByType returns a copy of fetch error counts keyed by type label.
func (s *Sessions) ErrorsByType() map[string]int {
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

// Close releases the live session.
func (s *Sessions) Close() error {
	if s.current == nil {
		return nil
	}
	err := s.current.Close()
	s.current = nil
	return err
}

func logMemory(generation int) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	attrs := []any{
		slog.Int("generation", generation),
		slog.Uint64("heap_alloc_mb", stats.HeapAlloc/1024/1024),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		attrs = append(attrs,
			slog.Float64("system_used_percent", vm.UsedPercent),
			slog.Uint64("system_available_mb", vm.Available/1024/1024),
		)
	}
	slog.Debug("memory after session teardown", attrs...)
}
