package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-shops/config"
	"github.com/aluiziolira/go-scrape-shops/models"
	"github.com/aluiziolira/go-scrape-shops/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(items []*models.Item) error
	Close() error
	Validate() error
}

// Pipeline validates items and flushes fixed-size batches to the writer.
// Items are not deduplicated: the same product listed under two categories
// is two rows. It is driven by a single goroutine; the mutex only
// protects the counters read by metric reporting.
type Pipeline struct {
	writer        OutputWriter
	flushInterval int
	batch         []*models.Item

	metrics metrics

	closed bool
	err    error

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline that flushes every cfg.FlushInterval items.
func NewPipeline(writer OutputWriter, cfg *config.Config) *Pipeline {
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 1
	}
	return &Pipeline{
		writer:        writer,
		flushInterval: flushInterval,
		batch:         make([]*models.Item, 0, flushInterval),
		metrics:       newMetrics(),
		shutdown:      make(chan struct{}),
	}
}

// Process appends items to the in-memory batch, flushing whenever it fills.
func (p *Pipeline) Process(items ...*models.Item) error {
	if p.closed {
		return ErrPipelineClosed
	}
	if p.err != nil {
		return p.err
	}

	for _, item := range items {
		prepared := p.prepare(item)
		if prepared == nil {
			continue
		}
		p.batch = append(p.batch, prepared)
		p.metrics.setPending(len(p.batch))
		if len(p.batch) >= p.flushInterval {
			if err := p.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush appends the pending batch to the writer and clears it.
func (p *Pipeline) Flush() error {
	if len(p.batch) == 0 {
		return nil
	}
	size := len(p.batch)
	if err := p.writer.Write(p.batch); err != nil {
		p.err = fmt.Errorf("write batch: %w", err)
		return p.err
	}
	clear(p.batch)
	p.batch = p.batch[:0]
	p.metrics.recordFlush(size)
	slog.Debug("batch flushed", slog.Int("items", size), slog.Int("flushes", p.Flushes()))
	return nil
}

// Pending returns the number of items not yet written.
func (p *Pipeline) Pending() int {
	return len(p.batch)
}

// Accepted returns the number of items that passed validation.
func (p *Pipeline) Accepted() int {
	return int(p.metrics.processedCount())
}

// Flushes returns the number of batches written so far.
func (p *Pipeline) Flushes() int {
	return p.metrics.flushCount()
}

// Close writes the residual batch and prevents more submissions.
func (p *Pipeline) Close() error {
	if p.closed {
		return p.err
	}
	p.closed = true
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
	if p.err != nil {
		return p.err
	}
	return p.Flush()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Int64("processed", metrics["processed_items"].(int64)),
					slog.Int("flushes", metrics["flushes"].(int)),
					slog.Int("pending", metrics["pending"].(int)),
					slog.Int("validation_errors", len(metrics["validation_errors"].(map[string]int))),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) prepare(item *models.Item) *models.Item {
	if err := parser.ValidateItem(item); err != nil {
		p.metrics.addValidation("invalid_record")
		slog.Warn("dropping invalid item", slog.Any("error", err))
		return nil
	}

	p.metrics.incrementProcessed()
	return item
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	flushes    int
	written    int64
	pending    int
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) setPending(n int) {
	m.mu.Lock()
	m.pending = n
	m.mu.Unlock()
}

func (m *metrics) recordFlush(size int) {
	m.mu.Lock()
	m.flushes++
	m.written += int64(size)
	m.pending = 0
	m.mu.Unlock()
}

func (m *metrics) flushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

func (m *metrics) processedCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_items":   m.processed,
		"written_items":     m.written,
		"flushes":           m.flushes,
		"pending":           m.pending,
		"validation_errors": copyValidation,
	}
}
