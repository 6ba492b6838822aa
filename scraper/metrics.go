package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawl.
type Metrics struct {
	Registry             *prometheus.Registry
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      prometheus.Histogram
	PagesTotal           prometheus.Counter
	ItemsExtractedTotal  prometheus.Counter
	ItemsSkippedTotal    *prometheus.CounterVec
	DuplicateRefsTotal   prometheus.Counter
	FlushesTotal         prometheus.Counter
	SessionRecyclesTotal prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total page fetches issued by the crawler.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "Page fetch latency, including waiting for rendered content.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_listing_pages_total",
			Help: "Total listing pages walked.",
		},
	)
	extracted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_extracted_total",
			Help: "Total items extracted and sent to the pipeline.",
		},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_skipped_total",
			Help: "Total items skipped because a mandatory field was unreadable.",
		},
		[]string{"field"},
	)
	duplicates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_duplicate_refs_total",
			Help: "Item references seen twice within one category walk.",
		},
	)
	flushes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_batch_flushes_total",
			Help: "Total batches appended to the output.",
		},
	)
	recycles := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_session_recycles_total",
			Help: "Total fetch sessions torn down and recreated.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total scraper errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, pages, extracted, skipped, duplicates, flushes, recycles, errorsTotal)

	return &Metrics{
		Registry:             registry,
		RequestsTotal:        requests,
		RequestDuration:      requestDuration,
		PagesTotal:           pages,
		ItemsExtractedTotal:  extracted,
		ItemsSkippedTotal:    skipped,
		DuplicateRefsTotal:   duplicates,
		FlushesTotal:         flushes,
		SessionRecyclesTotal: recycles,
		ErrorsTotal:          errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a fetch duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPage increments the listing pages counter.
func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncItems increments the extracted items counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsExtractedTotal.Inc()
}

// IncSkipped increments the skipped items counter for a field label.
func (m *Metrics) IncSkipped(field string) {
	if m == nil {
		return
	}
	m.ItemsSkippedTotal.WithLabelValues(field).Inc()
}

// IncDuplicate increments the duplicate refs counter.
func (m *Metrics) IncDuplicate() {
	if m == nil {
		return
	}
	m.DuplicateRefsTotal.Inc()
}

// IncFlush increments the batch flush counter.
func (m *Metrics) IncFlush() {
	if m == nil {
		return
	}
	m.FlushesTotal.Inc()
}

// IncRecycle increments the session recycle counter.
func (m *Metrics) IncRecycle() {
	if m == nil {
		return
	}
	m.SessionRecyclesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
