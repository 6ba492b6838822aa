package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-shops/config"
	"github.com/gocolly/colly/v2"
)

// HTTPSession fetches server-rendered pages with a colly collector.
// The wait selector is ignored: the body is complete once it arrives.
type HTTPSession struct {
	collector *colly.Collector
}

// NewHTTPSession builds a session restricted to the configured host.
func NewHTTPSession(cfg *config.Config) (*HTTPSession, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &HTTPSession{collector: collector}, nil
}

// WithTransport swaps the round tripper, mostly for tests.
func (s *HTTPSession) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

// Fetch issues a GET for rawURL and parses the response body.
func (s *HTTPSession) Fetch(ctx context.Context, rawURL, _ string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		doc      *goquery.Document
		parseErr error
		status   int
	)
	c := s.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		doc, parseErr = goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, classifyError(fmt.Errorf("fetch %s: %w", rawURL, err), status)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, parseErr)
	}
	if doc == nil {
		return nil, classifyError(fmt.Errorf("fetch %s: no response", rawURL), status)
	}
	return doc, nil
}

// Close is a no-op; idle connections are reclaimed with the collector.
func (s *HTTPSession) Close() error {
	return nil
}
