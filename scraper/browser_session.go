package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-shops/config"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserSession renders pages in a dedicated Chromium process driven by rod.
type BrowserSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	stealth  bool
	timeout  time.Duration
	wait     time.Duration
}

// NewBrowserSession launches a browser and connects to it.
func NewBrowserSession(ctx context.Context, cfg *config.Config) (*BrowserSession, error) {
	l := launcher.New().Context(ctx).Headless(cfg.Headless)
	if cfg.DisableImages {
		l = l.Set("blink-settings", "imagesEnabled=false")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	return &BrowserSession{
		launcher: l,
		browser:  browser,
		stealth:  cfg.Stealth,
		timeout:  cfg.Timeout,
		wait:     cfg.WaitTimeout,
	}, nil
}

// Fetch navigates a new tab to rawURL, waits for waitSelector and
// snapshots the rendered DOM.
func (s *BrowserSession) Fetch(ctx context.Context, rawURL, waitSelector string) (*goquery.Document, error) {
	page, err := s.newPage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Debug("close page", slog.String("url", rawURL), slog.Any("error", err))
		}
	}()

	if err := page.Timeout(s.timeout).Navigate(rawURL); err != nil {
		return nil, classifyError(fmt.Errorf("navigate %s: %w", rawURL, err), 0)
	}
	if err := page.Timeout(s.timeout).WaitLoad(); err != nil {
		return nil, classifyError(fmt.Errorf("load %s: %w", rawURL, err), 0)
	}

	if waitSelector != "" && s.wait > 0 {
		el, err := page.Timeout(s.wait).Element(waitSelector)
		if err != nil {
			slog.Debug("wait selector absent", slog.String("url", rawURL), slog.String("selector", waitSelector))
		} else if err := el.ScrollIntoView(); err != nil {
			slog.Debug("scroll into view", slog.String("url", rawURL), slog.Any("error", err))
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, classifyError(fmt.Errorf("snapshot %s: %w", rawURL, err), 0)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

func (s *BrowserSession) newPage(ctx context.Context) (*rod.Page, error) {
	if s.stealth {
		page, err := stealth.Page(s.browser)
		if err != nil {
			return nil, fmt.Errorf("open stealth page: %w", err)
		}
		return page.Context(ctx), nil
	}
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return page.Context(ctx), nil
}

// Close shuts the browser down and removes its profile directory.
func (s *BrowserSession) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
