package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds scraper configuration.
type Config struct {
	Site    string `yaml:"site"`
	BaseURL string `yaml:"base_url"`

	// Fetcher selects the session kind: http (colly) or browser (rod).
	Fetcher       string        `yaml:"fetcher"`
	Headless      bool          `yaml:"headless"`
	DisableImages bool          `yaml:"disable_images"`
	Stealth       bool          `yaml:"stealth"`
	Timeout       time.Duration `yaml:"timeout"`
	WaitTimeout   time.Duration `yaml:"wait_timeout"`
	UserAgent     string        `yaml:"user_agent"`

	MaxPages        int `yaml:"max_pages"`
	FlushInterval   int `yaml:"flush_interval"`
	RecycleInterval int `yaml:"recycle_interval"`
	CategoryDepth   int `yaml:"category_depth"`
	DedupeMaxSize   int `yaml:"dedupe_max_size"`

	Categories   []string `yaml:"categories"`
	Brands       []string `yaml:"brands"`
	SelectBrands bool     `yaml:"select_brands"`
	Interactive  bool     `yaml:"interactive"`

	OutputFile   string `yaml:"output_file"`
	OutputFormat string `yaml:"output_format"` // csv, json, dual or sqlite
	Delimiter    string `yaml:"delimiter"`

	Translator   TranslatorConfig `yaml:"translator"`
	Preprocessed string           `yaml:"preprocessed_file"`

	Verbose     bool   `yaml:"verbose"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogFile     string `yaml:"log_file"`
}

// TranslatorConfig configures the OpenAI-compatible translation endpoint used by preprocessing.
type TranslatorConfig struct {
	APIURL     string `yaml:"api_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`
	MaxChars   int    `yaml:"max_chars"`
	CacheSize  int    `yaml:"cache_size"`
}

// SiteBaseURLs maps each supported shop to its home.
var SiteBaseURLs = map[string]string{
	"galaxus":       "https://www.galaxus.ch",
	"interdiscount": "https://www.interdiscount.ch",
}

// DefaultConfig returns the defaults the Galaxus crawl settled on.
func DefaultConfig() *Config {
	return &Config{
		Site:            "galaxus",
		BaseURL:         SiteBaseURLs["galaxus"],
		Fetcher:         "http",
		Headless:        true,
		DisableImages:   true,
		Timeout:         30 * time.Second,
		WaitTimeout:     3 * time.Second,
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		MaxPages:        40,
		FlushInterval:   200,
		RecycleInterval: 300,
		CategoryDepth:   0,
		DedupeMaxSize:   100000,
		OutputFile:      "data/raw.csv",
		OutputFormat:    "csv",
		Delimiter:       "|",
		Translator: TranslatorConfig{
			SourceLang: "de",
			TargetLang: "en",
			MaxChars:   5000,
			CacheSize:  4096,
		},
		Preprocessed: "data/preprocessed.csv",
	}
}

// LoadFile overlays the YAML file at path onto the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplySiteDefaults points an empty base URL, or one left at another shop's
// home, at the home of c.Site. Call it once every layer has been applied.
func (c *Config) ApplySiteDefaults() {
	home, ok := SiteBaseURLs[c.Site]
	if !ok {
		return
	}
	if c.BaseURL == "" {
		c.BaseURL = home
		return
	}
	for _, other := range SiteBaseURLs {
		if c.BaseURL == other {
			c.BaseURL = home
			return
		}
	}
}

// DelimiterRune returns the output delimiter as a rune.
func (c *Config) DelimiterRune() rune {
	for _, r := range c.Delimiter {
		return r
	}
	return '|'
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Site != "galaxus" && c.Site != "interdiscount" {
		return fmt.Errorf("site must be galaxus or interdiscount")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	for site, home := range SiteBaseURLs {
		if site == c.Site {
			continue
		}
		if other, _ := url.Parse(home); other != nil && strings.EqualFold(other.Host, parsedURL.Host) {
			return fmt.Errorf("base URL %s belongs to %s, not %s", c.BaseURL, site, c.Site)
		}
	}

	if c.Fetcher != "http" && c.Fetcher != "browser" {
		return fmt.Errorf("fetcher must be http or browser")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.WaitTimeout < 0 {
		return fmt.Errorf("wait timeout cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive")
	}
	if c.RecycleInterval <= 0 {
		return fmt.Errorf("recycle interval must be positive")
	}
	if c.CategoryDepth < 0 || c.CategoryDepth > 2 {
		return fmt.Errorf("category depth must be between 0 and 2")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.OutputFormat {
	case "csv", "json", "dual", "sqlite":
	default:
		return fmt.Errorf("output format must be csv, json, dual, or sqlite")
	}
	if len([]rune(c.Delimiter)) != 1 {
		return fmt.Errorf("delimiter must be a single character")
	}
	if c.Translator.MaxChars <= 0 {
		return fmt.Errorf("translator max chars must be positive")
	}

	return nil
}
