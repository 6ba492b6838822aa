package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-shops/config"
	"github.com/aluiziolira/go-scrape-shops/models"
	"github.com/aluiziolira/go-scrape-shops/pipeline"
	"github.com/aluiziolira/go-scrape-shops/preprocess"
	"github.com/aluiziolira/go-scrape-shops/scraper"
	"github.com/aluiziolira/go-scrape-shops/sites"
	"github.com/aluiziolira/go-scrape-shops/translator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

type options struct {
	task            string
	configPath      string
	site            string
	baseURL         string
	fetcher         string
	maxPages        int
	flushInterval   int
	recycleInterval int
	categoryDepth   int
	categories      string
	brands          string
	interactive     bool
	outputFile      string
	outputFormat    string
	preprocessed    string
	metricsAddr     string
	logFile         string
	verbose         bool
}

func main() {
	defaults := config.DefaultConfig()
	var opts options
	flag.StringVar(&opts.task, "task", "scrape", "Task to run: scrape, preprocess, or all")
	flag.StringVar(&opts.configPath, "config", "", "YAML config file overlaid on the defaults")
	flag.StringVar(&opts.site, "site", defaults.Site, "Shop to crawl: galaxus or interdiscount")
	flag.StringVar(&opts.baseURL, "base-url", defaults.BaseURL, "Shop base URL")
	flag.StringVar(&opts.fetcher, "fetcher", defaults.Fetcher, "Page fetcher: http or browser")
	flag.IntVar(&opts.maxPages, "pages", defaults.MaxPages, "Maximum listing pages per category")
	flag.IntVar(&opts.flushInterval, "flush-interval", defaults.FlushInterval, "Items per persisted batch")
	flag.IntVar(&opts.recycleInterval, "recycle-interval", defaults.RecycleInterval, "Items between fetch session restarts")
	flag.IntVar(&opts.categoryDepth, "category-depth", defaults.CategoryDepth, "Subcategory levels to expand (0-2)")
	flag.StringVar(&opts.categories, "categories", "", "Comma-separated category names to crawl (default all)")
	flag.StringVar(&opts.brands, "brands", "", "Comma-separated brand names to filter by")
	flag.BoolVar(&opts.interactive, "interactive", false, "Prompt for categories (and brands with select_brands)")
	flag.StringVar(&opts.outputFile, "output", defaults.OutputFile, "Output file path")
	flag.StringVar(&opts.outputFormat, "format", defaults.OutputFormat, "Output format: csv, json, dual, or sqlite")
	flag.StringVar(&opts.preprocessed, "preprocessed", defaults.Preprocessed, "Preprocessed output file path")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flag.StringVar(&opts.logFile, "log-file", defaults.LogFile, "Also write logs to this rotating file")
	flag.BoolVar(&opts.verbose, "v", false, "Enable verbose logging")
	flag.Parse()

	cfg, err := buildConfig(opts, explicitFlags())
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}

	logger, level, closeLog := newLogger(cfg.Verbose, cfg.LogFile)
	defer closeLog()
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current item")
	}()

	if err := run(ctx, opts.task, cfg); err != nil {
		slog.Error("task failed", slog.String("task", opts.task), slog.Any("error", err))
		closeLog()
		os.Exit(1)
	}
}

func run(ctx context.Context, task string, cfg *config.Config) error {
	switch task {
	case "scrape":
		return runScrape(ctx, cfg)
	case "preprocess":
		return runPreprocess(ctx, cfg)
	case "all":
		if err := runScrape(ctx, cfg); err != nil {
			return err
		}
		return runPreprocess(ctx, cfg)
	default:
		return fmt.Errorf("unknown task %q", task)
	}
}

func explicitFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// buildConfig layers defaults, the config file, the environment and the
// flags given on the command line, in that order.
func buildConfig(opts options, set map[string]bool) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.LoadFile(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if set["site"] {
		cfg.Site = opts.site
	}
	if set["base-url"] {
		cfg.BaseURL = opts.baseURL
	}
	if set["fetcher"] {
		cfg.Fetcher = opts.fetcher
	}
	if set["pages"] {
		cfg.MaxPages = opts.maxPages
	}
	if set["flush-interval"] {
		cfg.FlushInterval = opts.flushInterval
	}
	if set["recycle-interval"] {
		cfg.RecycleInterval = opts.recycleInterval
	}
	if set["category-depth"] {
		cfg.CategoryDepth = opts.categoryDepth
	}
	if set["categories"] {
		cfg.Categories = splitList(opts.categories)
	}
	if set["brands"] {
		cfg.Brands = splitList(opts.brands)
	}
	if set["interactive"] {
		cfg.Interactive = opts.interactive
	}
	if set["output"] {
		cfg.OutputFile = opts.outputFile
	}
	if set["format"] {
		cfg.OutputFormat = strings.ToLower(opts.outputFormat)
	}
	if set["preprocessed"] {
		cfg.Preprocessed = opts.preprocessed
	}
	if set["metrics-addr"] {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if set["log-file"] {
		cfg.LogFile = opts.logFile
	}
	if set["v"] {
		cfg.Verbose = opts.verbose
	}
	cfg.Site = strings.ToLower(strings.TrimSpace(cfg.Site))
	cfg.ApplySiteDefaults()
	return cfg, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runScrape(ctx context.Context, cfg *config.Config) error {
	site, err := sites.New(cfg.Site, cfg.BaseURL)
	if err != nil {
		return err
	}

	slog.Info("starting crawl",
		slog.String("site", site.Name()),
		slog.String("base_url", cfg.BaseURL),
		slog.String("fetcher", cfg.Fetcher),
		slog.Int("pages", cfg.MaxPages),
		slog.Int("flush_interval", cfg.FlushInterval),
		slog.Int("recycle_interval", cfg.RecycleInterval),
	)

	metrics := scraper.NewMetrics()
	stopMetrics := serveMetrics(cfg.MetricsAddr, metrics)
	defer stopMetrics()

	factory, err := scraper.NewSessionFactory(cfg)
	if err != nil {
		return err
	}
	sessions, err := scraper.OpenSessions(ctx, factory, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			slog.Error("close session", slog.Any("error", err))
		}
	}()

	writer, err := createWriter(cfg)
	if err != nil {
		return fmt.Errorf("create writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	p := pipeline.NewPipeline(writer, cfg)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	crawler := scraper.NewCrawler(cfg, site, sessions, metrics)
	if cfg.Interactive {
		prompt := scraper.NewPromptSelector(os.Stdin, os.Stdout)
		crawler.Categories = prompt
		if cfg.SelectBrands {
			crawler.Brands = prompt
		}
	}

	var bar *progressbar.ProgressBar
	if !cfg.Verbose && isTerminal(os.Stderr) {
		bar = newProgressBar("crawling " + site.Name())
		crawler.OnItem = func() { _ = bar.Add(1) }
	}

	result, runErr := crawler.Run(ctx, p)
	closeErr := p.Close()
	result.Flushes = p.Flushes()
	if bar != nil {
		_ = bar.Finish()
	}
	if runErr != nil || closeErr != nil {
		printSummary(os.Stdout, result, cfg.OutputFile, p.GetMetrics())
		return errors.Join(runErr, closeErr)
	}

	if result.ItemCount > 0 {
		if err := writer.Validate(); err != nil {
			return fmt.Errorf("output validation: %w", err)
		}
	}
	printSummary(os.Stdout, result, cfg.OutputFile, p.GetMetrics())
	return nil
}

func runPreprocess(ctx context.Context, cfg *config.Config) error {
	if cfg.OutputFormat != "csv" && cfg.OutputFormat != "dual" {
		return fmt.Errorf("preprocessing reads the csv dataset, format is %s", cfg.OutputFormat)
	}
	tr, err := translator.New(cfg.Translator)
	if err != nil {
		return err
	}
	if _, ok := tr.(translator.Identity); ok {
		slog.Warn("no translator configured, text is cleaned but not translated")
	}

	slog.Info("starting preprocessing",
		slog.String("input", cfg.OutputFile),
		slog.String("output", cfg.Preprocessed),
	)
	stats, err := preprocess.New(tr, cfg.DelimiterRune(), cfg.Site).Process(ctx, cfg.OutputFile, cfg.Preprocessed)
	if err != nil {
		return err
	}
	slog.Info("preprocessing complete",
		slog.Int("rows", stats.Rows),
		slog.Int("brands_guessed", stats.BrandsGuessed),
		slog.Int("translation_failures", stats.TranslationFailures),
		slog.Duration("duration", stats.Duration),
	)
	return nil
}

func createWriter(cfg *config.Config) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case "json":
		return pipeline.NewJSONWriter(cfg.OutputFile)
	case "csv":
		return pipeline.NewCSVWriter(cfg.OutputFile, cfg.DelimiterRune())
	case "dual":
		jsonFilename := strings.TrimSuffix(cfg.OutputFile, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(cfg.OutputFile, jsonFilename, cfg.DelimiterRune())
	case "sqlite":
		return pipeline.NewSQLiteWriter(cfg.OutputFile)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

func serveMetrics(addr string, metrics *scraper.Metrics) func() {
	if addr == "" {
		return func() {}
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func printSummary(w io.Writer, result *models.CrawlResult, outputFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Crawl complete")

	duration := result.EndTime.Sub(result.StartTime)
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(result.ItemCount) / duration.Seconds()
	}

	fmt.Fprintf(w, "  Categories:    %d\n", result.Categories)
	fmt.Fprintf(w, "  Pages:         %d\n", result.PageCount)
	fmt.Fprintf(w, "  Item refs:     %d\n", result.RefCount)
	fmt.Fprintf(w, "  Items:         %d\n", result.ItemCount)
	fmt.Fprintf(w, "  Skipped:       %d\n", result.SkippedCount)
	fmt.Fprintf(w, "  Duplicates:    %d\n", result.Duplicates)
	fmt.Fprintf(w, "  Batches:       %d\n", result.Flushes)
	fmt.Fprintf(w, "  Recycles:      %d\n", result.Recycles)
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Fprintf(w, "  Validation:    %v\n", valErrors)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Items/sec:     %.2f\n", itemsPerSec)
	fmt.Fprintf(w, "  Output file:   %s\n", outputFile)
	fmt.Fprintln(w, separator)
}

func newProgressBar(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func newLogger(verbose bool, logFile string) (*slog.Logger, *slog.LevelVar, func()) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	closeFn := func() {}
	switch {
	case logFile != "":
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		}
		closeFn = func() { _ = rotating.Close() }
		handler = slog.NewJSONHandler(io.MultiWriter(os.Stdout, rotating), opts)
	case isTerminal(os.Stdout):
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level, closeFn
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
