package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/asx-scraper/config"
	"github.com/aluiziolira/asx-scraper/listing"
	"github.com/aluiziolira/asx-scraper/models"
	"github.com/aluiziolira/asx-scraper/parser"
	"github.com/aluiziolira/asx-scraper/pipeline"
	"github.com/aluiziolira/asx-scraper/scraper"
	"github.com/aluiziolira/asx-scraper/store"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// sampleMetrics are printed for the first result in the summary.
var sampleMetrics = []string{parser.SharesOutstanding, "Market Cap", "Revenue"}

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	mode := flag.String("mode", "", "Selection mode: sector or targets")
	sector := flag.String("sector", "", "GICS industry group to select in sector mode")
	outputDir := flag.String("output-dir", "", "Directory for progress and result files")
	dbPath := flag.String("db", "", "Optional SQLite database mirroring every result")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *mode, *sector, *outputDir, *dbPath, *verbose, *metricsAddr)

	logger, level := newLogger(cfg.Verbose)
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
		slog.Info("shutdown signal received, finishing current company")
	}()

	if err := run(ctx, cfg); err != nil {
		slog.Error("scrape failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// applyFlags overrides file and environment settings with explicitly set flags.
func applyFlags(cfg *config.Config, mode, sector, outputDir, dbPath string, verbose bool, metricsAddr string) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = mode
		case "sector":
			cfg.Sector = sector
		case "output-dir":
			cfg.OutputDir = outputDir
		case "db":
			cfg.DBPath = dbPath
		case "v":
			cfg.Verbose = verbose
		case "metrics-addr":
			cfg.MetricsAddr = metricsAddr
		}
	})
}

func run(ctx context.Context, cfg *config.Config) error {
	companies, err := listing.NewFetcher(cfg).Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch listing: %w", err)
	}

	selected := selectCompanies(cfg, companies)
	if len(selected) == 0 {
		slog.Warn("no companies selected, nothing to scrape",
			slog.String("mode", cfg.Mode),
			slog.Int("listed", len(companies)),
		)
		return nil
	}
	printSelection(selected)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialise scraper: %w", err)
	}

	checkpoint, err := pipeline.NewJSONWriter(cfg.ProgressFile())
	if err != nil {
		return fmt.Errorf("create progress writer: %w", err)
	}
	defer checkpoint.Close()

	runner, err := pipeline.NewRunner(s, checkpoint, cfg.DedupeMaxSize)
	if err != nil {
		return err
	}
	if cfg.DBPath != "" {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				slog.Error("close database", slog.Any("error", err))
			}
		}()
		runner.WithSink(db)
		slog.Info("mirroring results to sqlite", slog.String("path", cfg.DBPath))
	}

	metricsServer := startMetricsServer(cfg.MetricsAddr, s.Metrics)
	defer shutdownMetricsServer(metricsServer)

	slog.Info("starting scrape",
		slog.String("mode", cfg.Mode),
		slog.Int("companies", len(selected)),
		slog.Int("max_requests_per_minute", cfg.MaxRequestsPerMinute),
	)

	startTime := time.Now()
	result, results := runner.Run(ctx, selected)
	duration := time.Since(startTime)

	if len(results) > 0 {
		writer, err := pipeline.NewDualWriter(cfg.ResultsCSVFile(), cfg.ResultsJSONFile())
		if err != nil {
			return fmt.Errorf("create result writer: %w", err)
		}
		if err := writer.Write(results); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
		if err := writer.Validate(); err != nil {
			return fmt.Errorf("output validation failed: %w", err)
		}
		slog.Info("results written",
			slog.String("csv", cfg.ResultsCSVFile()),
			slog.String("json", cfg.ResultsJSONFile()),
		)
	} else {
		slog.Warn("no results collected, skipping final output")
	}

	printSummary(cfg, result, results, duration, s.ErrorsByType(), runner.GetMetrics())
	return nil
}

func selectCompanies(cfg *config.Config, companies []models.Company) []models.Company {
	if cfg.Mode == config.ModeTargets {
		return listing.FilterCodes(companies, cfg.TargetCodes)
	}
	return listing.FilterSector(companies, cfg.Sector)
}

func printSelection(companies []models.Company) {
	fmt.Printf("Selected %d companies:\n", len(companies))
	for _, c := range companies {
		fmt.Printf("  %-6s %s\n", c.Code, c.Name)
	}
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
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
	return server
}

func shutdownMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func printSummary(cfg *config.Config, result *models.RunResult, results []models.ScrapeResult, duration time.Duration, errorsByType map[string]int, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	if result.Cancelled {
		fmt.Println("Scrape cancelled")
	} else {
		fmt.Println("Scrape complete")
	}

	fmt.Printf("  Run ID:        %s\n", result.RunID)
	fmt.Printf("  Selected:      %d\n", result.Total)
	fmt.Printf("  Scraped:       %d\n", result.Scraped)
	fmt.Printf("  Empty:         %d\n", result.Empty)
	fmt.Printf("  Skipped:       %d\n", result.Skipped)
	fmt.Printf("  Success rate:  %.2f%%\n", result.SuccessRate())
	if len(errorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", errorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Second))

	if len(results) > 0 {
		sample := results[0]
		fmt.Printf("  Sample:        %s (%s), %d metrics\n", sample.ASXCode, sample.CompanyName, sample.Statistics.Len())
		for _, key := range sampleMetrics {
			if value, ok := sample.Statistics.Get(key); ok {
				fmt.Printf("    %-20s %s\n", key+":", value)
			}
		}
		fmt.Printf("  Output files:  %s, %s\n", cfg.ResultsCSVFile(), cfg.ResultsJSONFile())
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
