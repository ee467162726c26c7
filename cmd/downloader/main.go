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

	"github.com/aluiziolira/asx-scraper/browser"
	"github.com/aluiziolira/asx-scraper/config"
	"github.com/aluiziolira/asx-scraper/models"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	debugger := flag.String("debugger", "", "Chrome remote debugging address (host:port)")
	downloadDir := flag.String("download-dir", "", "Directory Chrome saves PDFs into")
	output := flag.String("output", "", "CSV file for row metadata")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9091)")

	flag.Parse()

	cfg, err := config.LoadDownloader(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debugger":
			cfg.DebuggerAddress = *debugger
		case "download-dir":
			cfg.DownloadDir = *downloadDir
		case "output":
			cfg.OutputFile = *output
		case "v":
			cfg.Verbose = *verbose
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		}
	})

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("download run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.DownloaderConfig) error {
	slog.Info("attaching to browser", slog.String("debugger", cfg.DebuggerURL()))
	session, err := browser.Attach(ctx, cfg)
	if err != nil {
		return err
	}

	driver := browser.NewDriver(cfg, session)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(driver.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	startTime := time.Now()
	records, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	if err := browser.WriteRecordsCSV(cfg.OutputFile, records); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	slog.Info("records written", slog.String("file", cfg.OutputFile), slog.Int("records", len(records)))

	printSummary(records, time.Since(startTime), cfg)
	return nil
}

func printSummary(records []models.DownloadRecord, duration time.Duration, cfg *config.DownloaderConfig) {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Status]++
	}

	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Download run complete")
	fmt.Printf("  Row pairs:     %d\n", len(records))
	fmt.Printf("  Downloaded:    %d\n", counts[models.DownloadCompleted])
	fmt.Printf("  Timed out:     %d\n", counts[models.DownloadTimedOut])
	fmt.Printf("  Click failed:  %d\n", counts[models.DownloadClickError])
	fmt.Printf("  No link:       %d\n", counts[models.DownloadNoLink])
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Second))
	fmt.Printf("  Download dir:  %s\n", cfg.DownloadDir)
	fmt.Printf("  Output file:   %s\n", cfg.OutputFile)
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
