package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Selection modes for the scraper.
const (
	ModeSector  = "sector"
	ModeTargets = "targets"
)

// DefaultTargetCodes are the companies that failed in the last sector run.
var DefaultTargetCodes = []string{
	"BM1", "VTM", "AJX", "AA2", "AR1", "DMM", "EV8", "LLL", "MNS", "MC2",
	"MQR", "ORE", "OZZ", "STA", "TGH", "TI1", "XTC",
}

// Config holds scraper configuration.
type Config struct {
	Mode                 string        `mapstructure:"mode"`
	ListingURL           string        `mapstructure:"listing_url"`
	ListingTimeout       time.Duration `mapstructure:"listing_timeout"`
	StatsURLTemplate     string        `mapstructure:"stats_url_template"`
	SymbolSuffix         string        `mapstructure:"symbol_suffix"`
	Sector               string        `mapstructure:"sector"`
	TargetCodes          []string      `mapstructure:"target_codes"`
	MaxRequestsPerMinute int           `mapstructure:"max_requests_per_minute"`
	RateWindow           time.Duration `mapstructure:"rate_window"`
	RateMargin           time.Duration `mapstructure:"rate_margin"`
	Delay                time.Duration `mapstructure:"delay"`
	RandomDelay          time.Duration `mapstructure:"random_delay"`
	Timeout              time.Duration `mapstructure:"timeout"`
	DedupeMaxSize        int           `mapstructure:"dedupe_max_size"`
	OutputDir            string        `mapstructure:"output_dir"`
	TempDir              string        `mapstructure:"temp_dir"`
	DBPath               string        `mapstructure:"db_path"`
	UserAgent            string        `mapstructure:"user_agent"`
	MetricsAddr          string        `mapstructure:"metrics_addr"`
	Verbose              bool          `mapstructure:"verbose"`
}

// DefaultConfig returns the settings used against the live ASX and Yahoo Finance endpoints.
func DefaultConfig() *Config {
	return &Config{
		Mode:                 ModeSector,
		ListingURL:           "https://www.asx.com.au/asx/research/ASXListedCompanies.csv",
		ListingTimeout:       30 * time.Second,
		StatsURLTemplate:     "https://finance.yahoo.com/quote/%s/key-statistics",
		SymbolSuffix:         ".AX",
		Sector:               "materials",
		TargetCodes:          append([]string(nil), DefaultTargetCodes...),
		MaxRequestsPerMinute: 20,
		RateWindow:           time.Minute,
		RateMargin:           time.Second,
		Delay:                2 * time.Second,
		RandomDelay:          3 * time.Second,
		Timeout:              15 * time.Second,
		DedupeMaxSize:        4096,
		OutputDir:            ".",
		TempDir:              "",
		DBPath:               "",
		UserAgent:            "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		MetricsAddr:          "",
		Verbose:              false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Mode != ModeSector && c.Mode != ModeTargets {
		return fmt.Errorf("mode must be %s or %s", ModeSector, ModeTargets)
	}
	if err := validateURL("listing URL", c.ListingURL); err != nil {
		return err
	}
	if c.ListingTimeout <= 0 {
		return fmt.Errorf("listing timeout must be positive")
	}
	if strings.Count(c.StatsURLTemplate, "%s") != 1 {
		return fmt.Errorf("stats URL template must contain exactly one %%s")
	}
	if err := validateURL("stats URL template", fmt.Sprintf(c.StatsURLTemplate, "X")); err != nil {
		return err
	}
	if c.Mode == ModeSector && strings.TrimSpace(c.Sector) == "" {
		return fmt.Errorf("sector cannot be empty in %s mode", ModeSector)
	}
	if c.Mode == ModeTargets && len(c.TargetCodes) == 0 {
		return fmt.Errorf("target codes cannot be empty in %s mode", ModeTargets)
	}
	if c.MaxRequestsPerMinute <= 0 {
		return fmt.Errorf("max requests per minute must be positive")
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("rate window must be positive")
	}
	if c.RateMargin < 0 {
		return fmt.Errorf("rate margin cannot be negative")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}

// FilePrefix names the output files after the selection, e.g. "asx_materials".
func (c *Config) FilePrefix() string {
	if c.Mode == ModeTargets {
		return "asx_target"
	}
	sector := strings.ToLower(strings.TrimSpace(c.Sector))
	return "asx_" + strings.ReplaceAll(sector, " ", "_")
}

// ProgressFile is the checkpoint rewritten after every company.
func (c *Config) ProgressFile() string {
	return filepath.Join(c.OutputDir, c.FilePrefix()+"_data_progress.json")
}

// ResultsJSONFile is the final structured output.
func (c *Config) ResultsJSONFile() string {
	return filepath.Join(c.OutputDir, c.FilePrefix()+"_companies_data.json")
}

// ResultsCSVFile is the final flattened output.
func (c *Config) ResultsCSVFile() string {
	return filepath.Join(c.OutputDir, c.FilePrefix()+"_companies_data.csv")
}

// StatsURL builds the statistics page URL for a symbol.
func (c *Config) StatsURL(symbol string) string {
	return fmt.Sprintf(c.StatsURLTemplate, url.PathEscape(symbol))
}

// Symbol converts an exchange code to the quote symbol.
func (c *Config) Symbol(code string) string {
	return code + c.SymbolSuffix
}

// DownloaderConfig holds settings for the announcement PDF downloader.
type DownloaderConfig struct {
	DebuggerAddress string        `mapstructure:"debugger_address"`
	TabURLContains  string        `mapstructure:"tab_url_contains"`
	ResultsSelector string        `mapstructure:"results_selector"`
	DownloadDir     string        `mapstructure:"download_dir"`
	OutputFile      string        `mapstructure:"output_file"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	Delay           time.Duration `mapstructure:"delay"`
	RandomDelay     time.Duration `mapstructure:"random_delay"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	Verbose         bool          `mapstructure:"verbose"`
}

// DefaultDownloaderConfig returns settings for a Chrome started with --remote-debugging-port=9222.
func DefaultDownloaderConfig() *DownloaderConfig {
	return &DownloaderConfig{
		DebuggerAddress: "127.0.0.1:9222",
		TabURLContains:  "morningstar.com.au",
		ResultsSelector: "#search_results",
		DownloadDir:     "pdf_downloads",
		OutputFile:      "announcements.csv",
		PollInterval:    time.Second,
		DownloadTimeout: 30 * time.Second,
		Delay:           time.Second,
		RandomDelay:     2 * time.Second,
		MetricsAddr:     "",
		Verbose:         false,
	}
}

// Validate ensures all downloader values are coherent.
func (c *DownloaderConfig) Validate() error {
	if c.DebuggerAddress == "" {
		return fmt.Errorf("debugger address cannot be empty")
	}
	if c.ResultsSelector == "" {
		return fmt.Errorf("results selector cannot be empty")
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("download dir cannot be empty")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.DownloadTimeout < c.PollInterval {
		return fmt.Errorf("download timeout (%s) cannot be shorter than poll interval (%s)", c.DownloadTimeout, c.PollInterval)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	return nil
}

// DebuggerURL is the HTTP endpoint chromedp resolves to the browser websocket.
func (c *DownloaderConfig) DebuggerURL() string {
	if strings.Contains(c.DebuggerAddress, "://") {
		return c.DebuggerAddress
	}
	return "http://" + c.DebuggerAddress
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
