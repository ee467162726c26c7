package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. ASX_MAX_REQUESTS_PER_MINUTE.
const EnvPrefix = "ASX"

// Load layers an optional YAML file and ASX_* environment variables over DefaultConfig.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v, err := newViper(path, map[string]any{
		"mode":                    cfg.Mode,
		"listing_url":             cfg.ListingURL,
		"listing_timeout":         cfg.ListingTimeout,
		"stats_url_template":      cfg.StatsURLTemplate,
		"symbol_suffix":           cfg.SymbolSuffix,
		"sector":                  cfg.Sector,
		"target_codes":            cfg.TargetCodes,
		"max_requests_per_minute": cfg.MaxRequestsPerMinute,
		"rate_window":             cfg.RateWindow,
		"rate_margin":             cfg.RateMargin,
		"delay":                   cfg.Delay,
		"random_delay":            cfg.RandomDelay,
		"timeout":                 cfg.Timeout,
		"dedupe_max_size":         cfg.DedupeMaxSize,
		"output_dir":              cfg.OutputDir,
		"temp_dir":                cfg.TempDir,
		"db_path":                 cfg.DBPath,
		"user_agent":              cfg.UserAgent,
		"metrics_addr":            cfg.MetricsAddr,
		"verbose":                 cfg.Verbose,
	})
	if err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	return cfg, nil
}

// LoadDownloader layers an optional YAML file and ASX_* environment variables over DefaultDownloaderConfig.
func LoadDownloader(path string) (*DownloaderConfig, error) {
	cfg := DefaultDownloaderConfig()
	v, err := newViper(path, map[string]any{
		"debugger_address": cfg.DebuggerAddress,
		"tab_url_contains": cfg.TabURLContains,
		"results_selector": cfg.ResultsSelector,
		"download_dir":     cfg.DownloadDir,
		"output_file":      cfg.OutputFile,
		"poll_interval":    cfg.PollInterval,
		"download_timeout": cfg.DownloadTimeout,
		"delay":            cfg.Delay,
		"random_delay":     cfg.RandomDelay,
		"metrics_addr":     cfg.MetricsAddr,
		"verbose":          cfg.Verbose,
	})
	if err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal downloader config: %w", err)
	}
	return cfg, nil
}

func newViper(path string, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
	}
	return v, nil
}
