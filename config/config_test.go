package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "unknown mode",
			mutate: func(cfg *Config) {
				cfg.Mode = "everything"
			},
			wantErr: "mode",
		},
		{
			name: "empty listing url",
			mutate: func(cfg *Config) {
				cfg.ListingURL = ""
			},
			wantErr: "listing URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.ListingURL = "http://"
			},
			wantErr: "listing URL",
		},
		{
			name: "template without placeholder",
			mutate: func(cfg *Config) {
				cfg.StatsURLTemplate = "https://finance.example.test/quote"
			},
			wantErr: "stats URL template",
		},
		{
			name: "zero request budget",
			mutate: func(cfg *Config) {
				cfg.MaxRequestsPerMinute = 0
			},
			wantErr: "max requests per minute",
		},
		{
			name: "negative random delay",
			mutate: func(cfg *Config) {
				cfg.RandomDelay = -1 * time.Second
			},
			wantErr: "random delay",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "targets mode without codes",
			mutate: func(cfg *Config) {
				cfg.Mode = ModeTargets
				cfg.TargetCodes = nil
			},
			wantErr: "target codes",
		},
		{
			name: "sector mode without sector",
			mutate: func(cfg *Config) {
				cfg.Sector = "  "
			},
			wantErr: "sector",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestOutputPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputDir = "out"

	if got, want := cfg.ProgressFile(), filepath.Join("out", "asx_materials_data_progress.json"); got != want {
		t.Fatalf("progress file = %q, want %q", got, want)
	}
	if got, want := cfg.ResultsCSVFile(), filepath.Join("out", "asx_materials_companies_data.csv"); got != want {
		t.Fatalf("csv file = %q, want %q", got, want)
	}

	cfg.Mode = ModeTargets
	if got, want := cfg.ResultsJSONFile(), filepath.Join("out", "asx_target_companies_data.json"); got != want {
		t.Fatalf("json file = %q, want %q", got, want)
	}
}

func TestStatsURL(t *testing.T) {
	cfg := DefaultConfig()
	symbol := cfg.Symbol("BHP")
	if symbol != "BHP.AX" {
		t.Fatalf("symbol = %q, want BHP.AX", symbol)
	}
	if got, want := cfg.StatsURL(symbol), "https://finance.yahoo.com/quote/BHP.AX/key-statistics"; got != want {
		t.Fatalf("stats url = %q, want %q", got, want)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "mode: targets\nmax_requests_per_minute: 5\ndelay: 500ms\ntarget_codes:\n  - BHP\n  - RIO\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ASX_OUTPUT_DIR", dir)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeTargets {
		t.Fatalf("mode = %q, want %q", cfg.Mode, ModeTargets)
	}
	if cfg.MaxRequestsPerMinute != 5 {
		t.Fatalf("max requests = %d, want 5", cfg.MaxRequestsPerMinute)
	}
	if cfg.Delay != 500*time.Millisecond {
		t.Fatalf("delay = %v, want 500ms", cfg.Delay)
	}
	if !reflect.DeepEqual(cfg.TargetCodes, []string{"BHP", "RIO"}) {
		t.Fatalf("target codes = %v", cfg.TargetCodes)
	}
	if cfg.OutputDir != dir {
		t.Fatalf("output dir = %q, want %q", cfg.OutputDir, dir)
	}
	if cfg.Timeout != 15*time.Second {
		t.Fatalf("timeout default lost: %v", cfg.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestDownloaderConfigValidate(t *testing.T) {
	cfg := DefaultDownloaderConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default downloader config should validate, got %v", err)
	}

	cfg.DownloadTimeout = 100 * time.Millisecond
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "download timeout") {
		t.Fatalf("expected download timeout error, got %v", err)
	}
}

func TestDebuggerURL(t *testing.T) {
	cfg := DefaultDownloaderConfig()
	if got := cfg.DebuggerURL(); got != "http://127.0.0.1:9222" {
		t.Fatalf("debugger url = %q", got)
	}
	cfg.DebuggerAddress = "ws://127.0.0.1:9222/devtools/browser/abc"
	if got := cfg.DebuggerURL(); got != cfg.DebuggerAddress {
		t.Fatalf("debugger url = %q, want passthrough", got)
	}
}
