package listing

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/aluiziolira/asx-scraper/config"
	"github.com/aluiziolira/asx-scraper/models"
	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Fetcher downloads and parses the company directory.
type Fetcher struct {
	cfg    *config.Config
	client *http.Client
}

// NewFetcher builds a fetcher with its own HTTP client.
func NewFetcher(cfg *config.Config) *Fetcher {
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.ListingTimeout,
		},
	}
}

// WithTransport replaces the HTTP transport used for the download.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.client.Transport = rt
}

// Fetch downloads the listing to a temporary file, parses it and removes the file.
func (f *Fetcher) Fetch(ctx context.Context) ([]models.Company, error) {
	slog.Info("fetching company listing", slog.String("url", f.cfg.ListingURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.ListingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create listing request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/csv,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download listing: received status %d", resp.StatusCode)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("decode listing body: %w", err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(f.cfg.TempDir, "asx-listing-*.csv")
	if err != nil {
		return nil, fmt.Errorf("create temp listing file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil {
			slog.Warn("failed to remove temp listing file", slog.String("path", tmpPath), slog.Any("error", err))
		}
	}()

	size, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp listing file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("rewind temp listing file: %w", err)
	}
	slog.Debug("listing downloaded", slog.Int64("bytes", size), slog.String("path", tmpPath))

	companies, err := ParseListing(tmp)
	if closeErr := tmp.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close temp listing file: %w", closeErr)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("company listing parsed", slog.Int("companies", len(companies)))
	return companies, nil
}

// decodeBody unwraps the response according to Content-Encoding.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	case "zstd":
		decoder, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}
