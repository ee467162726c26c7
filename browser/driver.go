package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/aluiziolira/asx-scraper/config"
	"github.com/aluiziolira/asx-scraper/models"
)

// Driver walks the results table two rows at a time and downloads each pair's PDF.
type Driver struct {
	cfg     *config.DownloaderConfig
	session Session
	Metrics *Metrics

	sleep  func(context.Context, time.Duration) error
	rand   func() float64
	exists func(string) bool
}

// NewDriver builds a driver over session.
func NewDriver(cfg *config.DownloaderConfig, session Session) *Driver {
	return &Driver{
		cfg:     cfg,
		session: session,
		Metrics: NewMetrics(),
		sleep:   sleepContext,
		rand:    rand.Float64,
		exists:  fileExists,
	}
}

// Run processes every row pair and returns one record per complete pair.
// Row i carries metadata and row i+1 the link; a trailing unpaired row is skipped.
func (d *Driver) Run(ctx context.Context) ([]models.DownloadRecord, error) {
	if err := os.MkdirAll(d.cfg.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	rows, err := d.session.Rows(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("result rows loaded", slog.Int("rows", len(rows)))

	records := make([]models.DownloadRecord, 0, len(rows)/2)
	for i := 0; i < len(rows); i += 2 {
		if ctx.Err() != nil {
			slog.Warn("download run cancelled", slog.Int("row", i))
			break
		}
		if i+1 >= len(rows) {
			slog.Warn("skipping incomplete row pair", slog.Int("index", i))
			d.Metrics.IncSkipped()
			continue
		}

		meta, linkRow := rows[i], rows[i+1]
		cells := make([]string, 0, len(meta.Cells)+len(linkRow.Cells))
		cells = append(cells, meta.Cells...)
		cells = append(cells, linkRow.Cells...)

		record := models.DownloadRecord{Cells: cells, Status: models.DownloadNoLink}
		if linkRow.Link != "" {
			record.FileLink = linkRow.Link
			record.Filename = FilenameFromLink(linkRow.Link)
		}
		if record.FileLink != "" && record.Filename != "" {
			record.Status = d.download(ctx, i+1, record.Filename)
			d.pause(ctx)
		}
		d.Metrics.IncDownload(record.Status)
		records = append(records, record)
	}
	return records, nil
}

func (d *Driver) download(ctx context.Context, index int, filename string) string {
	slog.Info("clicking to download", slog.String("filename", filename))
	if err := d.session.ClickLink(ctx, index); err != nil {
		slog.Error("download click failed", slog.String("filename", filename), slog.Any("error", err))
		return models.DownloadClickError
	}

	path := filepath.Join(d.cfg.DownloadDir, filename)
	waited, err := d.waitForFile(ctx, path)
	d.Metrics.ObserveWait(waited)
	switch {
	case err == nil:
		slog.Info("downloaded", slog.String("filename", filename), slog.Duration("waited", waited))
		return models.DownloadCompleted
	case errors.Is(err, errDownloadTimeout):
		slog.Error("download timed out", slog.String("filename", filename), slog.Duration("waited", waited))
	default:
		slog.Error("download wait interrupted", slog.String("filename", filename), slog.Any("error", err))
	}
	return models.DownloadTimedOut
}

var errDownloadTimeout = errors.New("download timed out")

// waitForFile polls for path until it exists or the download timeout is spent.
func (d *Driver) waitForFile(ctx context.Context, path string) (time.Duration, error) {
	var waited time.Duration
	for !d.exists(path) && waited < d.cfg.DownloadTimeout {
		if err := d.sleep(ctx, d.cfg.PollInterval); err != nil {
			return waited, err
		}
		waited += d.cfg.PollInterval
	}
	if d.exists(path) {
		return waited, nil
	}
	return waited, errDownloadTimeout
}

func (d *Driver) pause(ctx context.Context) {
	delay := d.cfg.Delay + time.Duration(d.rand()*float64(d.cfg.RandomDelay))
	if err := d.sleep(ctx, delay); err != nil {
		slog.Debug("pause interrupted", slog.Any("error", err))
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
