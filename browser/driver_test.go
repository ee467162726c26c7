package browser

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/aluiziolira/asx-scraper/config"
	"github.com/aluiziolira/asx-scraper/models"
)

type fakeSession struct {
	rows     []Row
	rowsErr  error
	clicks   []int
	clickErr error
	// onClick simulates Chrome finishing the download.
	onClick func(index int)
}

func (f *fakeSession) Rows(context.Context) ([]Row, error) {
	return f.rows, f.rowsErr
}

func (f *fakeSession) ClickLink(_ context.Context, index int) error {
	f.clicks = append(f.clicks, index)
	if f.clickErr != nil {
		return f.clickErr
	}
	if f.onClick != nil {
		f.onClick(index)
	}
	return nil
}

func newTestDriver(t *testing.T, session Session) (*Driver, *[]time.Duration) {
	t.Helper()
	cfg := config.DefaultDownloaderConfig()
	cfg.DownloadDir = t.TempDir()

	var sleeps []time.Duration
	d := NewDriver(cfg, session)
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		sleeps = append(sleeps, dur)
		return ctx.Err()
	}
	d.rand = func() float64 { return 0.5 }
	return d, &sleeps
}

func TestFilenameFromLink(t *testing.T) {
	tests := []struct {
		href     string
		expected string
	}{
		{href: "https://example.test/pdfs/02912345.pdf", expected: "02912345.pdf"},
		{href: "https://example.test/pdfs/report.pdf#page=2", expected: "report.pdf"},
		{href: "report.pdf", expected: "report.pdf"},
		{href: "https://example.test/pdfs/", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			if got := FilenameFromLink(tt.href); got != tt.expected {
				t.Fatalf("FilenameFromLink(%q) = %q, want %q", tt.href, got, tt.expected)
			}
		})
	}
}

func TestDriverPairsRows(t *testing.T) {
	session := &fakeSession{rows: []Row{
		{Cells: []string{"BHP", "Quarterly report"}},
		{Cells: []string{"18/10/2026"}, Link: "https://example.test/pdfs/bhp-q3.pdf"},
		{Cells: []string{"RIO", "Notice"}},
		{Cells: []string{"17/10/2026"}},
	}}
	d, sleeps := newTestDriver(t, session)
	session.onClick = func(int) {
		os.WriteFile(filepath.Join(d.cfg.DownloadDir, "bhp-q3.pdf"), []byte("%PDF"), 0o644)
	}

	records, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !reflect.DeepEqual(session.clicks, []int{1}) {
		t.Fatalf("clicks = %v, want [1]", session.clicks)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	first := records[0]
	if first.Status != models.DownloadCompleted || first.Filename != "bhp-q3.pdf" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if !reflect.DeepEqual(first.Cells, []string{"BHP", "Quarterly report", "18/10/2026"}) {
		t.Fatalf("cells = %v", first.Cells)
	}

	second := records[1]
	if second.Status != models.DownloadNoLink || second.FileLink != "" || second.Filename != "" {
		t.Fatalf("unexpected second record: %+v", second)
	}

	// One pause of delay + half the random span after the single download.
	if !reflect.DeepEqual(*sleeps, []time.Duration{2 * time.Second}) {
		t.Fatalf("sleeps = %v", *sleeps)
	}
}

func TestDriverSkipsOddRow(t *testing.T) {
	session := &fakeSession{rows: []Row{
		{Cells: []string{"a"}},
		{Cells: []string{"b"}},
		{Cells: []string{"orphan"}},
	}}
	d, _ := newTestDriver(t, session)

	records, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if len(session.clicks) != 0 {
		t.Fatalf("no click expected, got %v", session.clicks)
	}
}

func TestDriverDownloadTimeout(t *testing.T) {
	session := &fakeSession{rows: []Row{
		{Cells: []string{"BHP"}},
		{Link: "https://example.test/pdfs/never.pdf"},
	}}
	d, sleeps := newTestDriver(t, session)

	records, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if records[0].Status != models.DownloadTimedOut {
		t.Fatalf("status = %q, want %q", records[0].Status, models.DownloadTimedOut)
	}

	polls := 0
	for _, s := range *sleeps {
		if s == d.cfg.PollInterval {
			polls++
		}
	}
	if polls != 30 {
		t.Fatalf("polls = %d, want 30", polls)
	}
}

func TestDriverClickFailure(t *testing.T) {
	session := &fakeSession{
		rows: []Row{
			{Cells: []string{"BHP"}},
			{Link: "https://example.test/pdfs/a.pdf"},
			{Cells: []string{"RIO"}},
			{Link: "https://example.test/pdfs/b.pdf"},
		},
		clickErr: errors.New("node detached"),
	}
	d, _ := newTestDriver(t, session)

	records, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(records) != 2 || len(session.clicks) != 2 {
		t.Fatalf("records=%d clicks=%d, want 2 and 2", len(records), len(session.clicks))
	}
	for _, r := range records {
		if r.Status != models.DownloadClickError {
			t.Fatalf("status = %q, want %q", r.Status, models.DownloadClickError)
		}
	}
}

func TestDriverRowsError(t *testing.T) {
	session := &fakeSession{rowsErr: ErrNoResults}
	d, _ := newTestDriver(t, session)

	if _, err := d.Run(context.Background()); !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestWriteRecordsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "announcements.csv")
	records := []models.DownloadRecord{
		{Cells: []string{"BHP", "Quarterly report", "18/10/2026"}, FileLink: "https://example.test/pdfs/a.pdf", Filename: "a.pdf", Status: models.DownloadCompleted},
		{Cells: []string{"RIO", "Notice"}, Status: models.DownloadNoLink},
	}
	if err := WriteRecordsCSV(path, records); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	want := [][]string{
		{"col1", "col2", "col3", "file_link", "filename"},
		{"BHP", "Quarterly report", "18/10/2026", "https://example.test/pdfs/a.pdf", "a.pdf"},
		{"RIO", "Notice", "", "", ""},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}
