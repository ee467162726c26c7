package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/asx-scraper/models"
)

func newResult(code string, stats ...string) models.ScrapeResult {
	s := models.NewStatistics()
	for i := 0; i+1 < len(stats); i += 2 {
		s.Set(stats[i], stats[i+1])
	}
	return models.ScrapeResult{
		ASXCode:     code,
		CompanyName: code + " LIMITED",
		Symbol:      code + ".AX",
		Statistics:  *s,
		ScrapedAt:   time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return records
}

func TestCSVWriterUnionColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "companies.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	results := []models.ScrapeResult{
		newResult("BHP", "Market Cap", "230B", "Beta", "0.9"),
		newResult("RIO", "Beta", "0.7", "Float", "1.2B"),
		newResult("EMP"),
	}
	if err := writer.Write(results); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	records := readCSV(t, path)
	if len(records) != 4 {
		t.Fatalf("records=%d, want 4", len(records))
	}

	wantHeader := []string{"asx_code", "company_name", "yahoo_symbol", "scrape_timestamp", "stats_Market Cap", "stats_Beta", "stats_Float"}
	if !reflect.DeepEqual(records[0], wantHeader) {
		t.Fatalf("header = %v, want %v", records[0], wantHeader)
	}
	if got := records[2]; got[4] != "" || got[5] != "0.7" || got[6] != "1.2B" {
		t.Fatalf("unexpected RIO row: %v", got)
	}
	if got := records[3]; got[0] != "EMP" || strings.Join(got[4:], "") != "" {
		t.Fatalf("unexpected empty row: %v", got)
	}
	if got := records[1][3]; got != "2026-10-18T09:00:00Z" {
		t.Fatalf("timestamp = %q", got)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestJSONWriterOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	first := []models.ScrapeResult{newResult("BHP", "Market Cap", "230B")}
	if err := writer.Write(first); err != nil {
		t.Fatalf("write json: %v", err)
	}
	second := append(first, newResult("RIO", "Beta", "0.7"))
	if err := writer.Write(second); err != nil {
		t.Fatalf("write json: %v", err)
	}

	decoded, err := ReadResultsJSON(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("results=%d, want 2", len(decoded))
	}
	if decoded[1].Symbol != "RIO.AX" {
		t.Fatalf("symbol = %q", decoded[1].Symbol)
	}
	if got, _ := decoded[0].Statistics.Get("Market Cap"); got != "230B" {
		t.Fatalf("Market Cap = %q", got)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	for _, key := range []string{`"asx_code"`, `"company_name"`, `"yahoo_symbol"`, `"statistics"`, `"scrape_timestamp"`} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("json output missing %s", key)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the progress file, found %d entries", len(entries))
	}
}

func TestJSONWriterEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := writer.Validate(); err == nil {
		t.Fatalf("validate should fail before the first write")
	}
	if err := writer.Write(nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("empty results encoded as %q", raw)
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "companies.csv")
	jsonPath := filepath.Join(dir, "companies.json")

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}

	if err := writer.Write([]models.ScrapeResult{newResult("BHP", "Beta", "0.9")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if records := readCSV(t, csvPath); len(records) != 2 {
		t.Fatalf("csv records=%d, want 2", len(records))
	}
	decoded, err := ReadResultsJSON(jsonPath)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("json results=%d, want 1", len(decoded))
	}
}
