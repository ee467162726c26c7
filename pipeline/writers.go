package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aluiziolira/asx-scraper/models"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StatsColumnPrefix tags flattened statistic columns in the CSV output.
const StatsColumnPrefix = "stats_"

// baseColumns lead every flattened row.
var baseColumns = []string{"asx_code", "company_name", "yahoo_symbol", "scrape_timestamp"}

// CSVWriter writes the flattened result table. Each Write replaces the file.
type CSVWriter struct {
	filename string
	mu       sync.Mutex
}

// NewCSVWriter prepares a CSV writer for filename.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	return &CSVWriter{filename: filename}, nil
}

// Write flattens results into one row per company. Statistic columns are the
// union across all results, in order of first appearance.
func (cw *CSVWriter) Write(results []models.ScrapeResult) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	metrics := statisticColumns(results)
	header := make([]string, 0, len(baseColumns)+len(metrics))
	header = append(header, baseColumns...)
	for _, metric := range metrics {
		header = append(header, StatsColumnPrefix+metric)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, result := range results {
		record := make([]string, 0, len(header))
		record = append(record,
			result.ASXCode,
			result.CompanyName,
			result.Symbol,
			result.ScrapedAt.Format(time.RFC3339Nano),
		)
		for _, metric := range metrics {
			value, _ := result.Statistics.Get(metric)
			record = append(record, value)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}

	return writeFileAtomic(cw.filename, buf.Bytes())
}

// Close is a no-op; every Write leaves a complete file behind.
func (cw *CSVWriter) Close() error {
	return nil
}

// Validate ensures the file has been written.
func (cw *CSVWriter) Validate() error {
	return validateNonEmpty(cw.filename, "csv")
}

// JSONWriter writes the full result list as an indented JSON array. Each Write
// replaces the file, which makes it suitable as a progress checkpoint.
type JSONWriter struct {
	filename string
	mu       sync.Mutex
}

// NewJSONWriter prepares a JSON writer for filename.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	return &JSONWriter{filename: filename}, nil
}

// Write serialises the accumulated results and overwrites the file.
func (jw *JSONWriter) Write(results []models.ScrapeResult) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if results == nil {
		results = []models.ScrapeResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json results: %w", err)
	}
	return writeFileAtomic(jw.filename, data)
}

// Close is a no-op; every Write leaves a complete file behind.
func (jw *JSONWriter) Close() error {
	return nil
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	return validateNonEmpty(jw.filename, "json")
}

// Filename returns the path written by the writer.
func (jw *JSONWriter) Filename() string {
	return jw.filename
}

// ReadResultsJSON loads a results file written by JSONWriter.
func ReadResultsJSON(filename string) ([]models.ScrapeResult, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	var results []models.ScrapeResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode results file: %w", err)
	}
	return results, nil
}

func statisticColumns(results []models.ScrapeResult) []string {
	seen := make(map[string]struct{})
	var columns []string
	for _, result := range results {
		for _, key := range result.Statistics.Keys() {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			columns = append(columns, key)
		}
	}
	return columns
}

// writeFileAtomic replaces filename with data via a temp file in the same directory.
func writeFileAtomic(filename string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", filename, err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filename, err)
	}
	return nil
}

func validateNonEmpty(filename, kind string) error {
	info, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("stat %s file: %w", kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", kind)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
