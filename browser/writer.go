package browser

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aluiziolira/asx-scraper/models"
)

// WriteRecordsCSV writes records with columns col1..colN, file_link and
// filename, where N is the widest cell list. Short rows are padded.
func WriteRecordsCSV(filename string, records []models.DownloadRecord) error {
	if dir := filepath.Dir(filename); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	width := 0
	for _, r := range records {
		if len(r.Cells) > width {
			width = len(r.Cells)
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	header := make([]string, 0, width+2)
	for i := 1; i <= width; i++ {
		header = append(header, "col"+strconv.Itoa(i))
	}
	header = append(header, "file_link", "filename")
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range records {
		row := make([]string, width, width+2)
		copy(row, r.Cells)
		row = append(row, r.FileLink, r.Filename)
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return f.Close()
}
