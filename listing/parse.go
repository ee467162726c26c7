// Package listing downloads the exchange company directory and selects companies from it.
package listing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aluiziolira/asx-scraper/models"
)

// UnknownIndustry is used when a row has no industry group.
const UnknownIndustry = "Unknown"

// ErrHeaderNotFound is returned when no candidate row carries the required columns.
var ErrHeaderNotFound = errors.New("listing: no header row with company name, ASX code and GICS industry columns")

// headerOffsets are the non-blank rows tried as the header, in order.
var headerOffsets = []int{0, 1, 2, 3}

type columnIndex struct {
	name     int
	code     int
	industry int
}

// ParseListing reads the directory CSV and returns one Company per usable row.
func ParseListing(r io.Reader) ([]models.Company, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read listing csv: %w", err)
		}
		if isBlank(record) {
			continue
		}
		rows = append(rows, record)
	}

	headerRow := -1
	var cols columnIndex
	for _, offset := range headerOffsets {
		if offset >= len(rows) {
			break
		}
		if idx, ok := locateColumns(rows[offset]); ok {
			headerRow = offset
			cols = idx
			break
		}
		slog.Debug("listing header candidate rejected", slog.Int("row", offset))
	}
	if headerRow < 0 {
		return nil, ErrHeaderNotFound
	}

	companies := make([]models.Company, 0, len(rows)-headerRow-1)
	for i, row := range rows[headerRow+1:] {
		name := field(row, cols.name)
		code := field(row, cols.code)
		if name == "" || code == "" {
			slog.Debug("skipping listing row without name or code", slog.Int("row", headerRow+1+i))
			continue
		}
		industry := field(row, cols.industry)
		if industry == "" {
			industry = UnknownIndustry
		}
		companies = append(companies, models.Company{
			Name:          name,
			Code:          code,
			IndustryGroup: industry,
		})
	}
	return companies, nil
}

func locateColumns(header []string) (columnIndex, bool) {
	idx := columnIndex{
		name:     findColumn(header, "company", "name"),
		code:     findColumn(header, "asx", "code"),
		industry: findColumn(header, "gics", "industry"),
	}
	return idx, idx.name >= 0 && idx.code >= 0 && idx.industry >= 0
}

// findColumn returns the first column containing every fragment, case-insensitively.
func findColumn(header []string, fragments ...string) int {
	for i, col := range header {
		lower := strings.ToLower(strings.TrimSpace(col))
		matched := true
		for _, fragment := range fragments {
			if !strings.Contains(lower, fragment) {
				matched = false
				break
			}
		}
		if matched {
			return i
		}
	}
	return -1
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
