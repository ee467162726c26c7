// Package models defines data structures for the scraper.
package models

import "time"

// Company represents one row of the exchange listing.
type Company struct {
	Name          string `csv:"company_name" json:"name"`
	Code          string `csv:"asx_code" json:"code"`
	IndustryGroup string `csv:"gics_industry_group" json:"gics_industry_group"`
}

// ScrapeResult holds the statistics captured for a single company.
type ScrapeResult struct {
	ASXCode     string     `json:"asx_code"`
	CompanyName string     `json:"company_name"`
	Symbol      string     `json:"yahoo_symbol"`
	Statistics  Statistics `json:"statistics"`
	ScrapedAt   time.Time  `json:"scrape_timestamp"`
}

// RunResult holds the overall result of a scraping run.
type RunResult struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	Total     int
	Scraped   int
	Skipped   int
	Empty     int
	Cancelled bool
}

// SuccessRate is the share of selected companies that produced a result, in percent.
func (r *RunResult) SuccessRate() float64 {
	if r == nil || r.Total == 0 {
		return 0
	}
	return float64(r.Scraped) / float64(r.Total) * 100
}

// Download outcomes recorded per row pair.
const (
	DownloadNoLink     = "no_link"
	DownloadCompleted  = "downloaded"
	DownloadTimedOut   = "timeout"
	DownloadClickError = "click_failed"
)

// DownloadRecord is one paired row of the announcements table.
type DownloadRecord struct {
	Cells    []string `json:"cells"`
	FileLink string   `json:"file_link,omitempty"`
	Filename string   `json:"filename,omitempty"`
	Status   string   `json:"status"`
}
