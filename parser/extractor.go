package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/aluiziolira/asx-scraper/models"
)

// SharesOutstanding gets a dedicated numeric search when the general pass misses it.
const SharesOutstanding = "Shares Outstanding"

// maxValueLen bounds captured values; longer captures are page prose, not figures.
const maxValueLen = 50

// KeyMetrics are the labels searched for in the page text when no table row supplied them.
var KeyMetrics = []string{
	"Market Cap", "Enterprise Value", "Trailing P/E", "Forward P/E",
	"Price/Sales", "Price/Book", "Enterprise Value/Revenue",
	"Enterprise Value/EBITDA", "Beta", "Return on Assets",
	"Return on Equity", "Revenue", "Quarterly Revenue Growth",
	"Gross Profit", "EBITDA", "Net Income", "Diluted EPS",
	"Total Cash", "Total Debt", "Book Value Per Share",
	SharesOutstanding, "Float", "Avg Vol (3 month)",
	"Avg Vol (10 day)", "52 Week High", "52 Week Low",
	"Dividend Yield", "Payout Ratio", "Profit Margin",
	"Operating Margin", "Quarterly Earnings Growth",
}

var sharesPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Shares Outstanding\s*[:\-]?\s*([\d,\.]+[KMB]?)`),
	regexp.MustCompile(`(?i)Outstanding Shares\s*[:\-]?\s*([\d,\.]+[KMB]?)`),
	regexp.MustCompile(`(?i)Total Shares Outstanding\s*[:\-]?\s*([\d,\.]+[KMB]?)`),
}

type metricPatterns struct {
	name     string
	patterns []*regexp.Regexp
}

// RegexExtractor looks up each metric label in free text and takes the rest of its line.
type RegexExtractor struct {
	metrics []metricPatterns
}

// NewRegexExtractor compiles the label patterns for metrics.
func NewRegexExtractor(metrics []string) *RegexExtractor {
	compiled := make([]metricPatterns, 0, len(metrics))
	for _, name := range metrics {
		quoted := regexp.QuoteMeta(name)
		compiled = append(compiled, metricPatterns{
			name: name,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)` + quoted + `\s*[:\-]?\s*([^\n\r]*)`),
				regexp.MustCompile(`(?i)` + quoted + `\s*</?\w*>\s*([^\n\r<]*)`),
			},
		})
	}
	return &RegexExtractor{metrics: compiled}
}

// Extract sets every metric absent from stats for which a short value is found
// and returns how many were added. Only the first match of each pattern counts.
func (e *RegexExtractor) Extract(text string, stats *models.Statistics) int {
	added := 0
	for _, metric := range e.metrics {
		if stats.Has(metric.name) {
			continue
		}
		for _, re := range metric.patterns {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			value := strings.TrimSpace(m[1])
			if value != "" && utf8.RuneCountInString(value) < maxValueLen {
				stats.Set(metric.name, value)
				added++
				break
			}
		}
	}

	if !stats.Has(SharesOutstanding) {
		for _, re := range sharesPatterns {
			if m := re.FindStringSubmatch(text); m != nil {
				stats.Set(SharesOutstanding, strings.TrimSpace(m[1]))
				added++
				break
			}
		}
	}
	return added
}
