package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/asx-scraper/models"
	"golang.org/x/net/html"
)

// TextExtractor fills metrics missing from stats by scanning the page text.
type TextExtractor interface {
	Extract(text string, stats *models.Statistics) int
}

// StatisticsParser harvests label/value rows from every table on a page.
type StatisticsParser struct {
	// Fallback runs after the table pass. Nil disables it.
	Fallback TextExtractor
}

// NewStatisticsParser returns a parser with the regex fallback for KeyMetrics.
func NewStatisticsParser() *StatisticsParser {
	return &StatisticsParser{Fallback: NewRegexExtractor(KeyMetrics)}
}

// Parse reads an HTML document and returns the statistics found in it.
// Later rows with the same label overwrite earlier ones.
func (p *StatisticsParser) Parse(r io.Reader) (*models.Statistics, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse statistics page: %w", err)
	}

	stats := models.NewStatistics()
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td, th")
			if cells.Length() < 2 {
				return
			}
			key := strippedText(cells.Eq(0))
			value := strippedText(cells.Eq(1))
			if key != "" && value != "" {
				stats.Set(key, value)
			}
		})
	})

	if p.Fallback != nil {
		p.Fallback.Extract(VisibleText(doc.Selection), stats)
	}
	return stats, nil
}

// VisibleText concatenates the document's text nodes, leaving out scripts,
// stylesheets, templates and comments.
func VisibleText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		walkText(n, func(s string) {
			b.WriteString(s)
		})
	}
	return b.String()
}

// strippedText joins the trimmed, non-empty text nodes under sel.
func strippedText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		walkText(n, func(s string) {
			b.WriteString(strings.TrimSpace(s))
		})
	}
	return b.String()
}

func walkText(n *html.Node, fn func(string)) {
	switch n.Type {
	case html.TextNode:
		fn(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "template":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, fn)
	}
}
