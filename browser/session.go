// Package browser drives an already-authenticated Chrome tab to download the
// PDF attachments listed in a search results table.
package browser

import (
	"context"
	"strings"
)

// Row is one rendered table row.
type Row struct {
	Cells []string `json:"cells"`
	// Link is the href of the first PDF anchor in the row, or empty.
	Link string `json:"link"`
}

// Session is a live browser tab showing the results table.
type Session interface {
	// Rows reads every row under the results container.
	Rows(ctx context.Context) ([]Row, error)
	// ClickLink clicks the PDF anchor of the row at index.
	ClickLink(ctx context.Context, index int) error
}

// FilenameFromLink returns the last path segment of href without any fragment.
func FilenameFromLink(href string) string {
	name := href[strings.LastIndex(href, "/")+1:]
	if i := strings.Index(name, "#"); i >= 0 {
		name = name[:i]
	}
	return name
}
