package wphost

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BodyStats summarizes an HTML body for candidate enrichment and prompt
// sizing.
type BodyStats struct {
	WordCount    int
	HeadingCount int
	Text         string
}

// AnalyzeBody extracts plain text from an HTML fragment and counts words
// and headings. Malformed HTML falls back to treating the input as plain
// text so analysis never fails a pipeline stage.
func AnalyzeBody(html string) BodyStats {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		text := strings.TrimSpace(html)
		return BodyStats{
			WordCount: len(strings.Fields(text)),
			Text:      text,
		}
	}

	doc.Find("script, style").Remove()
	text := strings.Join(strings.Fields(doc.Text()), " ")
	headings := doc.Find("h1, h2, h3, h4, h5, h6").Length()

	return BodyStats{
		WordCount:    len(strings.Fields(text)),
		HeadingCount: headings,
		Text:         text,
	}
}
