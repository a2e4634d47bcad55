package wphost

import (
	"fmt"
	"html"
	"strings"

	"github.com/pagelift/optimizer/internal/pipeline"
)

// RenderHTML converts a content bundle into the block markup the host's
// editor stores. Section order is preserved; unknown payload fields for a
// type are ignored.
func RenderHTML(bundle pipeline.ContentBundle) string {
	var b strings.Builder
	for _, section := range bundle.BodySections {
		switch section.Type {
		case pipeline.SectionTLDR:
			b.WriteString(`<div class="tldr"><strong>TL;DR</strong><p>`)
			b.WriteString(html.EscapeString(section.Content))
			b.WriteString("</p></div>\n")
		case pipeline.SectionTakeaways:
			b.WriteString(`<div class="takeaways"><ul>`)
			for _, item := range section.Items {
				fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(item))
			}
			b.WriteString("</ul></div>\n")
		case pipeline.SectionHeading:
			fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(section.Content))
		case pipeline.SectionParagraph, pipeline.SectionSummary:
			fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(section.Content))
		case pipeline.SectionQuote:
			fmt.Fprintf(&b, "<blockquote>%s</blockquote>\n", html.EscapeString(section.Content))
		case pipeline.SectionCTA:
			fmt.Fprintf(&b, `<div class="cta"><p>%s</p></div>`+"\n", html.EscapeString(section.Content))
		case pipeline.SectionFAQ:
			b.WriteString(`<div class="faq">`)
			for _, faq := range section.FAQs {
				fmt.Fprintf(&b, "<h3>%s</h3><p>%s</p>",
					html.EscapeString(faq.Question), html.EscapeString(faq.Answer))
			}
			b.WriteString("</div>\n")
		case pipeline.SectionTable:
			b.WriteString("<table>")
			for i, row := range section.Table {
				b.WriteString("<tr>")
				cell := "td"
				if i == 0 {
					cell = "th"
				}
				for _, col := range row {
					fmt.Fprintf(&b, "<%s>%s</%s>", cell, html.EscapeString(col), cell)
				}
				b.WriteString("</tr>")
			}
			b.WriteString("</table>\n")
		case pipeline.SectionImageSuggestion:
			fmt.Fprintf(&b, "<!-- image suggestion: %s -->\n", html.EscapeString(section.Content))
		}
	}
	return b.String()
}
