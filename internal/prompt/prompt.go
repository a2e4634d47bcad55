// Package prompt assembles the generator instructions that encode the
// structural output contract.
package prompt

import (
	"fmt"
	"strings"

	"github.com/pagelift/optimizer/internal/pipeline"
)

// Spec carries everything the builder needs for one generation.
type Spec struct {
	MinWords      int
	MaxWords      int
	Keyword       string
	SourceTitle   string
	SourceContent string
	InternalLinks []pipeline.InternalLink
	Insights      *pipeline.Insights
}

// Result holds the rendered prompt pair.
type Result struct {
	SystemPrompt string
	UserPrompt   string
}

// Build renders the system and user prompts. The prompts are the only
// contract the rest of the pipeline relies on: a single JSON object with a
// closed set of section types, inside a word-count band, with no
// surrounding prose or code fences. The validator exists because
// generators do not always honor this.
func Build(spec Spec) Result {
	var sys strings.Builder
	sys.WriteString("You are an expert SEO content writer. ")
	sys.WriteString("You rewrite existing web articles into longer, better structured versions that preserve factual claims.\n\n")
	sys.WriteString("Output contract (strict):\n")
	sys.WriteString("- Respond with exactly one JSON object. No prose before or after it. No markdown code fences.\n")
	sys.WriteString("- Top-level fields: \"title\", \"metaDescription\", \"headings\", \"optimizedContent\", \"bodySections\".\n")
	fmt.Fprintf(&sys, "- \"bodySections\" is an array of objects {\"type\", \"content\", \"items\", \"faqs\"} where \"type\" is one of: %s.\n", sectionTypeList())
	fmt.Fprintf(&sys, "- The body must include at least one section of each of these types: %s.\n", requiredTypeList())
	fmt.Fprintf(&sys, "- Total body length must be between %d and %d words.\n", spec.MinWords, spec.MaxWords)
	sys.WriteString("- Include at least 4 headings.\n")

	var usr strings.Builder
	fmt.Fprintf(&usr, "Target keyword: %s\n\n", spec.Keyword)
	fmt.Fprintf(&usr, "Original title: %s\n\n", spec.SourceTitle)
	usr.WriteString("Original content:\n")
	usr.WriteString(spec.SourceContent)
	usr.WriteString("\n")

	if len(spec.InternalLinks) > 0 {
		usr.WriteString("\nWeave in links to these internal pages where relevant:\n")
		for _, link := range spec.InternalLinks {
			fmt.Fprintf(&usr, "- %s (%s)\n", link.Title, link.URL)
		}
	}

	if spec.Insights != nil {
		usr.WriteString("\nKeyword research to incorporate:\n")
		if spec.Insights.SearchVolume > 0 {
			fmt.Fprintf(&usr, "- Monthly search volume: %d\n", spec.Insights.SearchVolume)
		}
		if len(spec.Insights.RelatedTerms) > 0 {
			fmt.Fprintf(&usr, "- Related terms: %s\n", strings.Join(spec.Insights.RelatedTerms, ", "))
		}
		if len(spec.Insights.CommonQuestions) > 0 {
			usr.WriteString("- Answer these questions in the FAQ section:\n")
			for _, q := range spec.Insights.CommonQuestions {
				fmt.Fprintf(&usr, "  - %s\n", q)
			}
		}
	}

	return Result{
		SystemPrompt: sys.String(),
		UserPrompt:   usr.String(),
	}
}

func sectionTypeList() string {
	types := []pipeline.SectionType{
		pipeline.SectionTLDR,
		pipeline.SectionTakeaways,
		pipeline.SectionHeading,
		pipeline.SectionParagraph,
		pipeline.SectionQuote,
		pipeline.SectionCTA,
		pipeline.SectionSummary,
		pipeline.SectionFAQ,
		pipeline.SectionTable,
		pipeline.SectionImageSuggestion,
	}
	return joinTypes(types)
}

func requiredTypeList() string {
	return joinTypes(pipeline.RequiredSectionTypes())
}

func joinTypes(types []pipeline.SectionType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
