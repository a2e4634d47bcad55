// Package quality checks structural compliance of generated content
// bundles and derives their final scores.
package quality

import (
	"fmt"
	"strings"

	"github.com/pagelift/optimizer/internal/pipeline"
)

// minHeadings is the smallest heading count accepted without penalty.
const minHeadings = 4

// validThreshold is the score at or above which a bundle is considered
// structurally valid.
const validThreshold = 50

// blockPenalties assigns the deduction applied when a required section
// type is absent. Summary-class blocks weigh heavier than asides.
var blockPenalties = map[pipeline.SectionType]int{
	pipeline.SectionTLDR:      15,
	pipeline.SectionSummary:   15,
	pipeline.SectionTakeaways: 10,
	pipeline.SectionFAQ:       10,
	pipeline.SectionHeading:   10,
	pipeline.SectionParagraph: 10,
	pipeline.SectionQuote:     5,
	pipeline.SectionCTA:       5,
}

// Validate checks a bundle against the structural contract and produces an
// itemized result. It never fails a job: deductions only lower the score
// and populate Issues.
func Validate(bundle pipeline.ContentBundle, minWordCount int) pipeline.ValidationResult {
	score := 100
	var issues []string

	words := bundle.WordCount
	if words == 0 {
		words = CountWords(bundle)
	}
	if minWordCount > 0 && words < minWordCount*80/100 {
		score -= 30
		issues = append(issues, fmt.Sprintf("word count %d below 80%% of target %d", words, minWordCount))
	}

	present := sectionTypes(bundle)
	for _, required := range pipeline.RequiredSectionTypes() {
		if present[required] {
			continue
		}
		penalty := blockPenalties[required]
		score -= penalty
		issues = append(issues, fmt.Sprintf("missing required %s block (-%d)", required, penalty))
	}

	if headingCount(bundle) < minHeadings {
		score -= 10
		issues = append(issues, fmt.Sprintf("fewer than %d headings", minHeadings))
	}

	if score < 0 {
		score = 0
	}
	return pipeline.ValidationResult{
		Valid:  score >= validThreshold,
		Issues: issues,
		Score:  score,
	}
}

// Score blends content-richness heuristics into the final quality score.
// It is computed independently of Validate: a base of 50 plus bounded
// bonuses, clamped to [0,100].
func Score(bundle pipeline.ContentBundle, minWordCount int) int {
	score := 50

	words := bundle.WordCount
	if words == 0 {
		words = CountWords(bundle)
	}
	if minWordCount > 0 && words >= minWordCount {
		score += 15
	}

	present := sectionTypes(bundle)
	if present[pipeline.SectionSummary] || present[pipeline.SectionTLDR] {
		score += 10
	}
	if present[pipeline.SectionQuote] {
		score += 5
	}
	if countFAQs(bundle) >= 3 {
		score += 5
	}
	if countTakeaways(bundle) >= 3 {
		score += 5
	}

	blockBonus := 0
	for _, required := range pipeline.RequiredSectionTypes() {
		if present[required] {
			blockBonus += 2
		}
	}
	if blockBonus > 10 {
		blockBonus = 10
	}
	score += blockBonus

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// CountWords totals whitespace-separated words across all section text.
func CountWords(bundle pipeline.ContentBundle) int {
	total := 0
	for _, s := range bundle.BodySections {
		total += len(strings.Fields(s.Content))
		for _, item := range s.Items {
			total += len(strings.Fields(item))
		}
		for _, faq := range s.FAQs {
			total += len(strings.Fields(faq.Question)) + len(strings.Fields(faq.Answer))
		}
	}
	return total
}

func sectionTypes(bundle pipeline.ContentBundle) map[pipeline.SectionType]bool {
	present := make(map[pipeline.SectionType]bool, len(bundle.BodySections))
	for _, s := range bundle.BodySections {
		present[s.Type] = true
	}
	return present
}

func headingCount(bundle pipeline.ContentBundle) int {
	count := len(bundle.Headings)
	for _, s := range bundle.BodySections {
		if s.Type == pipeline.SectionHeading {
			count++
		}
	}
	return count
}

func countFAQs(bundle pipeline.ContentBundle) int {
	count := 0
	for _, s := range bundle.BodySections {
		if s.Type == pipeline.SectionFAQ {
			count += len(s.FAQs)
		}
	}
	return count
}

func countTakeaways(bundle pipeline.ContentBundle) int {
	count := 0
	for _, s := range bundle.BodySections {
		if s.Type == pipeline.SectionTakeaways {
			count += len(s.Items)
		}
	}
	return count
}
