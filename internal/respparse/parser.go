// Package respparse recovers the JSON content bundle from raw generator
// output.
package respparse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pagelift/optimizer/internal/pipeline"
)

// Candidate is the shape-validated but semantically unchecked payload
// extracted from generator text. Semantic scoring happens downstream.
type Candidate struct {
	Title            string             `json:"title"`
	MetaDescription  string             `json:"metaDescription"`
	OptimizedContent string             `json:"optimizedContent"`
	Headings         []string           `json:"headings"`
	BodySections     []pipeline.Section `json:"bodySections"`
}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// Parse extracts a Candidate from raw generator text. Generators are
// instructed to emit a single bare JSON object, but they routinely wrap it
// in code fences or commentary; Parse tolerates both and applies a light
// trailing-comma repair before decoding. It returns a ParseError when no
// JSON object can be recovered or a required field is absent.
func Parse(raw string) (Candidate, error) {
	text := stripFences(strings.TrimSpace(raw))

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Candidate{}, &pipeline.ParseError{Reason: "no JSON object found in generator output"}
	}
	text = trailingComma.ReplaceAllString(text[start:end+1], "$1")

	var c Candidate
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return Candidate{}, &pipeline.ParseError{Reason: "invalid JSON: " + err.Error()}
	}
	if strings.TrimSpace(c.Title) == "" {
		return Candidate{}, &pipeline.ParseError{Missing: "title"}
	}
	if strings.TrimSpace(c.OptimizedContent) == "" && len(c.BodySections) == 0 {
		return Candidate{}, &pipeline.ParseError{Missing: "optimizedContent"}
	}
	return c, nil
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		// Drop the fence language tag line (e.g. "json").
		text = text[idx+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
