// Package keyword derives target keywords from page titles and slugs.
package keyword

import "strings"

// minDerivedLength is the shortest title-derived keyword accepted before
// falling back to the slug phrase.
const minDerivedLength = 10

// separators that commonly delimit a trailing site-name suffix in titles.
var titleSeparators = []string{" | ", " — ", " – ", " - "}

// Derive produces a target keyword from a page title, falling back to the
// slug when the cleaned title is too short. It is pure and deterministic.
func Derive(title, slug string) string {
	cleaned := StripTitleSuffix(title)
	cleaned = normalize(cleaned)
	if len(cleaned) >= minDerivedLength {
		return cleaned
	}
	return SlugPhrase(slug)
}

// StripTitleSuffix removes a trailing separator-delimited suffix such as
// " — Site Name". Only the last segment is dropped; earlier separators are
// kept so compound titles survive.
func StripTitleSuffix(title string) string {
	trimmed := strings.TrimSpace(title)
	for _, sep := range titleSeparators {
		if idx := strings.LastIndex(trimmed, sep); idx > 0 {
			return strings.TrimSpace(trimmed[:idx])
		}
	}
	return trimmed
}

// SlugPhrase converts a URL slug into a space-separated phrase.
func SlugPhrase(slug string) string {
	phrase := strings.TrimSpace(strings.Trim(slug, "/"))
	if idx := strings.LastIndex(phrase, "/"); idx >= 0 {
		phrase = phrase[idx+1:]
	}
	phrase = strings.ReplaceAll(phrase, "-", " ")
	phrase = strings.ReplaceAll(phrase, "_", " ")
	return normalize(phrase)
}

// FirstNonEmpty resolves an ordered list of candidate values to the first
// one that is non-empty after trimming. It makes fallback precedence an
// explicit, testable rule instead of inline chains.
func FirstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	replacer := strings.NewReplacer(
		"‘", "'", "’", "'",
		"“", `"`, "”", `"`,
		" ", " ",
	)
	s = replacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
