package respparse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pagelift/optimizer/internal/pipeline"
)

const fencedOutput = "Here is your optimized article:\n```json\n" +
	`{
  "title": "Cold Brew Coffee: The Complete Guide",
  "metaDescription": "Everything about cold brew.",
  "headings": ["Equipment", "Ratios", "Steeping", "Serving"],
  "bodySections": [
    {"type": "tldr", "content": "Cold brew is steeped cold."},
    {"type": "paragraph", "content": "Start with coarse grounds."},
  ]
}` + "\n```\nLet me know if you want changes!"

func TestParseFencedOutputWithCommentary(t *testing.T) {
	t.Parallel()

	c, err := Parse(fencedOutput)
	require.NoError(t, err)
	require.Equal(t, "Cold Brew Coffee: The Complete Guide", c.Title)
	require.Len(t, c.Headings, 4)
	require.Len(t, c.BodySections, 2)
	require.Equal(t, pipeline.SectionTLDR, c.BodySections[0].Type)
}

func TestParseFencedOnlyObject(t *testing.T) {
	t.Parallel()

	c, err := Parse("```json\n{\"title\":\"x\",\"optimizedContent\":\"y\"}\n```")
	require.NoError(t, err)
	require.Equal(t, "x", c.Title)
	require.Equal(t, "y", c.OptimizedContent)
}

func TestParseBareObject(t *testing.T) {
	t.Parallel()

	c, err := Parse(`{"title": "T", "optimizedContent": "body text"}`)
	require.NoError(t, err)
	require.Equal(t, "T", c.Title)
	require.Equal(t, "body text", c.OptimizedContent)
}

func TestParseRepairsTrailingCommas(t *testing.T) {
	t.Parallel()

	c, err := Parse(`{"title": "T", "headings": ["a", "b",], "optimizedContent": "x",}`)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, c.Headings)
}

func TestParseNoObjectIsParseError(t *testing.T) {
	t.Parallel()

	_, err := Parse("I could not generate the article, sorry.")
	var parseErr *pipeline.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseMissingTitle(t *testing.T) {
	t.Parallel()

	_, err := Parse(`{"optimizedContent": "body"}`)
	var parseErr *pipeline.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "title", parseErr.Missing)
}

func TestParseMissingBody(t *testing.T) {
	t.Parallel()

	_, err := Parse(`{"title": "T"}`)
	var parseErr *pipeline.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "optimizedContent", parseErr.Missing)
}

func TestParseInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := Parse(`{"title": "T", "optimizedContent": }`)
	var parseErr *pipeline.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Contains(t, parseErr.Reason, "invalid JSON")
}
