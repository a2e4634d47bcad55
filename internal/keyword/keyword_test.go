package keyword

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveStripsSiteSuffix(t *testing.T) {
	t.Parallel()

	got := Derive("How to Brew Cold Coffee | Bean Journal", "how-to-brew-cold-coffee")
	require.Equal(t, "how to brew cold coffee", got)
}

func TestDeriveKeepsEarlierSeparators(t *testing.T) {
	t.Parallel()

	// Only the final suffix is dropped; a compound title survives.
	got := Derive("Go 1.22 - Generics - Release Notes | Example", "go-generics")
	require.Equal(t, "go 1.22 - generics - release notes", got)
}

func TestDeriveFallsBackToSlugWhenTitleTooShort(t *testing.T) {
	t.Parallel()

	got := Derive("FAQ | Site", "/guides/pressure-canning-basics/")
	require.Equal(t, "pressure canning basics", got)
}

func TestDeriveNormalizesSmartQuotes(t *testing.T) {
	t.Parallel()

	got := Derive("A Beginner’s Guide to Sourdough", "sourdough")
	require.Equal(t, "a beginner's guide to sourdough", got)
}

func TestSlugPhrase(t *testing.T) {
	t.Parallel()

	cases := []struct {
		slug string
		want string
	}{
		{"cold-brew-ratio", "cold brew ratio"},
		{"/blog/2024/cold_brew_ratio/", "cold brew ratio"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, SlugPhrase(tc.slug), "slug %q", tc.slug)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	t.Parallel()

	require.Equal(t, "explicit", FirstNonEmpty("explicit", "derived"))
	require.Equal(t, "derived", FirstNonEmpty("  ", "derived"))
	require.Equal(t, "", FirstNonEmpty("", "   "))
}
