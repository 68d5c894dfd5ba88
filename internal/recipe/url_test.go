package recipe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURLStripsQueryFragmentAndTrailingSlash(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://example.com/recipe/pancakes/?utm_source=x": "https://example.com/recipe/pancakes",
		"https://example.com/recipe/pancakes#reviews":       "https://example.com/recipe/pancakes",
		"HTTPS://Example.COM/Recipe/":                       "https://example.com/Recipe",
		"https://example.com/":                              "https://example.com",
		"https://example.com":                               "https://example.com",
	}

	for in, want := range cases {
		require.Equal(t, want, NormalizeURL(in), "input %q", in)
	}
}

func TestNormalizeURLIsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"https://example.com/recipes?page=2#top",
		"https://example.com/a/b/c/",
		"not a url at all",
	}
	for _, in := range inputs {
		once := NormalizeURL(in)
		require.Equal(t, once, NormalizeURL(once), "input %q", in)
	}
}

func TestEnsureScheme(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://example.com", EnsureScheme("example.com"))
	require.Equal(t, "https://example.com", EnsureScheme("  example.com"))
	require.Equal(t, "http://example.com", EnsureScheme("http://example.com"))
	require.Equal(t, "https://example.com", EnsureScheme("https://example.com"))
}
