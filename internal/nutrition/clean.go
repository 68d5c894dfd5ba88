package nutrition

import (
	"regexp"
	"strings"
)

// Preparation states that confuse provider search.
var prepWords = []string{
	"melted", "softened", "chopped", "sliced", "diced", "minced",
	"crushed", "beaten", "sifted", "warm", "cold", "hot", "boiling",
	"room temperature", "granulated", "all-purpose", "all purpose",
	"dried", "raw", "cooked", "steamed", "baked", "fried", "grilled",
	"fresh", "freshly", "finely", "roughly", "large", "small", "medium",
}

var punctuationPattern = regexp.MustCompile("[.,/#!$%^&*;:{}=\\-_`~()]")

var spacesPattern = regexp.MustCompile(`\s+`)

var prepWordPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(prepWords))
	for _, w := range prepWords {
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return patterns
}()

// Canonicalizing substitutions that improve provider hit rate: generic
// pantry words map to the specific database descriptions.
var termMappings = map[string]string{
	"milk":        "milk whole",
	"egg":         "egg whole",
	"eggs":        "egg whole",
	"flour":       "flour wheat all-purpose",
	"sugar":       "sugar granulated",
	"butter":      "butter salted",
	"rice":        "rice white raw",
	"white rice":  "rice white raw",
	"oats":        "oats rolled raw",
	"rolled oats": "oats rolled raw",
	"pasta":       "pasta dry",
}

// CleanTerm strips preparation adjectives and punctuation from an
// ingredient name and applies canonical substitutions, producing the
// provider search term.
func CleanTerm(term string) string {
	if term == "" {
		return ""
	}

	cleaned := strings.ToLower(term)
	// Replace with a space so adjacent words do not merge.
	cleaned = punctuationPattern.ReplaceAllString(cleaned, " ")
	for _, p := range prepWordPatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.TrimSpace(spacesPattern.ReplaceAllString(cleaned, " "))

	if mapped, ok := termMappings[cleaned]; ok {
		return mapped
	}
	return cleaned
}
