package recipe

import (
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL so the same page is always keyed the
// same way: query string and fragment are dropped, scheme and host are
// lowercased, and the trailing slash is removed. Unparseable input is
// returned as-is so a bad URL still identifies its job row.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""

	return strings.TrimSuffix(u.String(), "/")
}

// EnsureScheme prefixes https:// when the submitted URL carries no
// scheme. Used at the submit-crawl boundary.
func EnsureScheme(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return trimmed
	}
	return "https://" + trimmed
}
