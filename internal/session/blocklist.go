package session

import (
	"net/http"
	"strings"
)

// blockedStatus reports whether an HTTP status signals bot blocking
// rather than an ordinary fetch failure.
func blockedStatus(code int) bool {
	return code == http.StatusForbidden || code == http.StatusTooManyRequests
}

// contentSignatures are strings that anti-bot interstitials put in the
// page title or body even when the response status is 200.
var contentSignatures = []string{
	"access denied",
	"just a moment...",
	"checking your browser",
	"verify you are a human",
	"pardon our interruption",
}

// blockedContent reports whether the page title or body matches a known
// anti-bot interstitial.
func blockedContent(title, body string) bool {
	title = strings.ToLower(title)
	for _, sig := range contentSignatures {
		if strings.Contains(title, sig) {
			return true
		}
	}
	// Body scans are limited to the head of the document; interstitial
	// pages are small and real recipe pages can legitimately contain
	// phrases like "access denied" deep in comment threads.
	if len(body) > 4096 {
		body = body[:4096]
	}
	body = strings.ToLower(body)
	for _, sig := range contentSignatures {
		if strings.Contains(body, sig) {
			return true
		}
	}
	return false
}
