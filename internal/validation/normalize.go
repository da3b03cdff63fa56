package validation

import (
	"regexp"
	"strings"
)

var (
	punctRe   = regexp.MustCompile(`[^\w\s'-]`)
	articleRe = regexp.MustCompile(`^(a|an|the)\s+`)
	yearRe    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// Normalize reduces a title to its comparison form: lowercase, punctuation
// stripped except hyphens and apostrophes, whitespace collapsed and a
// leading article removed. The function is idempotent, so a normalized
// title passed back in comes out unchanged.
func Normalize(title string) string {
	s := strings.ToLower(title)
	s = punctRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	return articleRe.ReplaceAllString(s, "")
}

// NormalizeYear extracts the first plausible four-digit year, tolerating
// ranges like "1999-2003" and annotations like "1999 (TV Movie)".
func NormalizeYear(year string) string {
	if year == "" || strings.EqualFold(year, "n/a") {
		return ""
	}
	return yearRe.FindString(year)
}
