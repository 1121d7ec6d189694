// Package sanitize turns human-written titles and names into URL-safe slugs.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// nonAlphanumericRegex matches runs of characters outside [a-z0-9]
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)

	// multiDashRegex matches multiple consecutive dashes
	multiDashRegex = regexp.MustCompile(`-+`)
)

// stripMarks decomposes accented letters and drops the combining marks,
// so "Café" becomes "Cafe".
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ForID sanitizes a string for use as one half of a story id.
// The result contains only lowercase letters, digits, and single dashes.
func ForID(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(stripMarks(s))
	s = nonAlphanumericRegex.ReplaceAllString(s, "-")
	s = multiDashRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ForFilename sanitizes a string for use as a file name, keeping case and
// dashes as written.
func ForFilename(s string) string {
	s = stripMarks(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
