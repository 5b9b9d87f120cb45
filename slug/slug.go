// Package slug derives URL- and anchor-safe identifiers from free text,
// such as FAQ question headings.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnumRe  = regexp.MustCompile("[^a-z0-9-]+")
	hyphenRunRe = regexp.MustCompile("-+")
)

// Generate creates a URL-friendly slug from a string
func Generate(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)

	// Transliterate unicode to ASCII
	s = transliterate(s)

	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = nonAlnumRe.ReplaceAllString(s, "")
	s = hyphenRunRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	// Limit length to 100 characters
	if len(s) > 100 {
		s = strings.TrimRight(s[:100], "-")
	}

	return s
}

// GenerateWithFallback generates a slug, falling back to a default if the input produces an empty slug
func GenerateWithFallback(s, fallback string) string {
	slug := Generate(s)
	if slug == "" {
		return Generate(fallback)
	}
	return slug
}

// transliterate converts unicode characters to ASCII equivalents
func transliterate(s string) string {
	// Normalize unicode characters to NFD form (decomposed)
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// isMn checks if a rune is a nonspacing mark (accents, diacritics)
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
