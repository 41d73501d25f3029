// Package normalize implements the text normalisation shared by the match
// validator and the seller classifier.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonWord    = regexp.MustCompile(`[^A-Z0-9_]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// StripAccents removes combining marks, leaving case untouched.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Text uppercases s, strips accents, maps "&" to "E", turns every run of
// non-word characters into a single space and trims the result.
// Text(Text(s)) == Text(s).
func Text(s string) string {
	s = StripAccents(s)
	s = strings.ReplaceAll(s, "&", "E")
	s = strings.ToUpper(s)
	s = nonWord.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Tokens splits the normalised form of s on whitespace.
func Tokens(s string) []string {
	n := Text(s)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

// Squash collapses whitespace without any other change.
func Squash(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
