package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// Matches non-alphanumeric characters (replaced with dashes).
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	// Matches multiple consecutive dashes.
	multipleDashes = regexp.MustCompile(`-+`)
)

// Slug converts a display name to a canonical slug. The slug is the
// source of truth for group identity: "Editors" and "editors" name the
// same group.
//
// Normalization rules:
//  1. Decompose accented characters and drop the combining marks
//  2. Lowercase
//  3. Replace runs of non-alphanumerics with a single dash
//  4. Trim leading/trailing dashes
//
// Examples:
//
//	"Editors"        → "editors"
//	"Front Desk"     → "front-desk"
//	"Crème Brûlée"   → "creme-brulee"
//	"  admins!!  "   → "admins"
func Slug(input string) string {
	// Normalize unicode (decompose accented characters).
	s := norm.NFKD.String(input)

	// Remove non-ASCII characters.
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = multipleDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	return s
}
