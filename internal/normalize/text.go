package normalize

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/unicode/norm"
)

// htmlTagPattern matches common HTML tags to detect if a string contains HTML.
// Looks for opening tags like <p>, <br>, <div>, <b>, etc.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// Username canonicalizes a username for storage. Different unicode
// encodings of the same visible name must compare equal, so the name is
// NFKC-composed and trimmed. Case is preserved for display; lookups go
// through UsernameKey.
func Username(raw string) string {
	return strings.TrimSpace(norm.NFKC.String(sanitizeString(raw)))
}

// UsernameKey returns the canonical lookup form of a username. Two
// usernames collide when their keys are equal.
func UsernameKey(raw string) string {
	return strings.ToLower(Username(raw))
}

// Description cleans a book description for storage. Descriptions
// pasted from publisher pages often arrive as HTML; those are converted
// to Markdown. Plain text passes through unchanged.
func Description(raw string) string {
	s := strings.TrimSpace(sanitizeString(raw))
	if s == "" || !containsHTML(s) {
		return s
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		// If conversion fails, keep the original text.
		return s
	}

	return strings.TrimSpace(markdown)
}

// containsHTML checks if a string appears to contain HTML markup.
func containsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}
