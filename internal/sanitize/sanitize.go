// Package sanitize cleans caller-supplied free text before it is stored.
package sanitize

import (
	"html"
	"slices"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// Text strips every HTML tag and non-printable rune and trims the result.
// Entities escaped by the policy are decoded again since notes are stored as plain text.
func Text(s string) string {
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(s)
}

// Tags sanitises each tag, drops empty ones and removes duplicates,
// keeping the first occurrence. The result is nil when nothing survives.
func Tags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		tag = Text(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}
