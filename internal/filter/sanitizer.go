// Package filter implements the inbound message gate for the consultation
// chatbot: sanitization, spam heuristics, and the topic/security classifier,
// composed into a single pipeline applied to every incoming message.
package filter

import (
	"regexp"
	"strings"
)

var (
	// tagPattern strips HTML-like tags. Deliberately a simple tag scan, not
	// a full HTML parser; downstream consumers never render this text.
	tagPattern = regexp.MustCompile(`<[^>]+>`)
	// whitespacePattern collapses any whitespace run to a single space.
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Sanitize removes tag-like markup, collapses whitespace runs, and trims the
// result. Total function: always returns a string, possibly empty.
func Sanitize(raw string) string {
	cleaned := tagPattern.ReplaceAllString(raw, "")
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
