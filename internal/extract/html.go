// Package extract pulls deliverable artifacts (HTML documents, base64
// images) out of free-form model responses using layered regex heuristics.
// It is pure string work with no I/O, so callers decide what to persist.
package extract

import (
	"regexp"
	"strings"
)

// Ordered most-specific first: a fenced block beats a bare document, and a
// complete document beats a truncated prefix.
var htmlComplete = []*regexp.Regexp{
	regexp.MustCompile("(?is)```html\n(.*?</html>)\\s*\n```"),
	regexp.MustCompile("(?is)```\n(<!DOCTYPE html>.*?</html>)\\s*\n```"),
	regexp.MustCompile(`(?is)(<!DOCTYPE html>.*?</html>)`),
}

var htmlPartial = []*regexp.Regexp{
	regexp.MustCompile("(?is)```html\n(<!DOCTYPE html>.*?)(?:\n```|$)"),
	regexp.MustCompile("(?is)```html\n(<html.*?)(?:\n```|$)"),
	regexp.MustCompile(`(?is)(<!DOCTYPE html>.*)$`),
}

// HTML extracts an HTML document from a response. It returns the document
// and whether it is complete, i.e. ends with a closing </html> tag. An
// empty string means no document was found.
func HTML(content string) (string, bool) {
	for _, re := range htmlComplete {
		if m := re.FindStringSubmatch(content); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	for _, re := range htmlPartial {
		if m := re.FindStringSubmatch(content); m != nil {
			html := strings.TrimSpace(m[1])
			return html, Complete(html)
		}
	}
	return "", false
}

// Complete reports whether an HTML fragment ends with its closing tag.
func Complete(html string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(html)), "</html>")
}
