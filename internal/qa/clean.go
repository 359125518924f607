// Package qa implements the interactive question-answering variant of the
// pipeline: the conversational turn, answer cleaning, and source parsing.
package qa

import (
	"regexp"
	"strings"
)

// Noise stripped from raw answers, applied in order. These are pure text
// patterns, deliberately decoupled from the presentation structure they
// happen to originate from.
var (
	// A reasoning/thinking preamble rendered as the first line.
	thinkingLine = regexp.MustCompile(`(?i)^\s*(?:thinking|thought for|show thinking|reasoned for)[^\n]*\n?`)
	// A parenthetical citation summary at the end of a line.
	citationTail = regexp.MustCompile(`(?im)[ \t]*\([^()]*\b(?:citations?|sources?)\b[^()]*\)[ \t]*$`)
	// A trailing "N Sources" counter annotation.
	sourcesTail = regexp.MustCompile(`(?i)\s*\d+\s+sources?\s*$`)
)

// Clean strips known noise from a raw answer. Cleaning is idempotent:
// applying it to already-cleaned text yields the same text.
func Clean(raw string) string {
	s := thinkingLine.ReplaceAllString(raw, "")
	s = citationTail.ReplaceAllString(s, "")
	s = sourcesTail.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
