package ics

import "strings"

// Unfold splits a raw document into logical content lines.
//
// CRLF and bare LF are both accepted as physical line separators. A physical
// line starting with a single space or horizontal tab continues the previous
// one: the fold marker is dropped and the remainder is appended as-is.
func Unfold(doc string) []string {
	physical := strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n")

	lines := make([]string, 0, len(physical))
	for _, p := range physical {
		if len(lines) > 0 && len(p) > 0 && (p[0] == ' ' || p[0] == '\t') {
			lines[len(lines)-1] += p[1:]
			continue
		}
		lines = append(lines, p)
	}
	return lines
}
