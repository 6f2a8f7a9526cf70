// Package strings holds text helpers for table cells.
package strings

import (
	"strings"
)

const (
	// DescriptionMaxLen bounds dependency descriptions in tables.
	DescriptionMaxLen = 60
	// MessageMaxLen bounds error and warning messages in tables. Adapter
	// errors carry whole docker or supervisorctl output.
	MessageMaxLen = 100

	ellipsis  = "..."
	minMaxLen = len(ellipsis) + 1
)

// Truncate collapses s to one line and cuts it to at most maxLen runes,
// ending with "..." when cut. maxLen below 4 is raised to 4.
func Truncate(s string, maxLen int) string {
	if maxLen < minMaxLen {
		maxLen = minMaxLen
	}
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-len(ellipsis)]) + ellipsis
}

// LastLine returns the last non-empty line of s, trimmed. Tool output
// usually ends with the line that explains the failure.
func LastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
