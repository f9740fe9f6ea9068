// Package utils provides shared helpers for text, units, colors, and logging.
package utils

import "unicode/utf8"

const ellipsis = "..."

// Truncate returns s cut to at most maxLen runes. When s is longer, the result ends
// with "..." and the ellipsis counts toward maxLen. If maxLen is 0 or negative, s is
// returned unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= len(ellipsis) {
		return ellipsis[:maxLen]
	}
	runes := []rune(s)
	return string(runes[:maxLen-len(ellipsis)]) + ellipsis
}
