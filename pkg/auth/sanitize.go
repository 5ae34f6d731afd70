package auth

import (
	"strings"
	"unicode"
)

// SanitizeUsername trims whitespace and removes control characters.
func SanitizeUsername(username string) string {
	return removeControlChars(strings.TrimSpace(username))
}

// removeControlChars removes all control characters.
func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
