package games

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxQuestionLength = 500
	MaxResponseLength = 300
)

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}

	return s
}

// NormalizeCode canonicalizes a room code as typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
