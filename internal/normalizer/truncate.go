package normalizer

import "strings"

// CollapseWhitespace trims the string and replaces any whitespace run with a
// single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate bounds s to limit runes. The limit is inclusive of the marker:
// a string over the limit is cut to limit-len(marker) runes and the marker is
// appended, so the result is exactly limit runes long and downstream
// consumers can detect the cut. Strings at or under the limit pass through
// unchanged. Rune counting keeps multi-byte text from being split mid-character.
func Truncate(s string, limit int, marker string) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	markerRunes := []rune(marker)
	keep := limit - len(markerRunes)
	if keep < 0 {
		keep = 0
	}

	return string(runes[:keep]) + marker
}
