package util

import "strings"

func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// TruncateRunes cuts value to at most n runes.
func TruncateRunes(value string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= n {
		return value
	}
	return string(runes[:n])
}

// TruncateBytes cuts value to at most n bytes without splitting a rune.
func TruncateBytes(value string, n int) string {
	if len(value) <= n {
		return value
	}
	cut := value[:n]
	return strings.ToValidUTF8(cut, "")
}
