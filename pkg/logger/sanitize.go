package logger

import (
	"log/slog"
	"strings"
	"unicode"
)

// maxFieldLength bounds user-controlled strings written to the log.
const maxFieldLength = 256

// SanitizedUsername masks a username for logging (e.g., "a****")
func SanitizedUsername(username string) string {
	if username == "" {
		return ""
	}
	r := []rune(username)
	if len(r) == 1 {
		return "*"
	}
	return string(r[0]) + strings.Repeat("*", len(r)-1)
}

// SanitizeField strips control characters from a user-controlled value such
// as a user agent or geo header, and truncates it.
func SanitizeField(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if r := []rune(s); len(r) > maxFieldLength {
		s = string(r[:maxFieldLength])
	}
	return s
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitive := []string{"password", "token", "secret", "username", "auth"}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitive {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
