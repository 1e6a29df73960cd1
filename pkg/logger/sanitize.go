package logger

import (
	"log/slog"
	"strings"
)

// sensitiveParams are query-string fragments that force redaction of the
// whole query in request logs. Matched as substrings, so "api_key",
// "apiKey" and "x-api-key" all trip on "api".
var sensitiveParams = []string{
	"password", "token", "secret", "api_key", "apikey", "email", "auth",
}

// SanitizedEmail masks an address down to its shape: first rune of the
// local part and the TLD survive, everything else becomes asterisks
// ("u***@*******.com"). Enough to correlate repeated attempts in logs
// without storing the identifier itself.
func SanitizedEmail(email string) string {
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" || domain == "" {
		return "[invalid-email]"
	}

	masked := local[:1]
	if len(local) > 1 {
		masked += strings.Repeat("*", len(local)-1)
	}

	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return masked + "@" + strings.Join(labels, ".")
}

// RedactedAttr logs value as-is outside production and "[REDACTED]" in it.
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// SanitizeQueryString reports whether the raw query string carries anything
// that looks like a credential and must be dropped from the request log.
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
