// Package redact strips sensitive material from strings before they are
// logged or echoed in error responses. The gateway handles caller-supplied
// provider credentials on every request, so any error text that might embed
// one must pass through here first.
package redact

import "regexp"

// Redaction placeholders
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedHostPlaceholder       = "[REDACTED_HOST]"
)

// Precompiled patterns, applied in order.
var (
	// Connection strings with embedded credentials
	connStringRegex = regexp.MustCompile(`(?i)(postgres|postgresql|redis|rediss|mysql|amqp)://[^@\s]+@`)

	// Bearer tokens in header or error text
	bearerRegex = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/]{8,}`)

	// Provider API keys: Google-style AIza keys and generic sk-/key= shapes
	googleKeyRegex = regexp.MustCompile(`AIza[A-Za-z0-9_\-]{16,}`)
	skKeyRegex     = regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{8,}`)
	apiKeyRegex    = regexp.MustCompile(`(?i)(api[_-]?key|key|token|secret|credential)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`)

	// Passwords in key=value or key: value form
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]['"]?)[^'"&\s]{3,}`)

	// host:port pairs from dial errors
	hostPortRegex = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}:\d{1,5}\b`)

	replacements = []struct {
		pattern     *regexp.Regexp
		placeholder string
	}{
		{connStringRegex, RedactedCredentialPlaceholder + "@"},
		{bearerRegex, RedactedCredentialPlaceholder},
		{googleKeyRegex, RedactedKeyPlaceholder},
		{skKeyRegex, RedactedKeyPlaceholder},
		{apiKeyRegex, "${1}${2}" + RedactedKeyPlaceholder},
		{passwordRegex, "${1}${2}" + RedactedCredentialPlaceholder},
		{hostPortRegex, RedactedHostPlaceholder},
	}
)

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range replacements {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
