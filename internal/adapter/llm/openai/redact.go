package openai

import "fmt"

// maxLoggedChars caps how much reply text ends up in logs.
const maxLoggedChars = 200

// RedactAPIKey shows only the last 4 characters of an API key with an
// explicit redaction marker.
func RedactAPIKey(key string) string {
	if len(key) <= 4 {
		return "[REDACTED]"
	}
	return fmt.Sprintf("[REDACTED-%s]", key[len(key)-4:])
}

// TruncateForLogging shortens reply text before it is logged so that
// conversation content does not end up in log aggregators.
func TruncateForLogging(text string) string {
	if len(text) <= maxLoggedChars {
		return text
	}
	return text[:maxLoggedChars] + fmt.Sprintf("... [truncated, total length=%d bytes]", len(text))
}
