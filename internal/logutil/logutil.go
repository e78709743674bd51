// Package logutil formats request data for logs without leaking secrets.
package logutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveFragments are matched against keys lowercased with '-' and '_' removed.
var sensitiveFragments = []string{"token", "secret", "password", "apikey", "cookie", "auth"}

// IsSensitiveLogField reports whether a header or JSON key likely holds a secret.
func IsSensitiveLogField(key string) bool {
	normalized := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(key)))
	for _, fragment := range sensitiveFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

// FormatHeadersForLog returns stable, redacted header text for logs.
func FormatHeadersForLog(headers http.Header) string {
	if len(headers) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		value := strings.Join(headers.Values(k), ", ")
		if IsSensitiveLogField(k) {
			value = redacted
		}
		parts = append(parts, fmt.Sprintf("%s=%q", strings.ToLower(k), value))
	}
	return strings.Join(parts, "; ")
}

// RedactJSON replaces values under sensitive keys at any depth.
// Bodies that are not valid JSON are returned unchanged.
func RedactJSON(body []byte) string {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return string(body)
	}
	redactValue(payload)
	safe, err := json.Marshal(payload)
	if err != nil {
		return string(body)
	}
	return string(safe)
}

func redactValue(v any) {
	switch typed := v.(type) {
	case map[string]any:
		for k, child := range typed {
			if IsSensitiveLogField(k) {
				typed[k] = redacted
				continue
			}
			redactValue(child)
		}
	case []any:
		for _, child := range typed {
			redactValue(child)
		}
	}
}

// FormatBodyForLog truncates body to maxBytes and redacts JSON payloads.
func FormatBodyForLog(contentType string, body []byte, maxBytes int) string {
	if len(body) == 0 {
		return ""
	}
	if maxBytes > 0 && len(body) > maxBytes {
		// A truncated body is not valid JSON, so redaction would be a no-op.
		return "[truncated body, " + fmt.Sprint(len(body)) + " bytes]"
	}
	if strings.Contains(strings.ToLower(contentType), "json") {
		return RedactJSON(body)
	}
	return TruncateForLog(string(body), maxBytes)
}

// TruncateForLog returns a single-line preview of value, at most maxChars long plus a marker.
func TruncateForLog(value string, maxChars int) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(value), "\n", "\\n")
	if maxChars <= 0 || len(normalized) <= maxChars {
		return normalized
	}
	return normalized[:maxChars] + "... [truncated]"
}
