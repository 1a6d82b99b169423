package logger

import "strings"

// maxValueLen caps single values in sanitized log params.
const maxValueLen = 500

// secretKeyMarkers are matched case-insensitively as substrings against
// param keys. Values under matching keys are never logged verbatim.
var secretKeyMarkers = []string{
	"api_key",
	"apikey",
	"token",
	"authorization",
	"password",
	"secret",
}

// Sanitize returns a copy of params safe for structured logging: values
// under secret-bearing keys are replaced with "[REDACTED]", nested maps
// are sanitized recursively, and long string values are truncated.
func Sanitize(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if IsSecretKey(k) {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

// IsSecretKey reports whether key names a credential-like field.
func IsSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range secretKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return Sanitize(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	case string:
		return Truncate(val, maxValueLen)
	default:
		return v
	}
}

// Truncate shortens s to at most max runes, marking the cut. max <= 0
// disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "...(truncated)"
}
