package logging

import "strings"

const redactedValue = "********"

var sensitiveParts = []string{"password", "secret", "csrf", "cookie"}

// Redact masks the value of any field whose key names a credential. Both
// logger adapters pass every field through it.
func Redact(key string, value interface{}) interface{} {
	if !sensitive(strings.ToLower(key)) {
		return value
	}
	if str, ok := value.(string); value == nil || (ok && str == "") {
		return value
	}
	return redactedValue
}

func sensitive(key string) bool {
	if key == "token" || key == "authorization" || strings.HasSuffix(key, "_token") {
		return true
	}
	for _, part := range sensitiveParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
