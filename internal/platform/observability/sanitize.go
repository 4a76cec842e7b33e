package observability

import (
	"strings"
	"unicode"
)

// sanitizeString drops control characters and caps the result at limit runes (256 when limit <= 0).
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	var b strings.Builder
	n := 0
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeRoute prepares a chi route pattern for logs and span attributes.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// SanitizeCaller bounds the client-supplied X-Pricing-Caller value. Callers are short slugs
// such as "checkout" or "vendor-portal"; anything else is truncated at 64 runes.
func SanitizeCaller(caller string) string {
	return sanitizeString(strings.TrimSpace(caller), 64)
}
