package textutil

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

func policy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// StripMarkup removes HTML tags from vendor-entered text and collapses whitespace.
// Entities are decoded so "Mac &amp; Cheese" stays readable for downstream providers.
func StripMarkup(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	cleaned := html.UnescapeString(policy().Sanitize(value))
	return strings.Join(strings.Fields(cleaned), " ")
}

// Truncate shortens value to at most max runes. A non-positive max returns value unchanged.
func Truncate(value string, max int) string {
	if max <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return strings.TrimSpace(string(runes[:max]))
}

// NormalizeStringMap trims keys, strips markup from values and removes entries with empty keys.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		result[trimmedKey] = StripMarkup(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
