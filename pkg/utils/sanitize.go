// Package utils provides small shared helpers for the Gatekeeper service.
package utils

import (
	"regexp"
	"strings"
)

var (
	scriptTagPattern = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)
	htmlTagPattern   = regexp.MustCompile(`<[^>]*>`)
	controlPattern   = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// Sanitize produces a sanitized copy of a tree-shaped value (scalar, sequence,
// or mapping) without mutating the input. Strings are stripped of script
// blocks, HTML tags, and control characters and trimmed; sequences and
// mappings are rebuilt with every element sanitized recursively. Values of
// other types pass through unchanged.
func Sanitize(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return SanitizeString(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = Sanitize(elem)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, elem := range v {
			out[SanitizeString(key)] = Sanitize(elem)
		}
		return out
	default:
		return v
	}
}

// SanitizeString strips script blocks, HTML tags, and control characters from
// a single string and trims surrounding whitespace.
func SanitizeString(s string) string {
	s = scriptTagPattern.ReplaceAllString(s, "")
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = controlPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// NormalizePrincipal lowercases and trims a principal identifier so privileged
// set membership is compared case-insensitively.
func NormalizePrincipal(principal string) string {
	return strings.ToLower(strings.TrimSpace(principal))
}
