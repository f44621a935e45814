// Package utils holds small helpers shared across the hrflow packages.
package utils

import "strings"

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// FirstString returns the first non-empty string value found in m under the
// given keys, checked in order. Non-string values are skipped.
func FirstString(m map[string]any, keys ...string) (string, string, bool) {
	for _, key := range keys {
		raw, ok := m[key]
		if !ok || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		return s, key, true
	}
	return "", "", false
}

// Prefix returns at most n leading characters of s followed by an ellipsis
// when s was shortened.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
