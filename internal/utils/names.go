package utils

import (
	"strings"
)

// NormalizeName lowercases and trims a provider or column name.
func NormalizeName(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// NormalizeNameList normalizes a list of names.
// Empty entries are omitted. Returns nil if the result is empty.
func NormalizeNameList(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if v := strings.TrimSpace(n); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
